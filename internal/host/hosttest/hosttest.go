// Package hosttest provides a scripted command runner and fake host
// roots for tests of checks and repairs.
package hosttest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Aman-CERP/servicereport/internal/host"
)

// Runner is a scripted host.Runner. Commands without a script report
// host.ErrCommandNotFound.
type Runner struct {
	handlers map[string]func() (host.Result, error)
	calls    []string
}

// NewRunner returns an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{handlers: make(map[string]func() (host.Result, error))}
}

// On scripts a fixed result for the full command line.
func (r *Runner) On(cmdline string, res host.Result) *Runner {
	r.handlers[cmdline] = func() (host.Result, error) { return res, nil }
	return r
}

// OnFunc scripts a dynamic result for the full command line.
func (r *Runner) OnFunc(cmdline string, fn func() (host.Result, error)) *Runner {
	r.handlers[cmdline] = fn
	return r
}

// Run implements host.Runner.
func (r *Runner) Run(_ context.Context, name string, args ...string) (host.Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, cmdline)
	if fn, ok := r.handlers[cmdline]; ok {
		return fn()
	}
	return host.Result{ExitCode: -1}, host.ErrCommandNotFound
}

// Calls returns every command line run so far.
func (r *Runner) Calls() []string { return append([]string(nil), r.calls...) }

// Called reports whether cmdline was run.
func (r *Runner) Called(cmdline string) bool {
	for _, c := range r.calls {
		if c == cmdline {
			return true
		}
	}
	return false
}

// OK is a successful result with stdout.
func OK(stdout string) host.Result { return host.Result{Stdout: stdout} }

// Exit is a result with the given exit code.
func Exit(code int) host.Result { return host.Result{ExitCode: code} }

// Root writes files under a temporary directory and returns it. Keys are
// absolute host paths; a key ending in "/" creates a directory.
func Root(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, p)
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatalf("mkdir %s: %v", p, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return root
}

// New returns a host over a fake root with the scripted runner.
func New(t testing.TB, files map[string]string, r *Runner, opts ...host.Option) *host.Host {
	t.Helper()
	if r == nil {
		r = NewRunner()
	}
	base := []host.Option{host.WithRoot(Root(t, files)), host.WithRunner(r), host.WithUname("ppc64le", "6.12.0")}
	return host.New(append(base, opts...)...)
}

// OSRelease returns /etc/os-release content for a PRETTY_NAME.
func OSRelease(pretty string) string {
	return "NAME=\"Linux\"\nPRETTY_NAME=\"" + pretty + "\"\n"
}
