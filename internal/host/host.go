package host

import (
	"bufio"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Host is the audited machine.
type Host struct {
	root   string
	runner Runner
	logger *slog.Logger
	uname  func() (machine, release string)
	facts  *Facts
}

// Option configures a Host.
type Option func(*Host)

// WithRoot prefixes every filesystem path with root.
func WithRoot(root string) Option {
	return func(h *Host) {
		if root != "" {
			h.root = root
		}
	}
}

// WithRunner sets the command runner.
func WithRunner(r Runner) Option {
	return func(h *Host) {
		if r != nil {
			h.runner = r
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithUname overrides the kernel machine and release strings.
func WithUname(machine, release string) Option {
	return func(h *Host) {
		h.uname = func() (string, string) { return machine, release }
	}
}

// New returns a Host for the running machine.
func New(opts ...Option) *Host {
	h := &Host{
		root:   "/",
		runner: ExecRunner{},
		logger: slog.Default(),
		uname:  systemUname,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.facts = newFacts(h)
	return h
}

func systemUname() (string, string) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", ""
	}
	return unix.ByteSliceToString(uts.Machine[:]), unix.ByteSliceToString(uts.Release[:])
}

// Facts returns the memoized host facts.
func (h *Host) Facts() *Facts { return h.facts }

// Logger returns the host logger.
func (h *Host) Logger() *slog.Logger { return h.logger }

// Root returns the filesystem root prefix.
func (h *Host) Root() string { return h.root }

// Path maps an absolute host path into the configured root.
func (h *Host) Path(p string) string {
	if h.root == "/" {
		return p
	}
	return filepath.Join(h.root, p)
}

// Machine returns the uname machine string, e.g. "ppc64le".
func (h *Host) Machine() string {
	m, _ := h.uname()
	return m
}

// KernelRelease returns the uname release string.
func (h *Host) KernelRelease() string {
	_, r := h.uname()
	return r
}

// Run executes a command through the configured runner.
func (h *Host) Run(ctx context.Context, name string, args ...string) (Result, error) {
	res, err := h.runner.Run(ctx, name, args...)
	h.logger.Debug("command executed",
		slog.String("command", name),
		slog.Any("args", args),
		slog.Int("exit_code", res.ExitCode),
		slog.Any("error", err))
	return res, err
}

// ReadFile reads a host file.
func (h *Host) ReadFile(p string) (string, error) {
	data, err := os.ReadFile(h.Path(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadTrimmed reads a host file with surrounding whitespace removed.
func (h *Host) ReadTrimmed(p string) (string, error) {
	s, err := h.ReadFile(p)
	return strings.TrimSpace(s), err
}

// ReadLines reads a host file as lines. Missing files yield nil.
func (h *Host) ReadLines(p string) ([]string, error) {
	f, err := os.Open(h.Path(p))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// WriteFile writes data to a host file, typically a sysfs attribute.
func (h *Host) WriteFile(p string, data string) error {
	return os.WriteFile(h.Path(p), []byte(data), 0o644)
}

// Stat returns file info for a host path.
func (h *Host) Stat(p string) (fs.FileInfo, error) {
	return os.Stat(h.Path(p))
}

// Exists reports whether a host path exists.
func (h *Host) Exists(p string) bool {
	_, err := os.Stat(h.Path(p))
	return err == nil
}

// IsDir reports whether a host path is a directory.
func (h *Host) IsDir(p string) bool {
	info, err := os.Stat(h.Path(p))
	return err == nil && info.IsDir()
}

// Chmod changes the mode of a host path.
func (h *Host) Chmod(p string, mode fs.FileMode) error {
	return os.Chmod(h.Path(p), mode)
}

// Glob matches pattern against the host filesystem and returns host
// paths with the root prefix removed.
func (h *Host) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(h.Path(pattern))
	if err != nil || h.root == "/" {
		return matches, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(h.root, m)
		if err != nil {
			continue
		}
		out = append(out, "/"+filepath.ToSlash(rel))
	}
	return out, nil
}

// Cmdline returns the kernel command line.
func (h *Host) Cmdline() string {
	s, _ := h.ReadTrimmed("/proc/cmdline")
	return s
}

// HasBootParam reports whether the kernel command line carries param
// as a whole word, e.g. "fadump=on".
func (h *Host) HasBootParam(param string) bool {
	for _, field := range strings.Fields(h.Cmdline()) {
		if field == param {
			return true
		}
	}
	return false
}

// MemTotalKB returns MemTotal from /proc/meminfo in kB.
func (h *Host) MemTotalKB() (int64, bool) {
	lines, err := h.ReadLines("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return 0, false
			}
			return kb, true
		}
	}
	return 0, false
}
