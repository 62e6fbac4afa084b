package dump

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/fileedit"
	"github.com/Aman-CERP/servicereport/internal/host"
)

const (
	grubDefaults   = "/etc/default/grub"
	grubConfig     = "/boot/grub2/grub.cfg"
	cmdlineDefault = "GRUB_CMDLINE_LINUX_DEFAULT"
	cmdline        = "GRUB_CMDLINE_LINUX"
)

// grubLineValid reports whether an assignment line can be rewritten: it
// has a key and a value, and a quoted value is closed.
func grubLineValid(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || key == "" || len(value) < 2 {
		return false
	}
	first, last := value[0], value[len(value)-1]
	return !((first == '"' || first == '\'') && first != last)
}

// rewriteArgs rebuilds KEY="args" without crashkernel= arguments,
// appending extra when set.
func rewriteArgs(line, extra string) string {
	key, value, _ := strings.Cut(strings.TrimSpace(line), "=")
	var args []string
	for _, arg := range strings.Fields(fileedit.Unquote(value)) {
		if !strings.HasPrefix(arg, "crashkernel=") {
			args = append(args, arg)
		}
	}
	if extra != "" {
		args = append(args, extra)
	}
	return key + `="` + strings.Join(args, " ") + `"`
}

// setCrashkernel returns a transform that sets crashkernel=<mb>M on
// GRUB_CMDLINE_LINUX_DEFAULT and drops it from GRUB_CMDLINE_LINUX. Lines
// not mentioning either key are left byte-identical.
func setCrashkernel(mb int64) fileedit.Transform {
	want := fmt.Sprintf("crashkernel=%dM", mb)
	return func(lines []string) ([]string, bool) {
		changed, updated := false, false
		for i, line := range lines {
			var next string
			switch {
			case strings.HasPrefix(line, cmdlineDefault+"="):
				next = rewriteArgs(line, want)
				updated = true
			case strings.HasPrefix(line, cmdline+"=") && strings.Contains(line, "crashkernel="):
				next = rewriteArgs(line, "")
			default:
				continue
			}
			if next != line {
				lines[i] = next
				changed = true
			}
		}
		if !updated {
			return append(lines, cmdlineDefault+`="`+want+`"`), true
		}
		return lines, changed
	}
}

// crashkernelInGrub reports whether GRUB_CMDLINE_LINUX_DEFAULT carries
// crashkernel=<mb>M.
func crashkernelInGrub(h *host.Host, mb int64) bool {
	lines, err := h.ReadLines(grubDefaults)
	if err != nil {
		return false
	}
	value, ok := fileedit.ValueOf(lines, cmdlineDefault)
	if !ok {
		return false
	}
	want := fmt.Sprintf("crashkernel=%dM", mb)
	for _, arg := range strings.Fields(value) {
		if arg == want {
			return true
		}
	}
	return false
}

// updateCrashkernel edits the grub defaults file. Lines whose format
// cannot be rewritten abort the edit before anything is written.
func updateCrashkernel(h *host.Host, editor *fileedit.Editor, mb int64) error {
	lines, err := h.ReadLines(grubDefaults)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return srerrors.EditError(srerrors.ErrCodeEditRead, grubDefaults, err)
	}
	for _, line := range lines {
		if strings.HasPrefix(line, cmdlineDefault+"=") && !grubLineValid(line) {
			return srerrors.EditError(srerrors.ErrCodeEditRead, grubDefaults,
				fmt.Errorf("unknown grub line format: %s", line))
		}
	}
	_, err = editor.Edit(h.Path(grubDefaults), setCrashkernel(mb))
	return err
}

// regenerateGrub rebuilds the boot loader configuration, passing
// --update-bls-cmdline when grub2-mkconfig supports it. Hosts without
// grub2-mkconfig fall back to update-grub.
func regenerateGrub(ctx context.Context, h *host.Host) error {
	help, err := h.Run(ctx, "grub2-mkconfig", "-h")
	if errors.Is(err, host.ErrCommandNotFound) {
		return h.RunChecked(ctx, "update-grub")
	}
	args := []string{"-o", grubConfig}
	if err == nil && strings.Contains(help.Stdout+help.Stderr, "update-bls-cmdline") {
		args = append(args, "--update-bls-cmdline")
	}
	return h.RunChecked(ctx, "grub2-mkconfig", args...)
}
