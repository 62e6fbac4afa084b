package host

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// ErrCommandNotFound is returned by a Runner when the executable is not
// installed. Match it with errors.Is.
var ErrCommandNotFound = srerrors.New(srerrors.ErrCodeCommandNotFound, "command not found", nil)

// Result holds the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner executes external commands. A non-zero exit status is reported
// through Result.ExitCode, not as an error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return Result{ExitCode: -1}, srerrors.New(srerrors.ErrCodeCommandNotFound, "command not found: "+name, ErrCommandNotFound)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		res.ExitCode = -1
		return res, srerrors.CommandError(name, err)
	}
	return res, nil
}
