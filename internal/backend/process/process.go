// Package process implements a backend that runs each benchmark as a host
// process. The process runs in its own process group, which is killed as a
// whole when the timeout fires or the benchmark exits.
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/pkg/errors"

	"github.com/seantiz/benchkit/internal/backend"
	"github.com/seantiz/benchkit/internal/model"
)

// Kind is the instance kind served by this backend.
const Kind = "process"

const (
	// outputTailSize bounds how much trailing output a Failure carries.
	outputTailSize = 4 << 10

	// waitDelay bounds how long Wait blocks once the timeout has killed the
	// process group.
	waitDelay = 2 * time.Second
)

// Command is a benchmark instance run as an external process.
type Command struct {
	Argv []string `json:"argv"`
	Dir  string   `json:"dir,omitempty"`

	// Env is appended to the inherited environment.
	Env []string `json:"env,omitempty"`

	// LogPath receives combined stdout and stderr. Empty discards output.
	LogPath string `json:"log_path,omitempty"`
}

// Kind implements backend.Instance.
func (Command) Kind() string { return Kind }

// String returns the shell-quoted command line.
func (c Command) String() string {
	return shellescape.QuoteCommand(c.Argv)
}

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Executor)(nil)

// Executor runs Command instances.
type Executor struct {
	logger *slog.Logger
}

// New creates a process executor.
func New(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("backend", Kind)}
}

// Capabilities implements backend.Backend.
func (e *Executor) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:        Kind,
		Description: "runs benchmarks as host processes in their own process group",
	}
}

// Execute runs inst until it exits or timeout elapses. A non-zero exit status
// is reported as a Failure; problems starting the process are returned as
// errors.
func (e *Executor) Execute(ctx context.Context, inst backend.Instance, timeout time.Duration) (model.Result, error) {
	var c Command
	switch v := inst.(type) {
	case Command:
		c = v
	case *Command:
		c = *v
	default:
		return nil, errors.Errorf("process backend cannot run instance of kind %q", inst.Kind())
	}
	if len(c.Argv) == 0 {
		return nil, errors.New("process backend: empty command")
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	configureProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	// Output goes straight to files rather than pipes, so Wait returns when
	// the benchmark exits even if a background child still holds them open.
	var outFile *os.File
	if c.LogPath != "" {
		f, err := os.Create(c.LogPath)
		if err != nil {
			return nil, errors.Wrapf(err, "create log file %s", c.LogPath)
		}
		defer f.Close()
		outFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	} else {
		f, err := os.CreateTemp("", "benchkit-stderr-*")
		if err != nil {
			return nil, errors.Wrap(err, "create stderr capture file")
		}
		defer os.Remove(f.Name())
		defer f.Close()
		outFile = f
		cmd.Stderr = f
	}

	e.logger.Debug("starting process",
		"command", c.String(),
		"dir", c.Dir,
		"timeout", timeout,
	)

	activeProcesses.Inc()
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	activeProcesses.Dec()

	// Anything the benchmark left running in its group goes with it.
	if cmd.Process != nil {
		killGroup(cmd.Process.Pid)
	}

	if err == nil {
		processRunsTotal.WithLabelValues(model.OutcomeSuccess).Inc()
		return model.Success{Duration: elapsed}, nil
	}

	// The parent context ending is an interruption, not a benchmark timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrapf(ctxErr, "run %s interrupted", c.String())
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		processRunsTotal.WithLabelValues(model.OutcomeTimeout).Inc()
		return model.Timeout{Timeout: timeout}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		processRunsTotal.WithLabelValues(model.OutcomeFailure).Inc()
		tail, tailErr := readTail(outFile, outputTailSize)
		if tailErr != nil {
			e.logger.Warn("read output tail", "command", c.String(), "error", tailErr)
		}
		cause := errors.Errorf("%s exited with code %d", c.Argv[0], exitErr.ExitCode())
		return model.Failure{Err: cause, Trace: failureTrace(c, exitErr.ExitCode(), tail)}, nil
	}

	return nil, errors.Wrapf(err, "run %s", c.String())
}

// failureTrace renders the diagnostic attached to a failed process.
func failureTrace(c Command, exitCode int, tail []byte) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "command: %s\n", c.String())
	if c.Dir != "" {
		fmt.Fprintf(&b, "dir: %s\n", c.Dir)
	}
	fmt.Fprintf(&b, "exit code: %d\n", exitCode)
	if c.LogPath != "" {
		fmt.Fprintf(&b, "log: %s\n", c.LogPath)
	}
	if len(tail) > 0 {
		b.WriteString("output (tail):\n")
		b.Write(tail)
		if tail[len(tail)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// readTail returns at most max trailing bytes of f.
func readTail(f *os.File, max int64) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	off := info.Size() - max
	if off < 0 {
		off = 0
	}
	return io.ReadAll(io.NewSectionReader(f, off, info.Size()-off))
}
