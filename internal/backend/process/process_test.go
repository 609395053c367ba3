package process

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/benchkit/internal/model"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests use /bin/sh")
	}
	return New(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func sh(script string) Command {
	return Command{Argv: []string{"/bin/sh", "-c", script}}
}

func TestExecuteSuccess(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Execute(context.Background(), sh("exit 0"), 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	s, ok := result.(model.Success)
	if !ok {
		t.Fatalf("result = %#v, want Success", result)
	}
	if s.Duration < 0 {
		t.Errorf("duration = %v, want non-negative", s.Duration)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := newTestExecutor(t)

	start := time.Now()
	result, err := e.Execute(context.Background(), sh("sleep 30"), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	to, ok := result.(model.Timeout)
	if !ok {
		t.Fatalf("result = %#v, want Timeout", result)
	}
	if to.Timeout != 200*time.Millisecond {
		t.Errorf("timeout = %v, want 200ms", to.Timeout)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %v, process group was not killed promptly", elapsed)
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Execute(context.Background(), sh("echo broken >&2; exit 3"), 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	f, ok := result.(model.Failure)
	if !ok {
		t.Fatalf("result = %#v, want Failure", result)
	}
	if f.Err == nil || !strings.Contains(f.Err.Error(), "code 3") {
		t.Errorf("failure cause = %v, want exit code 3", f.Err)
	}
	if !strings.Contains(f.Trace, "broken") {
		t.Errorf("trace missing stderr tail:\n%s", f.Trace)
	}
	if !strings.Contains(f.Trace, "/bin/sh -c") {
		t.Errorf("trace missing command line:\n%s", f.Trace)
	}
}

func TestExecuteMissingBinaryIsError(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.Execute(context.Background(), Command{Argv: []string{"/nonexistent/benchkit-binary"}}, time.Second)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestExecuteEmptyCommand(t *testing.T) {
	e := newTestExecutor(t)

	if _, err := e.Execute(context.Background(), Command{}, time.Second); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestExecuteWritesLogAndUsesDirAndEnv(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()
	logPath := filepath.Join(dir, "output.log")

	cmd := sh(`echo "$BENCH_GREETING from $(pwd)"`)
	cmd.Dir = dir
	cmd.Env = []string{"BENCH_GREETING=hello"}
	cmd.LogPath = logPath

	result, err := e.Execute(context.Background(), &cmd, 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := result.(model.Success); !ok {
		t.Fatalf("result = %#v, want Success", result)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from") {
		t.Errorf("log = %q, want greeting", string(data))
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	if !strings.Contains(string(data), dir) && !strings.Contains(string(data), resolved) {
		t.Errorf("log = %q, want working directory %s", string(data), dir)
	}
}

func TestExecuteParentCancelIsError(t *testing.T) {
	e := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result, err := e.Execute(ctx, sh("sleep 30"), time.Minute)
	if err == nil {
		t.Fatalf("expected interruption error, got result %#v", result)
	}
}

func TestReadTailKeepsLastBytes(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	f.WriteString("abc")
	if got, err := readTail(f, 5); err != nil || string(got) != "abc" {
		t.Errorf("tail = %q, %v, want %q", got, err, "abc")
	}

	f.WriteString("defghij")
	if got, err := readTail(f, 5); err != nil || string(got) != "fghij" {
		t.Errorf("tail = %q, %v, want %q", got, err, "fghij")
	}
}

func TestExecuteFailureTraceIncludesLogTail(t *testing.T) {
	e := newTestExecutor(t)
	cmd := sh("echo to-stdout; echo to-stderr >&2; exit 2")
	cmd.LogPath = filepath.Join(t.TempDir(), "output.log")

	result, err := e.Execute(context.Background(), cmd, 10*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	f, ok := result.(model.Failure)
	if !ok {
		t.Fatalf("result = %#v, want Failure", result)
	}
	for _, want := range []string{"to-stdout", "to-stderr", "log: " + cmd.LogPath} {
		if !strings.Contains(f.Trace, want) {
			t.Errorf("trace missing %q:\n%s", want, f.Trace)
		}
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Argv: []string{"echo", "hello world", "it's"}}
	got := c.String()
	if !strings.HasPrefix(got, "echo 'hello world' ") {
		t.Errorf("String() = %q, want shell-quoted arguments", got)
	}
	if c.Kind() != Kind {
		t.Errorf("Kind() = %q, want %q", c.Kind(), Kind)
	}
}
