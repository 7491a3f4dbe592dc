package schedule

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/teemow/resender/internal/logging"
)

// ExecuteScheduledFlag is passed to the re-run of a scheduled execution.
const ExecuteScheduledFlag = "--execute-scheduled"

// Runner executes an external command with stdin and returns its combined
// output.
type Runner func(ctx context.Context, stdin, name string, args ...string) ([]byte, error)

// Command is an OS scheduler invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Task is a created OS scheduler entry.
type Task struct {
	Name    string
	At      time.Time
	Command Command
}

// TaskScheduler registers a one-shot OS task that re-runs the resend
// command at a later time: schtasks on Windows, at(1) elsewhere.
type TaskScheduler struct {
	// Executable is the program to run. Defaults to os.Executable().
	Executable string
	// Args are passed to Executable before ExecuteScheduledFlag.
	Args []string
	// GOOS selects the scheduler. Defaults to runtime.GOOS.
	GOOS string

	run    Runner
	logger logging.Logger
}

// NewTaskScheduler returns a scheduler re-running "<executable> resend
// --execute-scheduled".
func NewTaskScheduler(logger logging.Logger) *TaskScheduler {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &TaskScheduler{
		Args:   []string{"resend"},
		GOOS:   runtime.GOOS,
		run:    execRunner,
		logger: logger,
	}
}

// TaskName returns the scheduler entry name for at.
func TaskName(at time.Time) string {
	return "Resender_" + at.Format("20060102_150405")
}

// Command builds the scheduler invocation for at.
func (s *TaskScheduler) Command(at time.Time) (Command, error) {
	exe := s.Executable
	if exe == "" {
		path, err := os.Executable()
		if err != nil {
			return Command{}, fmt.Errorf("failed to resolve executable: %w", err)
		}
		exe = path
	}

	rerun := append([]string{quote(exe)}, s.Args...)
	rerun = append(rerun, ExecuteScheduledFlag)
	line := strings.Join(rerun, " ")

	if s.GOOS == "windows" {
		return Command{
			Name: "schtasks",
			Args: []string{
				"/create",
				"/tn", TaskName(at),
				"/tr", line,
				"/st", at.Format("15:04"),
				"/sd", at.Format("01/02/2006"),
				"/sc", "once",
				"/f",
			},
		}, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return Command{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return Command{
		Name:  "at",
		Args:  []string{"-t", at.Format("200601021504")},
		Stdin: "cd " + quote(wd) + " && " + line + "\n",
	}, nil
}

// Schedule creates the OS task. The caller falls back to running now when
// it fails.
func (s *TaskScheduler) Schedule(ctx context.Context, at time.Time) (*Task, error) {
	cmd, err := s.Command(at)
	if err != nil {
		return nil, err
	}

	out, err := s.run(ctx, cmd.Stdin, cmd.Name, cmd.Args...)
	if err != nil {
		s.logger.Warn("failed to create scheduled task",
			logging.KeyOperation, cmd.Name,
			logging.KeyError, err,
			"output", strings.TrimSpace(string(out)))
		return nil, fmt.Errorf("%s failed: %w", cmd.Name, err)
	}

	task := &Task{Name: TaskName(at), At: at, Command: cmd}
	s.logger.Info("scheduled task created",
		"task", task.Name,
		"at", at.Format(time.RFC3339))
	return task, nil
}

func execRunner(ctx context.Context, stdin, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

func quote(s string) string {
	if !strings.ContainsAny(s, " \t'\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
