package executor

import (
	"bytes"
	"io"
	"os/exec"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination executormock/executor_mock.go -package executormock . Executor

// Module provides a module to inject using fx.
var Module = fx.Provide(func(logger *zap.SugaredLogger) Executor {
	return NewExecutor(WithLogger(logger))
})

// Executor wraps the execution of "os/exec".Cmd's so that every external process
// launched by the daemon is logged and can be replaced in tests.
type Executor interface {
	// Run logs and executes the Cmd, capturing Stdout/Stderr and returning their content.
	Run(cmd *exec.Cmd) (stdout string, stderr string, exitCode int, err error)
}

type executorImp struct {
	logger *zap.SugaredLogger
	// execFunc may be nil to use executorImp in tests.
	execFunc func(e *exec.Cmd) error
}

// Option defines options to customize executorImp's behavior
type Option func(*executorImp)

// WithLogger overrides the default noop logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(executor *executorImp) {
		executor.logger = logger
	}
}

// WithExecFunc provides customized exec behavior for executorImp
func WithExecFunc(execFunc func(e *exec.Cmd) error) Option {
	return func(executor *executorImp) {
		executor.execFunc = execFunc
	}
}

// NewExecutor creates an Executor that runs commands with exec.Cmd.Run by default.
func NewExecutor(opts ...Option) Executor {
	executor := &executorImp{
		logger:   zap.NewNop().Sugar(),
		execFunc: func(cmd *exec.Cmd) error { return cmd.Run() },
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Run logs the Path/Args and calls execFunc if it is set.
func (l *executorImp) Run(cmd *exec.Cmd) (stdout string, stderr string, exitCode int, err error) {
	if err := l.logCommand(cmd); err != nil {
		return "", "", -1, err
	}

	if l.execFunc == nil {
		l.logger.Warn("missing execFunc, skipped execution")
		return "", "", 0, nil
	}

	var stdoutB, stderrB bytes.Buffer
	cmd.Stdout = &stdoutB
	cmd.Stderr = &stderrB
	err = l.execFunc(cmd)

	// ProcessState is nil when the process never started.
	return stdoutB.String(), stderrB.String(), cmd.ProcessState.ExitCode(), err
}

// logCommand logs Path, Dir, Args and Stdin (if available).
func (l *executorImp) logCommand(cmd *exec.Cmd) error {
	logKeysAndValues := []interface{}{
		"Path", cmd.Path,
		"Dir", cmd.Dir,
		"Args", cmd.Args[1:],
	}

	if cmd.Stdin != nil {
		stdinBytes, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return err
		}
		logKeysAndValues = append(logKeysAndValues, "Stdin", string(stdinBytes))
		cmd.Stdin = bytes.NewReader(stdinBytes)
	}

	l.logger.Debugw("exec", logKeysAndValues...)
	return nil
}
