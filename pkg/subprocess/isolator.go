package subprocess

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/logging"
)

// Isolator starts registered children as separate processes.
// Each operation starts exactly one child and waits for it
// exactly once; there is no timeout.
type Isolator struct {
	executable string
	args       []string
	env        []string
	stdout     io.Writer
	stderr     io.Writer
	logger     logging.Logger
}

// Option configures an Isolator.
type Option func(*Isolator)

// WithExecutable sets the program started as the child.
// Defaults to the running executable.
func WithExecutable(path string) Option {
	return func(i *Isolator) {
		i.executable = path
	}
}

// WithArgs sets the child's command-line arguments.
func WithArgs(args ...string) Option {
	return func(i *Isolator) {
		i.args = args
	}
}

// WithEnv adds KEY=value pairs to the child's environment,
// which otherwise inherits the parent's.
func WithEnv(env ...string) Option {
	return func(i *Isolator) {
		i.env = append(i.env, env...)
	}
}

// WithStdout sets the child's standard output. Defaults to the
// parent's.
func WithStdout(w io.Writer) Option {
	return func(i *Isolator) {
		i.stdout = w
	}
}

// WithStderr sets the child's standard error. Defaults to the
// parent's.
func WithStderr(w io.Writer) Option {
	return func(i *Isolator) {
		i.stderr = w
	}
}

// WithLogger sets the logger for child lifecycle records.
func WithLogger(l logging.Logger) Option {
	return func(i *Isolator) {
		i.logger = l
	}
}

// NewIsolator creates an Isolator.
func NewIsolator(opts ...Option) (*Isolator, error) {
	i := &Isolator{
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logging.NullLogger{},
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		i.executable = exe
	}
	return i, nil
}

// CallInForkedProcess runs the child named name and waits for
// it. It returns nil when the child exits with status zero, an
// AbnormalTermination condition when the child was killed and a
// ChildFailureExitStatus condition for any other status.
func (i *Isolator) CallInForkedProcess(name string) error {
	cmd, err := i.start(name)
	if err != nil {
		return err
	}
	return i.wait(name, cmd)
}

// WithParentAndChildProcess starts the child named name, then
// runs parent with the child's pid in a protected region and
// waits for the child. A failing parent wins over whatever the
// child's status says; otherwise the child's status is mapped
// as in CallInForkedProcess.
func (i *Isolator) WithParentAndChildProcess(
	parent func(pid int) error,
	name string,
) error {
	cmd, err := i.start(name)
	if err != nil {
		return err
	}

	pc := condition.Protect(func(*condition.Region) error {
		return parent(cmd.Process.Pid)
	})
	childErr := i.wait(name, cmd)

	if !condition.Is(pc, condition.KindSuccess) {
		return pc
	}
	return childErr
}

func (i *Isolator) start(name string) (*exec.Cmd, error) {
	cmd := exec.Command(i.executable, i.args...)
	cmd.Env = append(os.Environ(), i.env...)
	cmd.Env = append(cmd.Env, EnvChild+"="+name)
	cmd.Stdout = i.stdout
	cmd.Stderr = i.stderr

	if err := cmd.Start(); err != nil {
		return nil, condition.Wrap(
			fmt.Errorf("start child %s: %w", name, err),
		)
	}
	i.logger.Debug("child started",
		logging.StringField("child", name),
		logging.IntField("pid", cmd.Process.Pid))
	return cmd, nil
}

func (i *Isolator) wait(name string, cmd *exec.Cmd) error {
	err := cmd.Wait()
	pid := cmd.Process.Pid

	var exitErr *exec.ExitError
	if err != nil && errors.As(err, &exitErr) {
		err = nil
	}
	// Any error left is not about the exit status, such as a
	// failed copy of the child's output.
	if err != nil && cmd.ProcessState == nil {
		return condition.Wrap(fmt.Errorf("wait child %s: %w", name, err))
	}

	c := StatusCondition(pid, cmd.ProcessState)
	i.logger.Debug("child exited",
		logging.StringField("child", name),
		logging.IntField("pid", pid),
		logging.StringField("state", cmd.ProcessState.String()))
	if c != nil {
		return c
	}
	if err != nil {
		i.logger.Warn("child output lost",
			logging.StringField("child", name),
			logging.ErrorField(err))
		return condition.Wrap(fmt.Errorf("wait child %s: %w", name, err))
	}
	return nil
}

// StatusCondition maps the state of a terminated child to a
// condition: nil for a zero exit status, AbnormalTermination
// when the child did not exit normally and
// ChildFailureExitStatus for a non-zero status.
func StatusCondition(pid int, state *os.ProcessState) condition.Condition {
	if state == nil {
		return condition.NewAbnormalTermination(pid, 0)
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return condition.NewAbnormalTermination(pid, ws.Signal())
	}
	if !state.Exited() {
		return condition.NewAbnormalTermination(pid, 0)
	}
	if code := state.ExitCode(); code != 0 {
		return condition.NewChildFailureExitStatus(pid, code)
	}
	return nil
}
