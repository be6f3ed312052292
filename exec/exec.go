package exec

/*
  Fold external command execution.
  Used for the reload hook: a user command run after every bindings publish.
*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxReply = 4096
	KillDelay       = time.Second / 2 // SIGTERM to SIGKILL
)

var ErrEmpty = errors.New("exec: empty command line")

type Command struct {
	ID       string
	Command  string
	Args     []string
	Env      []string // appended to the inherited environment
	Dir      string
	Timeout  time.Duration // 0 = wait for ctx only
	MaxReply int64         // per stream
	StdIn    []byte
}

type Result struct {
	ID        string   `json:"id"`
	Processed bool     `json:"processed"` // Was this command ever started?
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Status    int      `json:"status"`
	StdOut    []byte   `json:"stdout,omitempty"`
	StdErr    []byte   `json:"stderr,omitempty"`
}

// Parse splits a command line with POSIX shell quoting rules. No shell is
// involved in running it.
func Parse(line string) (*Command, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("exec: parse %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, ErrEmpty
	}
	return &Command{
		Command:  words[0],
		Args:     words[1:],
		Timeout:  DefaultTimeout,
		MaxReply: DefaultMaxReply,
	}, nil
}

func (c *Command) String() string {
	return shellquote.Join(append([]string{c.Command}, c.Args...)...)
}

// https://golang.org/pkg/os/exec/#Cmd
func Run(ctx context.Context, c *Command) *Result {
	r := &Result{ID: c.ID, Command: c.Command, Args: c.Args}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	// https://medium.com/@felixge/killing-a-child-process-and-all-of-its-children-in-go-54079af94773
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// The whole group, not just the leader, or children are orphaned.
		pgid := cmd.Process.Pid
		time.AfterFunc(KillDelay, func() { _ = syscall.Kill(-pgid, syscall.SIGKILL) })
		return syscall.Kill(-pgid, syscall.SIGTERM)
	}
	cmd.WaitDelay = KillDelay

	cmd.Stdin = bytes.NewReader(c.StdIn)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}

	stdoutIn, err := cmd.StdoutPipe()
	if err != nil {
		return failed(r, err)
	}
	stderrIn, err := cmd.StderrPipe()
	if err != nil {
		return failed(r, err)
	}

	if err := cmd.Start(); err != nil {
		return failed(r, err)
	}
	r.Processed = true

	max := c.MaxReply
	if max <= 0 {
		max = DefaultMaxReply
	}

	// https://blog.kowalczyk.info/article/wOYk/advanced-command-execution-in-go-with-osexec.html
	var (
		stdout, stderr       bytes.Buffer
		errStdout, errStderr error
		wg                   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errStdout = drain(&stdout, stdoutIn, max)
	}()
	errStderr = drain(&stderr, stderrIn, max)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		r.Status = status(err)
		if stderr.Len() == 0 {
			stderr.WriteString(err.Error())
		}
	}
	if errStdout != nil || errStderr != nil {
		r.Status = -254
	}

	r.StdOut = stdout.Bytes()
	r.StdErr = stderr.Bytes()
	return r
}

// drain keeps the first max bytes and discards the rest of the stream.
func drain(dst *bytes.Buffer, src io.Reader, max int64) error {
	_, err := io.CopyN(dst, src, max)
	if err == io.EOF {
		return nil
	}
	if err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
		return err
	}
	_, _ = io.Copy(io.Discard, src)
	return nil
}

func status(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return -int(ws.Signal())
			}
			return ws.ExitStatus()
		}
	}
	return -1 // No such command at all?
}

func failed(r *Result, err error) *Result {
	r.Status = status(err)
	r.StdErr = []byte(err.Error())
	return r
}
