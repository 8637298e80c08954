package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// ErrPTYStopped is returned by PTYSession operations once the session has
// already stopped.
var ErrPTYStopped = errors.New("pty session has already stopped")

// PTYEventKind classifies a PTYEvent.
type PTYEventKind int

const (
	PTYStarted PTYEventKind = iota
	PTYOutput
	PTYCompleted
	PTYFailed
	PTYStopped
)

// PTYEvent is one notification from a running PTY-backed session.
type PTYEvent struct {
	Kind        PTYEventKind
	Data        []byte
	ExitCode    int
	HasExitCode bool
	Error       string
	Duration    time.Duration
}

// PTYSessionStatus is the terminal (or running) state of a PTYSession.
type PTYSessionStatus int

const (
	PTYStatusRunning PTYSessionStatus = iota
	PTYStatusCompleted
	PTYStatusFailed
	PTYStatusStopped
)

// PTYSessionConfig configures a PTY-backed agent process, for CLIs that
// require a real terminal (interactive approval prompts, TUI output) rather
// than plain piped stdout/stderr. None of the built-in adapters spawns
// through it.
type PTYSessionConfig struct {
	Program     string
	Args        []string
	Env         []string
	Cwd         string
	InitialCols uint16
	InitialRows uint16
}

// PTYSession is a running PTY-backed process. Create with SpawnPTY.
type PTYSession struct {
	mu     sync.Mutex
	ptmx   *os.File
	cmd    *exec.Cmd
	status PTYSessionStatus

	stopOnce sync.Once
	stopCh   chan struct{}
}

// SpawnPTY opens a PTY, spawns cfg's program attached to its slave side, and
// begins streaming output on the returned channel. The channel is closed
// once the session has fully stopped.
func SpawnPTY(cfg PTYSessionConfig) (<-chan PTYEvent, *PTYSession, error) {
	cmd := exec.Command(cfg.Program, cfg.Args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = cfg.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: cfg.InitialRows, Cols: cfg.InitialCols})
	if err != nil {
		return nil, nil, fmt.Errorf("supervisor: failed to spawn process in pty: %w", err)
	}

	session := &PTYSession{
		ptmx:   ptmx,
		cmd:    cmd,
		status: PTYStatusRunning,
		stopCh: make(chan struct{}),
	}

	events := make(chan PTYEvent, 64)
	events <- PTYEvent{Kind: PTYStarted}

	go session.runLoop(events)

	return events, session, nil
}

// WriteInput writes data to the PTY's input side.
func (s *PTYSession) WriteInput(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptmx == nil {
		return ErrPTYStopped
	}
	_, err := s.ptmx.Write(data)
	return err
}

// Resize updates the PTY's terminal size.
func (s *PTYSession) Resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptmx == nil {
		return ErrPTYStopped
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Stop ends the session: the run loop kills the child with SIGKILL at once
// (no SIGTERM and no grace period first) and reports PTYStopped. Idempotent.
func (s *PTYSession) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Status returns the session's current status.
func (s *PTYSession) Status() PTYSessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

type ptyChunk struct {
	data []byte
	err  error
}

func (s *PTYSession) runLoop(events chan<- PTYEvent) {
	defer close(events)

	start := time.Now()
	outputCh := make(chan ptyChunk, 256)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := s.ptmx.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				outputCh <- ptyChunk{data: data}
			}
			if err != nil {
				outputCh <- ptyChunk{err: err}
				return
			}
		}
	}()

	var final PTYSessionStatus

loop:
	for {
		select {
		case <-s.stopCh:
			s.killChild()
			events <- PTYEvent{Kind: PTYStopped, Duration: time.Since(start)}
			final = PTYStatusStopped
			break loop
		default:
			select {
			case <-s.stopCh:
				s.killChild()
				events <- PTYEvent{Kind: PTYStopped, Duration: time.Since(start)}
				final = PTYStatusStopped
				break loop
			case chunk := <-outputCh:
				if chunk.err != nil {
					// On Linux a read from the pty master fails with EIO, not
					// EOF, once the child has exited and closed the slave side.
					if errors.Is(chunk.err, io.EOF) || errors.Is(chunk.err, syscall.EIO) {
						code, ok := s.waitChild()
						events <- PTYEvent{Kind: PTYCompleted, ExitCode: code, HasExitCode: ok, Duration: time.Since(start)}
						final = PTYStatusCompleted
					} else {
						events <- PTYEvent{Kind: PTYFailed, Error: chunk.err.Error(), Duration: time.Since(start)}
						final = PTYStatusFailed
					}
					break loop
				}
				events <- PTYEvent{Kind: PTYOutput, Data: chunk.data}
			}
		}
	}

	s.mu.Lock()
	s.status = final
	if s.ptmx != nil {
		_ = s.ptmx.Close()
		s.ptmx = nil
	}
	s.mu.Unlock()
}

func (s *PTYSession) killChild() {
	if s.cmd.Process == nil {
		return
	}
	_ = s.cmd.Process.Kill()
	_, _ = s.waitChild()
}

func (s *PTYSession) waitChild() (int, bool) {
	err := s.cmd.Wait()
	if err == nil {
		return 0, true
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
