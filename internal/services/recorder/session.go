package recorder

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const stderrTailLines = 20

// session represents one active capture-to-file operation. All writes to the
// encoder stdin go through the single writer goroutine consuming the queue,
// which guarantees chunks reach the pipe in append order.
type session struct {
	meetingID string
	tempPath  string
	plan      encoder.Plan

	cmd   *exec.Cmd
	stdin io.WriteCloser

	bytesWritten atomic.Uint64
	finalizing   atomic.Bool

	qmu         sync.RWMutex
	queue       chan []byte
	queueClosed bool
	drained     chan struct{}

	termMu  sync.Mutex
	termErr error

	stderr *stderrTail

	exited   chan struct{}
	exitCode int

	progressLog *rate.Limiter
	logger      *logrus.Entry
}

func spawn(binPath string, plan encoder.Plan, meetingID, tempPath string, log *logrus.Entry) (*session, error) {
	args := encoder.StreamArgs(plan, tempPath)

	cmd := exec.Command(binPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cannot open encoder stdin pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cannot open encoder stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "cannot start encoder %q", binPath)
	}

	s := &session{
		meetingID:   meetingID,
		tempPath:    tempPath,
		plan:        plan,
		cmd:         cmd,
		stdin:       stdin,
		queue:       make(chan []byte, 64),
		drained:     make(chan struct{}),
		stderr:      newStderrTail(stderrTailLines),
		exited:      make(chan struct{}),
		progressLog: rate.NewLimiter(rate.Every(5*time.Second), 1),
		logger:      log.WithField("pid", cmd.Process.Pid),
	}

	var stdio sync.WaitGroup
	stdio.Add(1)
	go s.scanStderr(stderr, &stdio)
	go s.observeExit(&stdio)
	go s.writeLoop()

	return s, nil
}

// enqueue hands a chunk to the writer goroutine, reporting whether the chunk
// was accepted. The queue retains the slice, so the caller's buffer is copied
// here. A full queue blocks the producer, which is the back-pressure path.
func (s *session) enqueue(chunk []byte) bool {
	s.qmu.RLock()
	defer s.qmu.RUnlock()
	if s.queueClosed {
		return false
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	s.queue <- owned
	return true
}

// closeQueue stops accepting chunks. The writer goroutine closes drained once
// every previously accepted chunk has been handed to the encoder.
func (s *session) closeQueue() {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if !s.queueClosed {
		s.queueClosed = true
		close(s.queue)
	}
}

func (s *session) writeLoop() {
	defer close(s.drained)
	for chunk := range s.queue {
		if s.terminalError() != nil {
			continue // drain without writing
		}
		if _, err := s.stdin.Write(chunk); err != nil {
			if isBenignWriteError(err) {
				// the encoder likely exited already; finalize will report it
				s.logger.Debugf("encoder input closed early: %v", err)
				continue
			}
			s.logger.Errorf("error writing chunk to encoder: %v", err)
			s.setTerminalError(err)
		}
	}
}

func (s *session) scanStderr(stderr io.Reader, stdio *sync.WaitGroup) {
	defer stdio.Done()
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 512*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.stderr.Append(line)
		s.logger.Debugf("encoder: %s", line)
	}
}

func (s *session) observeExit(stdio *sync.WaitGroup) {
	stdio.Wait()
	err := s.cmd.Wait()
	s.exitCode = 0
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			s.exitCode = exit.ExitCode()
		} else {
			s.exitCode = -1
		}
	}
	close(s.exited)
}

// awaitExit races the encoder exit against the given timeout.
func (s *session) awaitExit(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.exited:
		return true
	case <-timer.C:
		return false
	}
}

func (s *session) kill() {
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

func (s *session) removeTemp() {
	if err := os.Remove(s.tempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warnf("cannot remove temp file %s: %v", s.tempPath, err)
	}
}

func (s *session) setTerminalError(err error) {
	s.termMu.Lock()
	defer s.termMu.Unlock()
	if s.termErr == nil {
		s.termErr = err
	}
}

func (s *session) terminalError() error {
	s.termMu.Lock()
	defer s.termMu.Unlock()
	return s.termErr
}

func isBenignWriteError(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// stderrTail keeps the last n stderr lines of the encoder for diagnostics.
type stderrTail struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newStderrTail(max int) *stderrTail {
	return &stderrTail{max: max}
}

func (t *stderrTail) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *stderrTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
