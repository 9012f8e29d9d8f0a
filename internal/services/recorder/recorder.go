package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	"github.com/sandersonthethird/meetrec/internal/services/library"
	"github.com/sandersonthethird/meetrec/utils"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "recorder")

// TempSuffix marks in-progress recording files. SanitizeFilename strips dots
// from meeting IDs, so no final filename can collide with the pattern.
const TempSuffix = ".recording.part"

var ErrNoActiveSession = fmt.Errorf("no active recording session for this meeting")
var ErrEmptyRecording = fmt.Errorf("recording received no data")
var ErrFinalizeTimeout = fmt.Errorf("encoder did not finish in time")
var ErrDiskFull = fmt.Errorf("not enough free disk space for a recording")

// ExitError reports an encoder process that terminated abnormally, with the
// tail of its stderr attached for diagnostics.
type ExitError struct {
	Code   int
	Stderr []string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("encoder exited with code %d: %s", e.Code, strings.Join(e.Stderr, " | "))
}

// Service owns the single active recording session. Only Start, Finalize and
// Discard may replace or clear the slot, always under mu.
type Service struct {
	cfg *config.Config
	enc *encoder.Service
	lib *library.Service

	mu     sync.Mutex
	active *session
}

func NewService(
	lc fx.Lifecycle,
	cfg *config.Config,
	enc *encoder.Service,
	lib *library.Service,
) *Service {

	r := &Service{
		cfg: cfg,
		enc: enc,
		lib: lib,
	}

	lc.Append(fx.StartStopHook(
		func(context.Context) error {
			return r.CleanupOrphans()
		},
		func(context.Context) error {
			r.mu.Lock()
			s := r.active
			r.active = nil
			r.mu.Unlock()
			if s != nil {
				logger.Warnf("discarding active session for meeting %s on shutdown", s.meetingID)
				r.teardown(s)
			}
			return nil
		},
	))

	return r
}

// Start begins a new session for meetingID. Any prior active session is
// discarded first, so starting never fails due to a stale session.
func (r *Service) Start(meetingID string) error {
	l := logger.WithField("meeting", meetingID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.active; prev != nil {
		l.Warnf("preempting active session for meeting %s", prev.meetingID)
		r.active = nil
		r.teardown(prev)
	}

	if err := os.MkdirAll(r.cfg.RecordingsDir, 0755); err != nil {
		return errors.Wrap(err, "cannot create recordings directory")
	}
	if err := r.checkDiskSpace(); err != nil {
		return err
	}

	binPath := r.enc.Resolve()
	if err := r.enc.EnsureAvailable(binPath); err != nil {
		return err
	}
	available, err := r.enc.AvailableEncoders(binPath)
	if err != nil {
		return err
	}
	plan := encoder.ChoosePlan(available)
	l.Infof("starting recording with encoder %s (video=%s audio=%s)",
		binPath, plan.Video, utils.EmptyOrElse(plan.Audio, "none"))

	tempPath := filepath.Join(r.cfg.RecordingsDir, utils.SanitizeFilename(meetingID)+TempSuffix)
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "cannot reclaim stale temp file %s", tempPath)
	}

	s, err := spawn(binPath, plan, meetingID, tempPath, l)
	if err != nil {
		return err
	}
	r.active = s
	return nil
}

// Append hands a chunk to the active session. Chunks for a non-active,
// finalizing, or failed session are silently dropped; the capture side cannot
// synchronize with finalize and must be able to fire and forget.
func (r *Service) Append(meetingID string, chunk []byte) {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()

	if s == nil || s.meetingID != meetingID {
		logger.Debugf("dropping chunk for inactive meeting %s", meetingID)
		return
	}
	if s.finalizing.Load() || s.terminalError() != nil {
		return
	}

	// count only chunks the queue actually accepted, so an all-dropped
	// session still finalizes as empty
	if !s.enqueue(chunk) {
		return
	}
	s.bytesWritten.Add(uint64(len(chunk)))
	if s.progressLog.Allow() {
		s.logger.Debugf("recording progress: %d bytes accepted", s.bytesWritten.Load())
	}
}

// Finalize drains pending writes, signals end of input, validates the encoder
// result and atomically publishes the final file. On any failure no file is
// left at the temp or final path.
func (r *Service) Finalize(meetingID, finalName string) (string, error) {
	r.mu.Lock()
	s := r.active
	if s == nil || s.meetingID != meetingID {
		r.mu.Unlock()
		return "", ErrNoActiveSession
	}
	s.finalizing.Store(true)
	r.mu.Unlock()

	defer r.clear(s)

	s.closeQueue()
	<-s.drained

	if s.bytesWritten.Load() == 0 {
		s.kill()
		s.awaitExit(2 * time.Second)
		s.removeTemp()
		return "", ErrEmptyRecording
	}

	if werr := s.terminalError(); werr != nil {
		s.kill()
		code := -1
		if s.awaitExit(2 * time.Second) {
			code = s.exitCode
		}
		s.removeTemp()
		return "", errors.Wrapf(&ExitError{Code: code, Stderr: s.stderr.Lines()},
			"recording failed while writing: %v", werr)
	}

	// end of stream
	_ = s.stdin.Close()

	if !s.awaitExit(r.cfg.FinalizeTimeout) {
		s.kill()
		s.removeTemp()
		return "", ErrFinalizeTimeout
	}

	if s.exitCode != 0 {
		s.removeTemp()
		return "", &ExitError{Code: s.exitCode, Stderr: s.stderr.Lines()}
	}

	finalPath := filepath.Join(r.cfg.RecordingsDir, finalName)
	if err := os.Rename(s.tempPath, finalPath); err != nil {
		s.removeTemp()
		return "", errors.Wrapf(err, "cannot publish recording to %s", finalPath)
	}

	record := &library.Record{
		MeetingID:  meetingID,
		Filename:   finalName,
		Bytes:      s.bytesWritten.Load(),
		FinishedAt: time.Now(),
	}
	if err := r.lib.Save(record); err != nil {
		s.logger.Errorf("cannot persist recording record: %v", err)
	}

	s.logger.Infof("recording finalized: %s (%d bytes in)", finalName, record.Bytes)
	return finalName, nil
}

// Discard tears down the session for meetingID unconditionally: no
// validation, no promotion. Reports whether a session was torn down.
func (r *Service) Discard(meetingID string) bool {
	r.mu.Lock()
	s := r.active
	if s == nil || s.meetingID != meetingID {
		r.mu.Unlock()
		return false
	}
	r.active = nil
	r.mu.Unlock()

	r.teardown(s)
	return true
}

func (r *Service) teardown(s *session) {
	s.finalizing.Store(true)
	s.closeQueue()
	s.kill()
	<-s.drained
	if !s.awaitExit(2 * time.Second) {
		s.logger.Warn("encoder did not exit after kill")
	}
	s.removeTemp()
}

func (r *Service) clear(s *session) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
}

func (r *Service) checkDiskSpace() error {
	usage, err := disk.Usage(r.cfg.RecordingsDir)
	if err != nil {
		logger.Warnf("cannot check free disk space: %v", err)
		return nil
	}
	if usage.Free < r.cfg.MinFreeDiskMB*1024*1024 {
		return errors.Wrapf(ErrDiskFull, "%d MB free", usage.Free/1024/1024)
	}
	return nil
}
