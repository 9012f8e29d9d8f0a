package playback

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	"github.com/sandersonthethird/meetrec/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/sync/singleflight"
)

var logger = logrus.WithField("service", "playback")

// CompatMarker is appended before the extension of playback-converted files.
const CompatMarker = "-compat"

const playableFormat = "mp4"

// Service lazily converts finalized recordings whose container is unsuitable
// for the in-app player. Conversion requests for the same source file are
// coalesced; results are never errors — a failed conversion degrades to the
// original file.
type Service struct {
	cfg *config.Config
	enc *encoder.Service

	flights singleflight.Group
	cache   *ttlcache.Cache[string, string]
}

func NewService(lc fx.Lifecycle, cfg *config.Config, enc *encoder.Service) *Service {
	svc := &Service{
		cfg: cfg,
		enc: enc,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](30*time.Second),
			ttlcache.WithCapacity[string, string](256),
		),
	}

	lc.Append(fx.StartStopHook(
		func() {
			go svc.cache.Start()
		},
		func() {
			svc.cache.Stop()
			svc.cache.DeleteAll()
		},
	))

	return svc
}

// EnsurePlayable returns a playback-compatible filename for the given
// recording filename. Already-compatible files are returned unchanged; an
// existing converted file short-circuits; otherwise a file-to-file re-encode
// runs, deduplicated per source filename. On conversion failure the original
// filename is returned as a degraded fallback.
func (s *Service) EnsurePlayable(ctx context.Context, filename string) string {
	if strings.EqualFold(utils.GetPathFormat(filename), playableFormat) {
		return filename
	}

	if item := s.cache.Get(filename); item != nil {
		return item.Value()
	}

	derived := DerivedName(filename)
	if utils.IsFileExists(filepath.Join(s.cfg.RecordingsDir, derived)) {
		s.cache.Set(filename, derived, ttlcache.DefaultTTL)
		return derived
	}

	// one conversion per source file; concurrent callers share the flight,
	// and a settled flight is forgotten so a later request re-attempts
	result, err, _ := s.flights.Do(filename, func() (any, error) {
		return derived, s.convert(ctx, filename, derived)
	})
	if err != nil {
		logger.Errorf("cannot convert %s for playback, serving original: %v", filename, err)
		return filename
	}

	playable := result.(string)
	s.cache.Set(filename, playable, ttlcache.DefaultTTL)
	return playable
}

func (s *Service) convert(ctx context.Context, filename, derived string) error {
	binPath := s.enc.Resolve()
	if err := s.enc.EnsureAvailable(binPath); err != nil {
		return err
	}
	available, err := s.enc.AvailableEncoders(binPath)
	if err != nil {
		return err
	}
	plan := encoder.ChoosePlan(available)

	inPath := filepath.Join(s.cfg.RecordingsDir, filename)
	outPath := filepath.Join(s.cfg.RecordingsDir, derived)

	logger.Infof("converting %s -> %s (video=%s)", filename, derived, plan.Video)
	cmd := exec.CommandContext(ctx, binPath, encoder.ConvertArgs(plan, inPath, outPath)...)
	cmd.Stderr = logger.WithField("file", filename).WriterLevel(logrus.DebugLevel)

	if err := cmd.Run(); err != nil {
		// never leave a partial converted file behind; the original stays
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("cannot remove partial conversion %s: %v", outPath, rmErr)
		}
		return err
	}
	return nil
}

// DerivedName maps a source filename to its playback-converted counterpart.
func DerivedName(filename string) string {
	ext := filepath.Ext(filename)
	return filename[:len(filename)-len(ext)] + CompatMarker + ".mp4"
}
