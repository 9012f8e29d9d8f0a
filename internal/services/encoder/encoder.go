package encoder

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/pkg/ds"
	"github.com/sandersonthethird/meetrec/utils"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "encoder")

var ErrEncoderUnavailable = errors.New("encoder binary is not available")

// Service locates the ffmpeg binary and probes its codec capabilities.
// Capability probes are cached per resolved path for the process lifetime.
type Service struct {
	cfg  *config.Config
	caps *xsync.Map[string, ds.Set[string]]
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:  cfg,
		caps: xsync.NewMap[string, ds.Set[string]](),
	}
}

// Resolve returns a candidate encoder path. It never fails; validity is
// checked separately by EnsureAvailable.
func (s *Service) Resolve() string {
	if s.cfg.EncoderPath != "" {
		return s.cfg.EncoderPath
	}
	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), binaryName())
		if utils.IsFileExists(bundled) {
			return bundled
		}
	}
	for _, candidate := range wellKnownPaths() {
		if utils.IsFileExists(candidate) {
			return candidate
		}
	}
	// delegate to the OS executable search path
	return binaryName()
}

// EnsureAvailable runs a trivial version invocation. Called once per session
// start rather than once per process since FFMPEG_PATH may change between
// sessions.
func (s *Service) EnsureAvailable(path string) error {
	if err := exec.Command(path, "-version").Run(); err != nil {
		return errors.Wrapf(ErrEncoderUnavailable, "cannot run %q (set FFMPEG_PATH to a valid ffmpeg binary): %v", path, err)
	}
	return nil
}

// AvailableEncoders lists the encoder names supported by the binary at path.
// Concurrent callers for the same path share a single probe; a failed probe
// is not cached and is retried on the next call.
func (s *Service) AvailableEncoders(path string) (ds.Set[string], error) {
	var probeErr error
	available, _ := s.caps.LoadOrCompute(path, func() (ds.Set[string], bool) {
		out, err := exec.Command(path, "-hide_banner", "-encoders").Output()
		if err != nil {
			probeErr = errors.Wrapf(err, "cannot list encoders of %q", path)
			return nil, true
		}
		probed := ParseEncoderList(out)
		logger.Debugf("probed %d encoders from %s: %v", probed.Size(), path, probed.ToSlice())
		return probed, false
	})
	if probeErr != nil {
		return nil, probeErr
	}
	return available, nil
}

func binaryName() string {
	return utils.Ternary(runtime.GOOS == "windows", "ffmpeg.exe", "ffmpeg")
}

func wellKnownPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	case "windows":
		return []string{
			`C:\ProgramData\chocolatey\bin\ffmpeg.exe`,
			`C:\ffmpeg\bin\ffmpeg.exe`,
		}
	default:
		return []string{
			"/usr/local/bin/ffmpeg",
			"/usr/bin/ffmpeg",
		}
	}
}
