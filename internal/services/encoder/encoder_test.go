package encoder_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

const fakeProbeScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version n6.0-fake"
  exit 0
fi
if [ "$2" = "-encoders" ]; then
  if [ -n "$PROBE_COUNT_FILE" ]; then echo probe >> "$PROBE_COUNT_FILE"; fi
  sleep 0.2
  cat <<'EOF'
Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC
 V..... mpeg4                MPEG-4 part 2
 A....D aac                  AAC (Advanced Audio Coding)
EOF
  exit 0
fi
exit 1
`

func writeFakeProbe(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake encoder requires sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(fakeProbeScript), 0o755); err != nil {
		t.Fatalf("cannot write fake encoder: %v", err)
	}
	return path
}

func newEncoderService(t *testing.T) *encoder.Service {
	t.Helper()
	var svc *encoder.Service
	app := fxtest.New(t,
		config.Module,
		fx.Provide(encoder.NewService),
		fx.Populate(&svc),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return svc
}

func TestResolve_OverrideWins(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/custom/bin/ffmpeg")
	svc := newEncoderService(t)

	if got := svc.Resolve(); got != "/custom/bin/ffmpeg" {
		t.Fatalf("override should win resolution, got: %s", got)
	}
}

func TestResolve_NeverFails(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "")
	svc := newEncoderService(t)

	// resolution always yields a candidate, validity is EnsureAvailable's job
	if got := svc.Resolve(); got == "" {
		t.Fatal("resolve must always return a candidate path")
	}
}

func TestEnsureAvailable(t *testing.T) {
	script := writeFakeProbe(t)
	t.Setenv("FFMPEG_PATH", script)
	svc := newEncoderService(t)

	if err := svc.EnsureAvailable(script); err != nil {
		t.Fatalf("fake encoder should be available: %v", err)
	}

	err := svc.EnsureAvailable(filepath.Join(t.TempDir(), "missing-ffmpeg"))
	if !errors.Is(err, encoder.ErrEncoderUnavailable) {
		t.Fatalf("expected ErrEncoderUnavailable, got: %v", err)
	}
	if !strings.Contains(err.Error(), "FFMPEG_PATH") {
		t.Fatalf("error should hint at the override variable: %v", err)
	}
}

func TestAvailableEncoders_ProbesOncePerPath(t *testing.T) {
	script := writeFakeProbe(t)
	countFile := filepath.Join(t.TempDir(), "probes")
	t.Setenv("FFMPEG_PATH", script)
	t.Setenv("PROBE_COUNT_FILE", countFile)
	svc := newEncoderService(t)

	for i := 0; i < 3; i++ {
		available, err := svc.AvailableEncoders(script)
		if err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
		if !available.Contains("libx264") || !available.Contains("aac") {
			t.Fatalf("probe %d missing expected encoders", i)
		}
	}

	data, err := os.ReadFile(countFile)
	if err != nil {
		t.Fatalf("probe never ran: %v", err)
	}
	if got := strings.Count(string(data), "probe"); got != 1 {
		t.Fatalf("expected exactly one capability probe, got %d", got)
	}
}

func TestAvailableEncoders_ConcurrentCallersShareOneProbe(t *testing.T) {
	script := writeFakeProbe(t)
	countFile := filepath.Join(t.TempDir(), "probes")
	t.Setenv("FFMPEG_PATH", script)
	t.Setenv("PROBE_COUNT_FILE", countFile)
	svc := newEncoderService(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			available, err := svc.AvailableEncoders(script)
			if err != nil {
				t.Errorf("probe failed: %v", err)
				return
			}
			if !available.Contains("libx264") {
				t.Error("probe result missing expected encoder")
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(countFile)
	if err != nil {
		t.Fatalf("probe never ran: %v", err)
	}
	if got := strings.Count(string(data), "probe"); got != 1 {
		t.Fatalf("concurrent callers must share one probe, got %d", got)
	}
}
