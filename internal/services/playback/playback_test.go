package playback_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	"github.com/sandersonthethird/meetrec/internal/services/playback"
	"github.com/sandersonthethird/meetrec/internal/services/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

const fakeConvertScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version n6.0-fake"
  exit 0
fi
if [ "$2" = "-encoders" ]; then
  cat <<'EOF'
Encoders:
 ------
 V....D libx264              libx264 H.264 / AVC
 A....D aac                  AAC (Advanced Audio Coding)
EOF
  exit 0
fi
in=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then in="$arg"; fi
  prev="$arg"
  last="$arg"
done
if [ -n "$CONVERT_COUNT_FILE" ]; then echo convert >> "$CONVERT_COUNT_FILE"; fi
sleep 0.3
case "$in" in
  *bad*) echo "error: unreadable input" >&2; exit 1 ;;
esac
cp "$in" "$last"
`

func writeFakeConverter(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake encoder requires sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(fakeConvertScript), 0o755))
	return path
}

func newPlaybackApp(t *testing.T) (*playback.Service, string) {
	t.Helper()
	recordings := t.TempDir()
	t.Setenv("RECORDINGS_DIR", recordings)
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("FFMPEG_PATH", writeFakeConverter(t))

	var svc *playback.Service
	app := fxtest.New(t,
		config.Module,
		fx.Provide(encoder.NewService, playback.NewService),
		fx.Populate(&svc),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return svc, recordings
}

func TestEnsurePlayable_Mp4Unchanged(t *testing.T) {
	svc, _ := newPlaybackApp(t)

	got := svc.EnsurePlayable(context.Background(), "standup.mp4")
	assert.Equal(t, "standup.mp4", got)
}

func TestEnsurePlayable_ExistingDerivedShortCircuits(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "converts")
	t.Setenv("CONVERT_COUNT_FILE", countFile)
	svc, recordings := newPlaybackApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(recordings, "standup.webm"), []byte("source"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(recordings, "standup-compat.mp4"), []byte("converted"), 0o644))

	got := svc.EnsurePlayable(context.Background(), "standup.webm")
	assert.Equal(t, "standup-compat.mp4", got)

	_, err := os.ReadFile(countFile)
	assert.True(t, os.IsNotExist(err), "no conversion should have run")
}

func TestEnsurePlayable_ConvertsOnceForConcurrentCallers(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "converts")
	t.Setenv("CONVERT_COUNT_FILE", countFile)
	svc, recordings := newPlaybackApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(recordings, "standup.webm"), []byte("source"), 0o644))

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.EnsurePlayable(context.Background(), "standup.webm")
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, "standup-compat.mp4", got)
	}
	assert.FileExists(t, filepath.Join(recordings, "standup-compat.mp4"))

	data, err := os.ReadFile(countFile)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "convert"), "concurrent callers must share one conversion")
}

func TestEnsurePlayable_FailureFallsBackToOriginal(t *testing.T) {
	svc, recordings := newPlaybackApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(recordings, "bad-take.webm"), []byte("source"), 0o644))

	got := svc.EnsurePlayable(context.Background(), "bad-take.webm")
	assert.Equal(t, "bad-take.webm", got, "failed conversion degrades to the original file")
	assert.NoFileExists(t, filepath.Join(recordings, "bad-take-compat.mp4"), "partial output must be cleaned up")
}

func TestDerivedName(t *testing.T) {
	assert.Equal(t, "standup-compat.mp4", playback.DerivedName("standup.webm"))
	assert.Equal(t, "a.b-compat.mp4", playback.DerivedName("a.b.mkv"))
}

func TestResolveFilename(t *testing.T) {
	svc, recordings := newPlaybackApp(t)

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(recordings, name), []byte("x"), 0o644))
	}

	t.Run("verbatim", func(t *testing.T) {
		write("weekly-sync.mp4")
		got, ok := svc.ResolveFilename("weekly-sync", "weekly-sync.mp4")
		require.True(t, ok)
		assert.Equal(t, "weekly-sync.mp4", got)
	})

	t.Run("extension drift", func(t *testing.T) {
		write("retro.webm")
		got, ok := svc.ResolveFilename("retro", "retro.mp4")
		require.True(t, ok)
		assert.Equal(t, "retro.webm", got)
	})

	t.Run("derived variant", func(t *testing.T) {
		write("planning-compat.mp4")
		got, ok := svc.ResolveFilename("planning", "planning.mkv")
		require.True(t, ok)
		assert.Equal(t, "planning-compat.mp4", got)
	})

	t.Run("directory scan prefers specific names", func(t *testing.T) {
		write("demo.mp4")
		write("demo-day-extended-cut.mp4")
		got, ok := svc.ResolveFilename("demo", "")
		require.True(t, ok)
		assert.Equal(t, "demo.mp4", got)
	})

	t.Run("scan skips empty files", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(recordings, "allhands.mp4"), nil, 0o644))
		_, ok := svc.ResolveFilename("allhands", "")
		assert.False(t, ok, "a zero-byte file is unresolvable on every path")
	})

	t.Run("scan skips in-progress temp files", func(t *testing.T) {
		write("huddle" + recorder.TempSuffix)
		_, ok := svc.ResolveFilename("huddle", "")
		assert.False(t, ok)
	})

	t.Run("unknown meeting", func(t *testing.T) {
		_, ok := svc.ResolveFilename("never-recorded", "")
		assert.False(t, ok)
	})
}

func TestEnsurePlayable_CachesResolvedResult(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "converts")
	t.Setenv("CONVERT_COUNT_FILE", countFile)
	svc, recordings := newPlaybackApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(recordings, "standup.webm"), []byte("source"), 0o644))

	first := svc.EnsurePlayable(context.Background(), "standup.webm")
	require.Equal(t, "standup-compat.mp4", first)

	// the derived file vanishing does not matter while the cache entry lives
	require.NoError(t, os.Remove(filepath.Join(recordings, "standup-compat.mp4")))
	start := time.Now()
	second := svc.EnsurePlayable(context.Background(), "standup.webm")
	assert.Equal(t, "standup-compat.mp4", second)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "cached result must not re-convert")
}
