package playback

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sandersonthethird/meetrec/internal/services/recorder"
	"github.com/sandersonthethird/meetrec/utils"
)

// ResolveFilename finds the actual file on disk for a logical recording,
// compensating for extension drift from encoder fallbacks and for the
// playback converter producing a second file with a different suffix.
func (s *Service) ResolveFilename(meetingID, stored string) (string, bool) {
	if stored != "" {
		if utils.IsFileExists(filepath.Join(s.cfg.RecordingsDir, stored)) {
			return stored, true
		}

		variants := []string{
			utils.ChangePathFormat(stored, "mp4"),
			utils.ChangePathFormat(stored, "webm"),
			DerivedName(stored),
		}
		for _, variant := range variants {
			if utils.IsFileExists(filepath.Join(s.cfg.RecordingsDir, variant)) {
				logger.Debugf("resolved stale filename %s to %s", stored, variant)
				return variant, true
			}
		}
	}

	return s.scanForMeeting(meetingID)
}

// scanForMeeting scores directory entries by how specifically their name
// encodes the meeting ID, breaking ties by modification time.
func (s *Service) scanForMeeting(meetingID string) (string, bool) {
	entries, err := os.ReadDir(s.cfg.RecordingsDir)
	if err != nil {
		logger.Warnf("cannot scan recordings directory: %v", err)
		return "", false
	}

	sanitized := utils.SanitizeFilename(meetingID)
	var bestName string
	var bestScore float64
	var bestModTime time.Time

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, recorder.TempSuffix) {
			continue
		}
		if !strings.Contains(name, meetingID) && !strings.Contains(name, sanitized) {
			continue
		}

		// empty files are unresolvable everywhere, same as the verbatim
		// and variant checks
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}

		// a name that is mostly the meeting ID beats one that merely
		// mentions it somewhere
		score := float64(len(meetingID)) / float64(len(name))
		modTime := info.ModTime()

		if score > bestScore || (score == bestScore && modTime.After(bestModTime)) {
			bestName, bestScore, bestModTime = name, score, modTime
		}
	}

	if bestName == "" {
		return "", false
	}
	logger.Debugf("resolved meeting %s to %s by directory scan", meetingID, bestName)
	return bestName, true
}
