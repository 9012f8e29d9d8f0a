package recorder

import (
	"os"
	"path/filepath"
	"strings"
)

// CleanupOrphans deletes temp files left behind by a prior unfinalized
// session. Runs once at startup before any session can start; failures are
// logged rather than returned so they never block application start.
func (r *Service) CleanupOrphans() error {
	entries, err := os.ReadDir(r.cfg.RecordingsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		logger.Warnf("cannot scan recordings directory: %v", err)
		return nil
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TempSuffix) {
			continue
		}
		orphan := filepath.Join(r.cfg.RecordingsDir, entry.Name())
		if err := os.Remove(orphan); err != nil {
			logger.Warnf("cannot remove orphaned temp file %s: %v", orphan, err)
			continue
		}
		logger.Infof("removed orphaned temp file %s", orphan)
	}
	return nil
}
