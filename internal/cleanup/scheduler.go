// Package cleanup removes stale chunk directories and temporary files from
// the work directory.
package cleanup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/audio"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/logger"
)

// Stats summarizes one sweep.
type Stats struct {
	Files int
	Dirs  int
	Bytes int64
}

// Scheduler handles cleanup of temporary files
type Scheduler struct {
	workDir  string
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger
	now      func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(workDir string, intervalMinutes, maxAgeHours int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		workDir:  workDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		log:      logger.WithComponent(log, "cleanup"),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.Sweep()
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info().Msg("cleanup scheduler stopped")
	})
}

// Sweep removes chunk directories and files older than the maximum age,
// then any namespace directory left empty.
func (s *Scheduler) Sweep() Stats {
	var stats Stats
	cutoff := s.now().Add(-s.maxAge)
	touched := map[string]bool{}

	err := filepath.WalkDir(s.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if path == s.workDir {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		if d.IsDir() {
			if !strings.HasSuffix(d.Name(), audio.SegmentsSuffix) {
				return nil
			}
			size := dirSize(path)
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("failed to delete stale chunk directory")
				return fs.SkipDir
			}
			stats.Dirs++
			stats.Bytes += size
			touched[filepath.Dir(path)] = true
			s.log.Debug().Str("path", path).Msg("deleted stale chunk directory")
			return fs.SkipDir
		}

		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to delete old file")
			return nil
		}
		stats.Files++
		stats.Bytes += info.Size()
		touched[filepath.Dir(path)] = true
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("error during cleanup")
	}

	stats.Dirs += s.removeEmptyDirs(cutoff, touched)

	if stats.Files > 0 || stats.Dirs > 0 {
		s.log.Info().
			Int("files", stats.Files).
			Int("dirs", stats.Dirs).
			Float64("freed_mb", float64(stats.Bytes)/(1024*1024)).
			Msg("cleanup complete")
	}
	return stats
}

// removeEmptyDirs deletes empty first-level directories of the work dir
// that are stale or were emptied by this sweep.
func (s *Scheduler) removeEmptyDirs(cutoff time.Time, touched map[string]bool) int {
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.workDir, e.Name())
		children, err := os.ReadDir(path)
		if err != nil || len(children) > 0 {
			continue
		}
		info, err := e.Info()
		if err != nil || (!touched[path] && !info.ModTime().Before(cutoff)) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed
}

func dirSize(root string) int64 {
	var size int64
	filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

// EnsureWorkDir creates the work directory if it doesn't exist
func EnsureWorkDir(workDir string) error {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	return nil
}
