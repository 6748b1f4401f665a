package cleanup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"facegate/internal/storage"
)

// Catalog lists every path a capture record still points to.
type Catalog interface {
	ReferencedPaths(ctx context.Context) (map[string]struct{}, error)
}

// Store lists and removes stored capture files.
type Store interface {
	ListFiles() ([]storage.File, error)
	Remove(paths ...string) error
}

// Progress is notified while orphans are removed (e.g. a CLI progress bar).
type Progress interface {
	ChangeMax(max int)
	Add(n int) error
}

// Report summarizes one cleanup cycle.
type Report struct {
	Scanned int `json:"scanned"`
	Orphans int `json:"orphans"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Service reclaims image and embedding files that no capture record
// references, e.g. after a catalog insert failed.
type Service struct {
	catalog       Catalog
	store         Store
	grace         time.Duration
	checkInterval time.Duration
	now           func() time.Time
	stopChan      chan struct{}
}

// NewService creates a cleanup service. Files younger than grace are never
// touched so in-flight enrollments keep their files.
func NewService(catalog Catalog, store Store, grace, checkInterval time.Duration) *Service {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Minute
	}
	log.Infof("Initializing CleanupService: Grace=%s, CheckInterval=%s", grace, checkInterval)
	return &Service{
		catalog:       catalog,
		store:         store,
		grace:         grace,
		checkInterval: checkInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the cleanup cycle.
func (s *Service) StartBackgroundCleanup(ctx context.Context) {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go func() {
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		s.runLogged(ctx)
		for {
			select {
			case <-ticker.C:
				s.runLogged(ctx)
			case <-ctx.Done():
				log.Info("Stopping background cleanup routine.")
				return
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background cleanup routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

func (s *Service) runLogged(ctx context.Context) {
	if _, err := s.RunCleanupCycle(ctx, nil); err != nil {
		log.Errorf("Cleanup: cycle failed: %v", err)
	}
}

// RunCleanupCycle removes every unreferenced file older than the grace period.
// progress may be nil.
func (s *Service) RunCleanupCycle(ctx context.Context, progress Progress) (Report, error) {
	var report Report

	referenced, err := s.catalog.ReferencedPaths(ctx)
	if err != nil {
		return report, fmt.Errorf("cleanup: %w", err)
	}
	clean := make(map[string]struct{}, len(referenced))
	for p := range referenced {
		clean[filepath.Clean(p)] = struct{}{}
	}

	files, err := s.store.ListFiles()
	if err != nil {
		return report, fmt.Errorf("cleanup: %w", err)
	}
	report.Scanned = len(files)

	cutoff := s.now().Add(-s.grace)
	var orphans []string
	for _, f := range files {
		if _, ok := clean[filepath.Clean(f.Path)]; ok {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		orphans = append(orphans, f.Path)
	}
	report.Orphans = len(orphans)

	if len(orphans) == 0 {
		log.Debugf("Cleanup: no orphaned files among %d", report.Scanned)
		return report, nil
	}
	if progress != nil {
		progress.ChangeMax(len(orphans))
	}

	log.Infof("Cleanup: Found %d orphaned file(s) to delete.", len(orphans))
	for _, p := range orphans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.store.Remove(p); err != nil {
			log.Errorf("Cleanup: Failed to delete %s: %v", p, err)
			report.Failed++
		} else {
			report.Removed++
		}
		if progress != nil {
			_ = progress.Add(1)
		}
	}

	log.Infof("Cleanup cycle finished. Successfully deleted: %d, Failed: %d", report.Removed, report.Failed)
	return report, nil
}
