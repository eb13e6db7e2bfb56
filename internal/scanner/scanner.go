// Package scanner keeps the catalogue in step with the registered folders.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mixdeck/internal/database"
	"mixdeck/internal/library"
	"mixdeck/internal/metadata"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// Stats summarises one folder scan.
type Stats struct {
	FolderID  int64
	Added     int64
	Updated   int64
	Unchanged int64
	Missing   int64
	Failed    int64
	NumFiles  int
	TotalSize int64
	Elapsed   time.Duration
}

// Scanner walks folders, extracts metadata from new or changed files and
// marks vanished files missing.
type Scanner struct {
	lib       *library.Library
	extractor *metadata.Extractor
	logger    *logrus.Logger
	workers   int
}

// New creates a scanner. workers <= 0 uses one worker per CPU.
func New(lib *library.Library, extractor *metadata.Extractor, logger *logrus.Logger, workers int) *Scanner {
	if logger == nil {
		logger = lib.Logger()
	}
	if extractor == nil {
		extractor = metadata.NewExtractor(nil, logger)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{lib: lib, extractor: extractor, logger: logger, workers: workers}
}

// Extractor returns the extractor used for files.
func (s *Scanner) Extractor() *metadata.Extractor { return s.extractor }

type scanFile struct {
	path string
	info fs.FileInfo
	prev *models.TrackInfo
}

// ScanAll scans every registered folder in turn.
func (s *Scanner) ScanAll(ctx context.Context, force bool) ([]Stats, error) {
	folders, err := s.lib.Folders.Folders()
	if err != nil {
		return nil, err
	}
	all := make([]Stats, 0, len(folders))
	for _, folder := range folders {
		stats, err := s.ScanFolder(ctx, folder, force)
		if err != nil {
			return all, err
		}
		all = append(all, stats)
	}
	return all, nil
}

// ScanFolder brings one folder's tracks up to date. Files whose size and
// modification time match the catalogue are skipped unless force is set.
func (s *Scanner) ScanFolder(ctx context.Context, folder models.Folder, force bool) (Stats, error) {
	start := time.Now()
	stats := Stats{FolderID: folder.FolderID}
	log := s.logger.WithFields(logrus.Fields{"folder_id": folder.FolderID, "path": folder.Path})
	log.Info("Scanning folder")

	var known []models.TrackInfo
	err := s.lib.DB().Do(func(st database.Store) error {
		var err error
		known, err = st.TracksInFolder(folder.FolderID)
		return err
	})
	if err != nil {
		return stats, err
	}
	byPath := make(map[string]*models.TrackInfo, len(known))
	for i := range known {
		byPath[known[i].FilePath] = &known[i]
	}
	seen := make(map[string]bool, len(known))

	var files []scanFile
	walkErr := filepath.WalkDir(folder.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == folder.Path {
				return err
			}
			log.WithError(err).WithField("entry", path).Warn("Skipping unreadable entry")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != folder.Path && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || !s.extractor.IsAudioFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		seen[path] = true
		stats.NumFiles++
		stats.TotalSize += info.Size()

		prev := byPath[path]
		if prev != nil && !force && !prev.NeedsRescan(info.ModTime(), info.Size()) {
			stats.Unchanged++
			return nil
		}
		files = append(files, scanFile{path: path, info: info, prev: prev})
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return stats, fmt.Errorf("%w: scan %s: %v", models.ErrCancelled, folder.Path, walkErr)
		}
		return stats, fmt.Errorf("%w: scan %s: %v", models.ErrIO, folder.Path, walkErr)
	}

	s.process(ctx, folder, files, &stats)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("%w: scan %s: %v", models.ErrCancelled, folder.Path, err)
	}

	var missing []int64
	for path, t := range byPath {
		if !seen[path] && !t.IsMissing {
			missing = append(missing, t.TrackID)
		}
	}
	if len(missing) > 0 {
		err := s.lib.DB().Do(func(st database.Store) error { return st.MarkMissing(missing) })
		if err != nil {
			return stats, err
		}
		stats.Missing = int64(len(missing))
	}

	folder.NumFiles = stats.NumFiles
	folder.TotalSizeBytes = stats.TotalSize
	folder.LastScannedTime = time.Now()
	if err := s.lib.Folders.UpdateAfterScan(folder); err != nil {
		return stats, err
	}

	stats.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"added":     stats.Added,
		"updated":   stats.Updated,
		"unchanged": stats.Unchanged,
		"missing":   stats.Missing,
		"failed":    stats.Failed,
		"elapsed":   stats.Elapsed,
	}).Info("Folder scan complete")
	return stats, nil
}

// process extracts and stores files on a pool of workers.
func (s *Scanner) process(ctx context.Context, folder models.Folder, files []scanFile, stats *Stats) {
	var wg sync.WaitGroup
	jobs := make(chan scanFile, 100)

	for range min(s.workers, max(len(files), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				if ctx.Err() != nil {
					continue
				}
				added, err := s.store(folder, f)
				switch {
				case err != nil:
					atomic.AddInt64(&stats.Failed, 1)
					s.logger.WithError(err).WithField("file_path", f.path).Error("Error cataloguing file")
				case added:
					atomic.AddInt64(&stats.Added, 1)
				default:
					atomic.AddInt64(&stats.Updated, 1)
				}
			}
		}()
	}

	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
}

// store extracts one file and upserts it, keeping user tags of a known track.
func (s *Scanner) store(folder models.Folder, f scanFile) (bool, error) {
	res, err := s.extractor.ExtractFromFile(f.path)
	if err != nil {
		return false, err
	}
	track := res.Track
	track.FolderID = folder.FolderID

	genreIDs, err := s.lib.Tags.TagIDs(res.Genres)
	if err != nil {
		return false, err
	}
	if len(genreIDs) > 0 {
		var ids []int64
		if f.prev != nil {
			ids = append(ids, f.prev.TagIDs...)
		}
		track.TagIDs = mergeIDs(ids, genreIDs)
	}

	err = s.lib.DB().Transaction(func(st database.Store) error {
		_, err := st.UpsertTrack(track)
		return err
	})
	if err != nil {
		return false, err
	}
	s.logger.WithFields(logrus.Fields{
		"artist": track.Artist,
		"title":  track.Title,
	}).Debug("Catalogued track")
	return f.prev == nil, nil
}

// ScanFile catalogues a single file inside folder, as the watcher does for
// new files.
func (s *Scanner) ScanFile(folder models.Folder, path string) error {
	if !s.extractor.IsAudioFile(path) {
		return fmt.Errorf("%w: not an audio file: %s", models.ErrInvalidArgument, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}

	var prev *models.TrackInfo
	err = s.lib.DB().Do(func(st database.Store) error {
		t, err := st.GetTrackByPath(path)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prev = &t
		return nil
	})
	if err != nil {
		return err
	}
	if prev != nil && !prev.NeedsRescan(info.ModTime(), info.Size()) {
		return nil
	}
	_, err = s.store(folder, scanFile{path: path, info: info, prev: prev})
	return err
}

// MarkFileMissing flags the track at path missing, if it is catalogued.
func (s *Scanner) MarkFileMissing(path string) error {
	return s.lib.DB().Do(func(st database.Store) error {
		id, err := st.TrackIDByPath(path)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return st.MarkMissing([]int64{id})
	})
}

func mergeIDs(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, id := range append(a, b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
