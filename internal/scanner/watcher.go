package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mixdeck/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettleDelay gives a copy in progress time to finish before the new
// file is read.
const DefaultSettleDelay = 500 * time.Millisecond

// Watcher applies file system events under the registered folders to the
// catalogue as they happen.
type Watcher struct {
	scanner *Scanner
	watcher *fsnotify.Watcher
	logger  *logrus.Logger
	settle  time.Duration

	folders   []models.Folder
	foldersMu sync.RWMutex

	loop    sync.WaitGroup
	pending sync.WaitGroup
	done    chan struct{}
}

// NewWatcher creates a watcher over every folder registered in the library.
func NewWatcher(s *Scanner, settle time.Duration) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		scanner: s,
		watcher: fw,
		logger:  s.logger,
		settle:  settle,
		done:    make(chan struct{}),
	}
	return w, nil
}

// Start adds the registered folders and begins dispatching events.
func (w *Watcher) Start() error {
	folders, err := w.scanner.lib.Folders.Folders()
	if err != nil {
		return err
	}
	for _, f := range folders {
		if err := w.AddFolder(f); err != nil {
			w.logger.WithError(err).WithField("path", f.Path).Warn("Could not watch folder")
		}
	}
	w.loop.Add(1)
	go w.watchFiles()
	w.logger.WithField("folders", len(folders)).Info("File watcher started")
	return nil
}

// AddFolder watches folder and all of its subdirectories.
func (w *Watcher) AddFolder(folder models.Folder) error {
	w.foldersMu.Lock()
	w.folders = append(w.folders, folder)
	w.foldersMu.Unlock()
	return w.addDirectory(folder.Path)
}

// addDirectory recursively walks and adds subdirectories to the watcher.
func (w *Watcher) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && isHidden(info.Name()) {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

// folderFor returns the registered folder that contains path.
func (w *Watcher) folderFor(path string) (models.Folder, bool) {
	w.foldersMu.RLock()
	defer w.foldersMu.RUnlock()

	var best models.Folder
	found := false
	for _, f := range w.folders {
		if path == f.Path || strings.HasPrefix(path, f.Path+string(filepath.Separator)) {
			if !found || len(f.Path) > len(best.Path) {
				best, found = f, true
			}
		}
	}
	return best, found
}

func (w *Watcher) watchFiles() {
	defer w.loop.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")

		case <-w.done:
			return
		}
	}
}

// handleFileEvent filters temporary files and dispatches the rest.
func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if isHidden(fileName) || strings.HasSuffix(fileName, ".tmp") {
		return
	}
	isAudioFile := w.scanner.extractor.IsAudioFile(event.Name)

	switch {
	case (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && isAudioFile:
		w.pending.Add(1)
		go func(name string) {
			defer w.pending.Done()
			select {
			case <-time.After(w.settle):
			case <-w.done:
				return
			}
			w.handleNewFile(name)
		}(event.Name)

	case (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && isAudioFile:
		w.handleRemovedFile(event.Name)

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectory(event.Name); err != nil {
				w.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
				return
			}
			w.logger.WithField("directory", event.Name).Info("Watching new directory")
			w.pending.Add(1)
			go func(dir string) {
				defer w.pending.Done()
				select {
				case <-time.After(w.settle):
				case <-w.done:
					return
				}
				w.catchUp(dir)
			}(event.Name)
		}
	}
}

func (w *Watcher) handleNewFile(path string) {
	folder, ok := w.folderFor(path)
	if !ok {
		return
	}
	if err := w.scanner.ScanFile(folder, path); err != nil {
		w.logger.WithError(err).WithField("file_path", path).Error("Error cataloguing new file")
		return
	}
	w.logger.WithField("file_path", path).Info("Catalogued new file")
}

// catchUp catalogues files that landed in a new directory before it was
// being watched.
func (w *Watcher) catchUp(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || isHidden(d.Name()) {
			return nil
		}
		if w.scanner.extractor.IsAudioFile(path) {
			w.handleNewFile(path)
		}
		return nil
	})
}

func (w *Watcher) handleRemovedFile(path string) {
	if err := w.scanner.MarkFileMissing(path); err != nil {
		w.logger.WithError(err).WithField("file_path", path).Error("Error marking track missing")
		return
	}
	w.logger.WithField("file_path", path).Info("Audio file removed")
}

// Close stops the watcher and waits for queued file handling to finish.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	w.loop.Wait()
	w.pending.Wait()
	return err
}
