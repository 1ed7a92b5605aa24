package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"mauassist/internal/ingest"
	"mauassist/internal/logging"
)

// Importer loads a knowledge file into the custom knowledge base
type Importer interface {
	ImportFile(ctx context.Context, path, adminID string) (ingest.Result, error)
}

// Watcher monitors the import folder for new or changed knowledge files
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	importer    Importer
	folder      string
	importedBy  string
	allowedExts []string
	logger      *logging.Logger

	mu     sync.Mutex
	hashes map[string]string // path -> sha256 of last imported content
	done   chan struct{}
}

// NewWatcher creates a folder watcher with fsnotify initialization.
// Imported entries are attributed to importedBy.
func NewWatcher(importer Importer, folder, importedBy string, allowedExts []string, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithContext("error", err.Error()).Error("failed to create fsnotify watcher")
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if len(allowedExts) == 0 {
		allowedExts = []string{".yaml", ".yml", ".json"}
	}

	return &Watcher{
		fsWatcher:   fsw,
		importer:    importer,
		folder:      folder,
		importedBy:  importedBy,
		allowedExts: allowedExts,
		logger:      logger,
		hashes:      make(map[string]string),
		done:        make(chan struct{}),
	}, nil
}

// Start creates the folder if needed, imports files already present and
// begins the event loop. The loop stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	logger := w.logger.WithContext("folder_path", w.folder)
	logger.Debug("starting file watcher")

	if err := w.validatePath(w.folder); err != nil {
		w.fsWatcher.Close()
		close(w.done)
		return err
	}
	if err := os.MkdirAll(w.folder, 0755); err != nil {
		w.fsWatcher.Close()
		close(w.done)
		return fmt.Errorf("failed to create import folder: %w", err)
	}
	if err := w.fsWatcher.Add(w.folder); err != nil {
		w.fsWatcher.Close()
		close(w.done)
		return fmt.Errorf("failed to watch folder: %w", err)
	}

	w.scan(ctx)

	go w.eventLoop(ctx)

	logger.Info("watching import folder")
	return nil
}

// Wait blocks until the event loop has exited
func (w *Watcher) Wait() {
	<-w.done
}

// scan imports every allowed file already in the folder
func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.folder)
	if err != nil {
		w.logger.WithContext("error", err.Error()).Warn("failed to scan import folder")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.folder, entry.Name())
		if w.shouldProcess(path) {
			w.importFile(ctx, path)
		}
	}
}

// eventLoop processes filesystem events
func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.done)
	defer w.fsWatcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithContext("error", err.Error()).Error("watcher error")
		}
	}
}

// handleEvent imports created or modified files and forgets removed ones
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	logger := w.logger.WithFields(map[string]interface{}{
		"file_path":  event.Name,
		"event_type": event.Op.String(),
	})

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if !w.shouldProcess(event.Name) {
			return
		}
		logger.Debug("file changed")
		w.importFile(ctx, event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// entries already imported stay in the knowledge base
		w.mu.Lock()
		delete(w.hashes, event.Name)
		w.mu.Unlock()
		logger.Debug("file removed")
	}
}

// shouldProcess checks the extension and that path is a regular file
func (w *Watcher) shouldProcess(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	allowed := false
	for _, allowedExt := range w.allowedExts {
		if ext == allowedExt {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// validatePath blocks system directories
func (w *Watcher) validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("import folder is not set")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid folder path %s: %w", path, err)
	}
	systemDirs := []string{"/etc", "/System", "/Windows", "/sys", "/proc", "C:\\Windows", "C:\\System"}
	for _, sysDir := range systemDirs {
		if strings.HasPrefix(abs, sysDir) {
			return fmt.Errorf("cannot watch system directory: %s", path)
		}
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}

// importFile imports path unless its content was already imported
func (w *Watcher) importFile(ctx context.Context, path string) {
	logger := w.logger.WithContext("file_path", path)

	content, err := os.ReadFile(path)
	if err != nil {
		logger.WithContext("error", err.Error()).Error("failed to read file")
		return
	}
	if len(content) == 0 {
		// editors often create the file before writing it
		return
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	if w.hashes[path] == hash {
		w.mu.Unlock()
		logger.Debug("content unchanged, skipping")
		return
	}
	w.hashes[path] = hash
	w.mu.Unlock()

	res, err := w.importer.ImportFile(ctx, path, w.importedBy)
	if err != nil {
		w.mu.Lock()
		delete(w.hashes, path)
		w.mu.Unlock()
		logger.WithContext("error", err.Error()).Error("failed to import file")
		return
	}

	logger.WithFields(map[string]interface{}{
		"added":   res.Added,
		"skipped": res.Skipped,
	}).Info("file imported")
}
