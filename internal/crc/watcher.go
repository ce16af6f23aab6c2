package crc

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/agentkernel/core/internal/types"
)

// incomingFolders are the four source-type subfolders under
// crc/drop-in/incoming/ (§6.3).
var incomingFolders = map[string]SourceType{
	"repos":   SourceExternalRepo,
	"forks":   SourceFork,
	"mirrors": SourceMirror,
	"stale":   SourceStale,
}

// isTemporaryFile classifies dot-prefixed, .tmp/.partial/.download, and
// common OS-artifact file names as ignorable during ingest (§4.10).
func isTemporaryFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".tmp", ".partial", ".download":
		return true
	}
	switch base {
	case "Thumbs.db", ".DS_Store", "desktop.ini":
		return true
	}
	return false
}

// Watcher observes the incoming drop folders and ingests newly-written
// files into a Pipeline, grounded on the original crc watcher's
// fsnotify-driven design.
type Watcher struct {
	root     string
	pipeline *Pipeline
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher constructs a Watcher rooted at a crc/drop-in/incoming
// directory, creating the four source-type subfolders if absent.
func NewWatcher(root string, pipeline *Pipeline) (*Watcher, error) {
	for folder := range incomingFolders {
		if err := os.MkdirAll(filepath.Join(root, folder), 0o755); err != nil {
			return nil, types.NewError(types.KindExternal, "crc.NewWatcher", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, types.NewError(types.KindExternal, "crc.NewWatcher", err)
	}
	for folder := range incomingFolders {
		if err := fsw.Add(filepath.Join(root, folder)); err != nil {
			fsw.Close()
			return nil, types.NewError(types.KindExternal, "crc.NewWatcher", err)
		}
	}

	return &Watcher{root: root, pipeline: pipeline, fsw: fsw, done: make(chan struct{})}, nil
}

// Run processes filesystem events until Stop is called. Intended to run
// on its own goroutine.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[CRC] watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if isTemporaryFile(event.Name) {
		return
	}

	sourceType := w.classify(event.Name)
	if sourceType == "" {
		return
	}

	manifest := DropManifest{
		Name:       filepath.Base(event.Name),
		Source:     event.Name,
		SourceType: sourceType,
	}
	drop := w.pipeline.Ingest(manifest)
	log.Printf("[CRC] ingested drop %s from %s (source_type=%s)", drop.ID, event.Name, sourceType)
}

func (w *Watcher) classify(path string) SourceType {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 {
		return ""
	}
	return incomingFolders[parts[0]]
}

// Stop halts event processing and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}
