package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tracelens/trace-analyzer/pkg/finder"
	"github.com/tracelens/trace-analyzer/pkg/logging"
)

// ErrNotDirectory is returned when the watched root is a plain file
var ErrNotDirectory = errors.New("watch root is not a directory")

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeTraceWritten ChangeType = iota
	ChangeTypeTraceRemoved
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeTraceWritten:
		return "written"
	case ChangeTypeTraceRemoved:
		return "removed"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchDelay groups the burst of events an editor or exporter produces for one write
const batchDelay = 100 * time.Millisecond

// FileWatcher watches a directory tree of trace files
type FileWatcher struct {
	watcher *fsnotify.Watcher
	root    string
	events  chan ChangeEvent
}

// NewFileWatcher creates a new file system watcher for a trace directory
func NewFileWatcher(root string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		root:    root,
		events:  make(chan ChangeEvent, 100),
	}, nil
}

// Start adds the directory tree and begins forwarding events until ctx is done
func (fw *FileWatcher) Start(ctx context.Context) error {
	info, err := os.Stat(fw.root)
	if err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to stat %s: %w", fw.root, err)
	}
	if !info.IsDir() {
		fw.watcher.Close()
		return fmt.Errorf("%s: %w", fw.root, ErrNotDirectory)
	}

	count, err := fw.addTree(fw.root)
	if err != nil {
		fw.watcher.Close()
		return err
	}
	logging.Info("started watching trace directory", "path", fw.root, "directories", count)

	go fw.processEvents(ctx)
	return nil
}

// addTree watches dir and every non-hidden directory below it
func (fw *FileWatcher) addTree(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip entries we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			logging.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return count, nil
}

// processEvents batches trace file events by change type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	var written, removed []string

	flushTimer := time.NewTimer(batchDelay)
	flushTimer.Stop()

	flush := func() {
		if len(written) > 0 {
			fw.send(ctx, ChangeEvent{Type: ChangeTypeTraceWritten, Paths: written, Timestamp: time.Now()})
			written = nil
		}
		if len(removed) > 0 {
			fw.send(ctx, ChangeEvent{Type: ChangeTypeTraceRemoved, Paths: removed, Timestamp: time.Now()})
			removed = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				flush()
				return
			}

			if event.Has(fsnotify.Create) && fw.isNewDir(event.Name) {
				if _, err := fw.addTree(event.Name); err != nil {
					logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			if !finder.IsTraceFile(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				removed = append(removed, event.Name)
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				written = append(written, event.Name)
			default:
				continue
			}
			flushTimer.Reset(batchDelay)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) isNewDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (fw *FileWatcher) send(ctx context.Context, event ChangeEvent) {
	select {
	case fw.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the channel of change events. It is closed once the watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
