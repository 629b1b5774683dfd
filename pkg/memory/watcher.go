package memory

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// NoteWatcher watches the import directory and triggers a sync when note
// files settle after a burst of changes.
type NoteWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func()
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewNoteWatcher creates a watcher that calls onChange after note changes
func NewNoteWatcher(logger zerolog.Logger, onChange func()) (*NoteWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	nw := &NoteWatcher{
		watcher:  watcher,
		logger:   logger,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go nw.run()

	return nw, nil
}

// Watch starts watching a directory
func (nw *NoteWatcher) Watch(path string) error {
	return nw.watcher.Add(path)
}

// Stop stops the watcher
func (nw *NoteWatcher) Stop() error {
	close(nw.stopCh)
	return nw.watcher.Close()
}

// run processes file system events
func (nw *NoteWatcher) run() {
	for {
		select {
		case event, ok := <-nw.watcher.Events:
			if !ok {
				return
			}

			// Only markdown notes are imported
			if !strings.HasSuffix(strings.ToLower(event.Name), ".md") {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				nw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Note change detected")

				nw.scheduleSync()
			}

		case err, ok := <-nw.watcher.Errors:
			if !ok {
				return
			}
			nw.logger.Error().Err(err).Msg("Note watcher error")

		case <-nw.stopCh:
			return
		}
	}
}

// scheduleSync debounces the sync trigger
func (nw *NoteWatcher) scheduleSync() {
	if nw.timer != nil {
		nw.timer.Stop()
	}

	nw.timer = time.AfterFunc(nw.debounce, func() {
		nw.logger.Debug().Msg("Syncing notes after file changes")
		nw.onChange()
	})
}
