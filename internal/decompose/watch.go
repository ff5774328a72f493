package decompose

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a vocabulary file into a Decomposer when it changes,
// so a table can be tuned without restarting the process. A reload that
// fails to parse or validate keeps the previous table.
type Watcher struct {
	path       string
	decomposer *Decomposer
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// WatchVocabulary starts watching path and applies valid reloads to d.
func WatchVocabulary(path string, d *Decomposer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors typically rename over the file,
	// which would drop a watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:       path,
		decomposer: d,
		watcher:    fsw,
		done:       make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			vocab, err := LoadVocabulary(w.path)
			if err != nil {
				log.Printf("[decompose] vocabulary reload skipped: %v", err)
				continue
			}
			w.decomposer.SetVocabulary(vocab)
			log.Printf("[decompose] vocabulary reloaded: %d entries", len(vocab.Entries))
		case <-w.watcher.Errors:
			// Keep watching.
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
