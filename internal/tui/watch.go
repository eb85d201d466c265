package tui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watchStore reports writes to the store file through send. The directory is
// watched rather than the file because saves replace it by rename.
func watchStore(path string, send func(tea.Msg), logger *log.Logger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	base := filepath.Base(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					logger.Debug("store changed on disk", "op", ev.Op.String())
					send(storeChangedMsg{})
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("store watcher error", "err", err)
			}
		}
	}()
	return w, nil
}
