package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// followPollInterval re-reads the log even without a watcher event; some
// filesystems (network mounts, some containers) never deliver one.
const followPollInterval = 500 * time.Millisecond

// Follow delivers records as they are appended to path until ctx is done.
// With fromStart, records already in the file are delivered first;
// otherwise following starts at the current end. A trailing line without
// its newline is held back until the rest arrives. The file may not exist
// yet, but its directory must.
func Follow(ctx context.Context, path string, fromStart bool, fn func(Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	t := &tailer{path: path, fn: fn}
	if !fromStart {
		if info, err := os.Stat(path); err == nil {
			t.offset = info.Size()
		}
	}
	if err := t.drain(); err != nil {
		return err
	}

	target := filepath.Base(path)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.drain(); err != nil {
				return err
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				t.reset()
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if err := t.drain(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("fsnotify watcher error: %w", err)
		}
	}
}

// tailer tracks how far into the log Follow has read.
type tailer struct {
	path    string
	fn      func(Record)
	offset  int64
	partial []byte
}

func (t *tailer) reset() {
	t.offset = 0
	t.partial = nil
}

// drain delivers every complete line written since the last call.
func (t *tailer) drain() error {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat event log: %w", err)
	}
	if info.Size() < t.offset {
		// Truncated or replaced; start over
		t.reset()
	}
	if info.Size() == t.offset {
		return nil
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek event log: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(data[:i])
		data = data[i+1:]
		if len(line) == 0 {
			continue
		}
		if rec, ok := decodeLine(line); ok {
			t.fn(rec)
		}
	}
	t.partial = append([]byte(nil), data...)
	return nil
}
