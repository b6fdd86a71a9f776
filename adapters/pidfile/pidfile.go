// Package pidfile reads the master pid that gunicorn records with --pid.
package pidfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound means the pid file does not exist. It matches gunicorn.ErrMasterNotRunning.
	ErrNotFound = fmt.Errorf("pid file not found (%w)", gunicorn.ErrMasterNotRunning)
	// ErrInvalid means the pid file does not hold a positive integer.
	ErrInvalid = errors.New("pid file is invalid")
)

// Read returns the pid stored in path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %s contains %q", ErrInvalid, path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// File is a pid file at a fixed location. It implements ports.PIDReader.
type File struct {
	Path string
}

// New returns a File for name resolved against dir (name is kept as-is when absolute).
func New(dir, name string) File {
	if filepath.IsAbs(name) {
		return File{Path: name}
	}
	return File{Path: filepath.Join(dir, name)}
}

// ReadPID reads the recorded pid.
func (f File) ReadPID() (int, error) {
	return Read(f.Path)
}

// Wait blocks until the pid file exists and holds a valid pid, or ctx ends.
// The parent directory is watched rather than the file because the file
// usually does not exist yet and may be written via rename.
func (f File) Wait(ctx context.Context, logger zerolog.Logger) (int, error) {
	if pid, err := Read(f.Path); err == nil {
		return pid, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return 0, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.Path)
	if err := watcher.Add(dir); err != nil {
		return 0, fmt.Errorf("watch directory: %w", err)
	}

	// The file may have appeared between the first read and Add.
	if pid, err := Read(f.Path); err == nil {
		return pid, nil
	}

	filename := filepath.Base(f.Path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return 0, fmt.Errorf("watcher closed")
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("pid file changed")

			// An empty file is normal between create and the first write.
			pid, err := Read(f.Path)
			if err == nil {
				return pid, nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return 0, fmt.Errorf("watcher closed")
			}
			logger.Warn().Err(err).Msg("pid file watcher error")

		case <-ctx.Done():
			return 0, fmt.Errorf("wait for %s: %w", f.Path, ctx.Err())
		}
	}
}
