package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch watches the provided configuration file for changes until ctx is
// done. Every time the file is rewritten with a valid configuration, fn is
// called with the reloaded configuration. Invalid rewrites are logged and
// skipped.
func Watch(ctx context.Context, logger *logrus.Entry, configFile string, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	defer w.Close()

	configFile = filepath.Clean(configFile)
	if err = w.Add(filepath.Dir(configFile)); err != nil {
		return fmt.Errorf("error watching %s: %w", filepath.Dir(configFile), err)
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != configFile {
				continue
			}

			// Config rewritten
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			c, err := Load(configFile)
			if err != nil {
				// Editors and deploy tools truncate the file before writing it,
				// which produces a write of an empty file first.
				if errors.Is(err, io.EOF) {
					continue
				}

				logger.
					WithField("error", err.Error()).
					Error("error loading config")

				continue
			}

			fn(c)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			logger.
				WithField("error", err.Error()).
				Error("error watching files")

		case <-ctx.Done():
			return nil
		}
	}
}
