// Package watch monitors a directory tree and reports file
// modifications, one line per write event.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Options configures the watch behaviour.
type Options struct {
	// Dir is the root directory to watch recursively.
	Dir string

	// Out is the writer for the per-event lines and status messages.
	Out io.Writer

	// Logger is used for structured logging of watcher errors.
	Logger *slog.Logger
}

// Run watches the directory tree rooted at opts.Dir and prints one
// "Modified file: <path>" line per write event. It blocks until the
// context is cancelled or a SIGINT/SIGTERM signal is received, then
// prints a stopping message and returns nil. The underlying watch is
// released on every exit path.
func Run(ctx context.Context, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, opts.Dir); err != nil {
		return fmt.Errorf("watching %q: %w", opts.Dir, err)
	}

	return run(ctx, watcher, opts)
}

// run drives the event loop until the context is cancelled, a signal
// arrives, or the watcher's channels close. Every exit prints the
// stopping message exactly once.
func run(ctx context.Context, watcher *fsnotify.Watcher, opts Options) error {
	// Trap SIGINT / SIGTERM for a clean exit.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "Listening for changes in: %s\n", opts.Dir)

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "Stopping...")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				fmt.Fprintln(opts.Out, "Stopping...")
				return nil
			}

			// Directories created under the tree join the watch set.
			// The creation itself is not reported.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := addRecursive(watcher, event.Name); addErr != nil {
						opts.Logger.Error("watching new directory",
							slog.String("path", event.Name),
							slog.String("error", addErr.Error()),
						)
					}
				}
			}

			// Only modifications are reported. Create, remove, rename,
			// and chmod events produce no output.
			if event.Has(fsnotify.Write) {
				fmt.Fprintf(opts.Out, "Modified file: %s\n", event.Name)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				fmt.Fprintln(opts.Out, "Stopping...")
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return watcher.Add(path)
		}

		return nil
	})
}
