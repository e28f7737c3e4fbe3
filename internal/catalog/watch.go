package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrReloadRejected is returned when a new catalog would orphan posted entries.
var ErrReloadRejected = errors.New("catalog reload rejected")

// EntryChecker reports whether any posted entry references a ledger.
type EntryChecker interface {
	HasEntries(ctx context.Context, ledgerID string) (bool, error)
}

// ReloadGuard vets ledgers that a reload removes or whose nature it changes.
type ReloadGuard func(ctx context.Context, ledgerIDs []string) error

// EntriesGuard refuses reloads that remove, or change the nature of, ledgers
// that already carry posted entries.
func EntriesGuard(store EntryChecker) ReloadGuard {
	return func(ctx context.Context, ledgerIDs []string) error {
		var referenced []string
		for _, id := range ledgerIDs {
			has, err := store.HasEntries(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to check entries for ledger %q: %w", id, err)
			}
			if has {
				referenced = append(referenced, id)
			}
		}
		if len(referenced) > 0 {
			return fmt.Errorf("%w: ledgers with posted entries cannot be removed or change nature: %s",
				ErrReloadRejected, strings.Join(referenced, ", "))
		}
		return nil
	}
}

// protectedChanges lists ledgers present in prev that next drops or re-natures.
func protectedChanges(prev, next *Snapshot) []string {
	var ids []string
	for id, old := range prev.ledgers {
		cur, ok := next.ledgers[id]
		if !ok || cur.Nature != old.Nature {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Reload reads path and swaps the snapshot in if guard accepts it. On any
// failure the current snapshot keeps being served.
//
// The guard runs again once the new snapshot is live: a post that landed on a
// protected ledger between the first check and the swap rolls the reload back.
// Posts validated against the old snapshot but still committing after the
// second check are not caught.
func (c *Catalog) Reload(ctx context.Context, path string, guard ReloadGuard) error {
	next, err := LoadFile(path)
	if err != nil {
		return err
	}
	prev := c.Snapshot()
	changed := protectedChanges(prev, next)
	if guard == nil || len(changed) == 0 {
		c.Replace(next)
		return nil
	}

	if err := guard(ctx, changed); err != nil {
		return err
	}
	if !c.current.CompareAndSwap(prev, next) {
		return fmt.Errorf("%w: catalog changed during reload", ErrReloadRejected)
	}
	if err := guard(ctx, changed); err != nil {
		c.current.CompareAndSwap(next, prev)
		return err
	}
	return nil
}

// Watch reloads the catalog whenever path changes, until ctx is cancelled.
// The parent directory is watched so editors that replace the file by rename
// are picked up. Bursts of events are coalesced.
func (c *Catalog) Watch(ctx context.Context, path string, guard ReloadGuard, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	log.Info("watching catalog", "path", abs)

	const settle = 200 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(settle)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("catalog watcher error", "error", err)

		case <-timer.C:
			if err := c.Reload(ctx, abs, guard); err != nil {
				log.Error("catalog reload failed, keeping previous version", "path", abs, "error", err)
				continue
			}
			log.Info("catalog reloaded", "path", abs, "ledgers", len(c.Snapshot().ordered))
		}
	}
}
