package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of events a git checkout or merge
// produces into one resync.
const debounceWindow = 500 * time.Millisecond

// WatchSnapshot watches the snapshot blob for external rewrites (a git
// merge or another checkout touching loro.db) and reconciles: the
// on-disk document is merged into memory, the cache resyncs by version
// comparison, and subscribers of the affected resources are notified.
// It returns a stop function.
func (s *Server) WatchSnapshot(ctx context.Context) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: atomic replace swaps the inode
	// out from under a file watch.
	if err := watcher.Add(s.store.Dir()); err != nil {
		watcher.Close()
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var timer *time.Timer
		fire := func() {
			s.resyncFromDisk(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.store.Path() {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, fire)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("snapshot watcher error")
			}
		}
	}()

	stop := func() {
		watcher.Close()
		wg.Wait()
	}
	return stop, nil
}

// resyncFromDisk merges the on-disk snapshot into the live document and
// lets the version comparison decide whether the cache rebuilds. A
// rewrite by our own Save merges to an identical document, so the
// version matches and nothing happens.
func (s *Server) resyncFromDisk(ctx context.Context) {
	s.storeMu.Lock()
	err := s.store.Reload()
	s.storeMu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload snapshot after external change")
		return
	}

	reindexed, err := s.SyncCache(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to resync cache after external change")
		return
	}
	if reindexed {
		s.log.Info().Msg("snapshot changed externally, cache reindexed")
		s.notify(ctx, uriEntities, uriDecisions, uriTasks, uriTasksReady,
			uriTasksBlocked, uriPrompts, uriGraph, uriStats)
	}
}
