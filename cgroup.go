// @license
// Copyright (C) 2025  Dinko Korunic
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.


package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const CGroupRootPath = "/sys/fs/cgroup"

var ErrNotStatT = errors.New("not a syscall.Stat_t") // not a syscall.Stat_t for path %s

// cgroupResolver maps cgroup ids (cgroup directory inode numbers on cgroup v2)
// to paths under the cgroup root. New cgroups are picked up from fsnotify
// events, anything still unknown triggers a full rescan once.
type cgroupResolver struct {
	root    string
	log     *zap.Logger
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	cache map[uint64]string
}

// newCGroupResolver walks root and starts watching it for new cgroups.
//
// Parameters:
//
//	root string: cgroup v2 mount point, normally CGroupRootPath.
//	log *zap.Logger: logger for watch errors.
//
// Returns:
//
//	*cgroupResolver: resolver with the initial mapping loaded.
//	error: error creating the filesystem watcher or walking root.
func newCGroupResolver(root string, log *zap.Logger) (*cgroupResolver, error) {
	r := &cgroupResolver{
		root:  root,
		log:   log,
		cache: make(map[uint64]string),
	}

	mapping, err := cGroupWalk(root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	maps.Copy(r.cache, mapping)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	r.watcher = watcher

	for _, p := range mapping {
		// inotify watch limits may be hit on large trees, rescans cover the rest
		_ = watcher.Add(p)
	}

	return r, nil
}

// Resolve returns the cgroup path for id. Id 0 is not a valid cgroup id and
// resolves to an empty string; unknown ids resolve to a placeholder that is
// cached as a negative entry.
func (r *cgroupResolver) Resolve(id uint64) string {
	if id == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[id]; ok {
		return p
	}

	// force the cache refresh if missing
	if mapping, err := cGroupWalk(r.root); err == nil {
		maps.Copy(r.cache, mapping)
	}

	if _, ok := r.cache[id]; !ok {
		r.cache[id] = fmt.Sprintf("cgroup-id: %v", id)
	}

	return r.cache[id]
}

// run processes filesystem events until ctx is done, then closes the watcher.
func (r *cgroupResolver) run(ctx context.Context) {
	defer func() { _ = r.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				r.add(event.Name)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}

			r.log.Warn("cgroup watcher error", zap.Error(err))
		}
	}
}

// add records a newly created cgroup directory and starts watching it.
func (r *cgroupResolver) add(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	i, err := getInodeID(path)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.cache[i] = path
	r.mu.Unlock()

	_ = r.watcher.Add(path)
}

// cGroupWalk walks the cgroup tree under dir and returns a mapping of inode
// numbers to directory paths. Disappearing entries are skipped.
func cGroupWalk(dir string) (map[uint64]string, error) {
	mapping := map[uint64]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// ignore disappearing files/directories
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !d.IsDir() {
			return nil
		}

		i, err := getInodeID(path)
		if err != nil {
			// ignore disappearing files/directories
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		mapping[i] = path

		return nil
	})

	return mapping, err
}

// getInodeID returns the inode number of path.
func getInodeID(path string) (uint64, error) {
	i, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	s, ok := i.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotStatT, path)
	}

	return s.Ino, nil
}
