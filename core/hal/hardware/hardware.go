/*
   Copyright The Zero OS Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package hardware is the HAL backend for a real machine: binaries come
// from a watched directory on disk, block storage and secrets are two
// physically separate bbolt files (so a keystore compromise cannot walk
// the storage file's b-tree for free), and entropy/time come from the
// OS.
package hardware

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	bolt "go.etcd.io/bbolt"

	"github.com/containerd/log"
	"github.com/zeroos-project/zeroos/core/hal"
	"github.com/zeroos-project/zeroos/core/kernel"
)

var (
	bucketKeyBlocks  = []byte("blocks")
	bucketKeySecrets = []byte("secrets")
)

// HAL is the hardware platform's hal.HAL implementation.
type HAL struct {
	binDir string

	mu        sync.RWMutex
	binaries  map[string][]byte
	watcher   *fsnotify.Watcher
	watchDone chan struct{}

	storageDB  *bolt.DB
	keystoreDB *bolt.DB

	storage  *blockFamily
	keystore *secretFamily
	network  *networkFamily

	boot time.Time
}

// Config is the on-disk layout hardware HAL needs.
type Config struct {
	BinDir         string
	StorageDBPath  string
	KeystoreDBPath string
}

// New opens both bbolt files, loads the current contents of BinDir, and
// starts an fsnotify watch so binaries added or changed after boot
// become visible without a restart.
func New(cfg Config) (*HAL, error) {
	storageDB, err := bolt.Open(cfg.StorageDBPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening storage db: %w", err)
	}
	if err := storageDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKeyBlocks)
		return err
	}); err != nil {
		storageDB.Close()
		return nil, fmt.Errorf("initializing storage bucket: %w", err)
	}

	keystoreDB, err := bolt.Open(cfg.KeystoreDBPath, 0600, nil)
	if err != nil {
		storageDB.Close()
		return nil, fmt.Errorf("opening keystore db: %w", err)
	}
	if err := keystoreDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKeySecrets)
		return err
	}); err != nil {
		storageDB.Close()
		keystoreDB.Close()
		return nil, fmt.Errorf("initializing keystore bucket: %w", err)
	}

	h := &HAL{
		binDir:     cfg.BinDir,
		binaries:   make(map[string][]byte),
		storageDB:  storageDB,
		keystoreDB: keystoreDB,
		boot:       time.Now(),
	}
	h.storage = &blockFamily{db: storageDB, tracker: hal.NewRequestTracker(kernel.MaxPendingStorage)}
	h.keystore = &secretFamily{db: keystoreDB, tracker: hal.NewRequestTracker(kernel.MaxPendingKeystore)}
	h.network = &networkFamily{tracker: hal.NewRequestTracker(kernel.MaxPendingNetwork)}

	if err := h.loadBinDir(); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.startWatch(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *HAL) loadBinDir() error {
	matches, err := filepath.Glob(filepath.Join(h.binDir, "*"))
	if err != nil {
		return fmt.Errorf("listing bin dir: %w", err)
	}
	for _, path := range matches {
		name := filepath.Base(path)
		data, err := readFile(path)
		if err != nil {
			log.L.WithError(err).WithField("path", path).Warn("failed to load binary, skipping")
			continue
		}
		h.mu.Lock()
		h.binaries[name] = data
		h.mu.Unlock()
	}
	return nil
}

func (h *HAL) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting binary directory watch: %w", err)
	}
	if err := w.Add(h.binDir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", h.binDir, err)
	}
	h.watcher = w
	h.watchDone = make(chan struct{})
	go h.watchLoop()
	return nil
}

func (h *HAL) watchLoop() {
	defer close(h.watchDone)
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			data, err := readFile(ev.Name)
			if err != nil {
				log.L.WithError(err).WithField("path", ev.Name).Warn("failed to reload binary")
				continue
			}
			h.mu.Lock()
			h.binaries[filepath.Base(ev.Name)] = data
			h.mu.Unlock()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			log.L.WithError(err).Warn("binary directory watch error")
		}
	}
}

// Close stops the fsnotify watch and closes both bbolt files.
func (h *HAL) Close() error {
	if h.watcher != nil {
		h.watcher.Close()
		<-h.watchDone
	}
	var firstErr error
	if h.storageDB != nil {
		if err := h.storageDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.keystoreDB != nil {
		if err := h.keystoreDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *HAL) LoadBinary(ctx context.Context, name string) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.binaries[name]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (h *HAL) Storage() hal.AsyncFamily[hal.StorageRequest]   { return h.storage }
func (h *HAL) Keystore() hal.AsyncFamily[hal.KeystoreRequest] { return h.keystore }
func (h *HAL) Network() hal.AsyncFamily[hal.NetworkRequest]   { return h.network }

func (h *HAL) Now() uint64 {
	return uint64(time.Since(h.boot).Nanoseconds())
}
