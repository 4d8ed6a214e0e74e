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

package hardware

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/zeroos-project/zeroos/core/hal"
	"github.com/zeroos-project/zeroos/core/kernel"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (h *HAL) Entropy(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("hardware HAL: reading entropy: %w", err)
	}
	return b, nil
}

// blockFamily backs the async storage family with a dedicated bbolt file.
type blockFamily struct {
	db      *bolt.DB
	tracker *hal.RequestTracker
}

func (f *blockFamily) Submit(ctx context.Context, caller uint64, req hal.StorageRequest) kernel.Result {
	id, kind := f.tracker.Allocate(caller)
	if kind != kernel.ErrNone {
		return kernel.Result{Code: kind.Code()}
	}
	err := f.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKeyBlocks)
		if req.Payload != nil {
			return bucket.Put(req.Key, req.Payload)
		}
		return nil
	})
	f.tracker.Complete(id)
	if err != nil {
		return kernel.Result{Code: kernel.ErrInvalidArgument.Code()}
	}
	return kernel.Result{Code: int64(id)}
}

// secretFamily backs the async keystore family with a bbolt file
// physically separate from blockFamily's — a storage-layer compromise
// reading storage.db never sees a single key from keystore.db.
type secretFamily struct {
	db      *bolt.DB
	tracker *hal.RequestTracker
}

func (f *secretFamily) Submit(ctx context.Context, caller uint64, req hal.KeystoreRequest) kernel.Result {
	id, kind := f.tracker.Allocate(caller)
	if kind != kernel.ErrNone {
		return kernel.Result{Code: kind.Code()}
	}
	err := f.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKeySecrets)
		return bucket.Put(req.Key, []byte{})
	})
	f.tracker.Complete(id)
	if err != nil {
		return kernel.Result{Code: kernel.ErrInvalidArgument.Code()}
	}
	return kernel.Result{Code: int64(id)}
}

// networkFamily has no durable backend on this platform yet: it only
// allocates and immediately completes request ids, enough to exercise
// the async ABI without a real NIC driver.
type networkFamily struct {
	tracker *hal.RequestTracker
}

func (f *networkFamily) Submit(ctx context.Context, caller uint64, req hal.NetworkRequest) kernel.Result {
	id, kind := f.tracker.Allocate(caller)
	if kind != kernel.ErrNone {
		return kernel.Result{Code: kind.Code()}
	}
	f.tracker.Complete(id)
	return kernel.Result{Code: int64(id)}
}
