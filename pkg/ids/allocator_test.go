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

package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorStartsAtOne(t *testing.T) {
	a := NewAllocator()
	require.Equal(t, uint64(1), a.Next())
	require.Equal(t, uint64(2), a.Next())
	require.Equal(t, uint64(3), a.Next())
}

func TestAllocatorConcurrentUseYieldsUniqueIDs(t *testing.T) {
	a := NewAllocator()
	const goroutines = 50
	const perGoroutine = 200

	ids := make(chan uint64, goroutines*perGoroutine)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, goroutines*perGoroutine)
	for id := range ids {
		require.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	require.Len(t, seen, goroutines*perGoroutine)
}
