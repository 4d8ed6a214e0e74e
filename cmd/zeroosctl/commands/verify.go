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

package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zeroos-project/zeroos/core/replay"
)

// VerifyCommand replays a durable store with full hash-chain
// recomputation, failing if any commit's recorded id doesn't match what
// HashCommit derives from its own fields, or if the chain of prev
// pointers is broken.
var VerifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "Verify a durable store's commit chain and replay it",
	ArgsUsage: "<state-dir>",
	Action: func(cliContext *cli.Context) error {
		store, err := openStore(cliContext)
		if err != nil {
			return err
		}
		defer store.Close()

		commits, err := store.LoadCommits()
		if err != nil {
			return fmt.Errorf("loading commits: %w", err)
		}

		if _, err := replay.ReplayAndVerify(commits); err != nil {
			return fmt.Errorf("chain verification failed: %w", err)
		}

		fmt.Printf("OK: %d commits verified\n", len(commits))
		return nil
	},
}
