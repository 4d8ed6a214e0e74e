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
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zeroos-project/zeroos/core/kernel"
)

// StateHashCommand replays a durable store and prints the resulting
// StateHash, the same digest two machines compare to confirm they
// reached identical kernel state from the same commit history.
var StateHashCommand = &cli.Command{
	Name:      "statehash",
	Usage:     "Print the StateHash of kernel state replayed from a durable store",
	ArgsUsage: "<state-dir>",
	Action: func(cliContext *cli.Context) error {
		state, err := loadAndReplay(cliContext)
		if err != nil {
			return err
		}
		hash := kernel.StateHash(state)
		fmt.Println(hex.EncodeToString(hash[:]))
		return nil
	},
}
