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

// Package commands holds zeroosctl's subcommands. Unlike ctr, which
// talks to a running containerd over GRPC, these operate directly on an
// axiomlog.Store: a durable CommitLog mirror is addressed by path, not
// by daemon socket, so replay and verification work whether or not
// zeroosd is currently running.
package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/zeroos-project/zeroos/core/axiomlog"
	"github.com/zeroos-project/zeroos/core/kernel"
	"github.com/zeroos-project/zeroos/core/replay"
)

type processView struct {
	PID    uint64 `json:"pid"`
	Name   string `json:"name"`
	Parent uint64 `json:"parent"`
	State  string `json:"state"`
}

func openStore(cliContext *cli.Context) (*axiomlog.Store, error) {
	stateDir := cliContext.Args().First()
	if stateDir == "" {
		return nil, fmt.Errorf("usage: %s <state-dir>", cliContext.Command.Name)
	}
	return axiomlog.OpenStore(filepath.Join(stateDir, "axiom.db"))
}

func loadAndReplay(cliContext *cli.Context) (*kernel.KernelState, error) {
	store, err := openStore(cliContext)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	commits, err := store.LoadCommits()
	if err != nil {
		return nil, fmt.Errorf("loading commits: %w", err)
	}
	return replay.Replay(commits)
}

// ReplayCommand rebuilds kernel state from a durable store and prints
// the resulting process table.
var ReplayCommand = &cli.Command{
	Name:      "replay",
	Usage:     "Reconstruct kernel state from a durable axiomlog store",
	ArgsUsage: "<state-dir>",
	Action: func(cliContext *cli.Context) error {
		state, err := loadAndReplay(cliContext)
		if err != nil {
			return err
		}

		views := make([]processView, 0, len(state.Processes))
		for _, p := range state.Processes {
			views = append(views, processView{PID: p.PID, Name: p.Name, Parent: p.Parent, State: p.State.String()})
		}

		out, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
