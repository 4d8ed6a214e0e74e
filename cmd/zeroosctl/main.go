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

// Command zeroosctl is an operator tool for inspecting a Zero OS
// durable axiomlog store: replaying it into a process table, verifying
// its hash chain, and printing its StateHash. It never talks to a
// running zeroosd; it reads the store's files directly, the same way
// zeroosd itself would on boot.
package main

import (
	"fmt"
	"os"

	"github.com/containerd/log"
	"github.com/urfave/cli/v2"

	"github.com/zeroos-project/zeroos/cmd/zeroosctl/commands"
)

func main() {
	app := cli.NewApp()
	app.Name = "zeroosctl"
	app.Usage = "Inspect a Zero OS durable commit store"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug output in logs",
		},
	}
	app.Before = func(cliContext *cli.Context) error {
		if cliContext.Bool("debug") {
			return log.SetLevel("debug")
		}
		return nil
	}
	app.Commands = []*cli.Command{
		commands.ReplayCommand,
		commands.StateHashCommand,
		commands.VerifyCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zeroosctl: %v\n", err)
		os.Exit(1)
	}
}
