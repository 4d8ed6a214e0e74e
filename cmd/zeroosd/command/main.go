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

// Package command builds zeroosd's cli.App: the daemon entrypoint's
// flag/command surface, kept separate from main so tests can construct
// an *cli.App without an os.Exit at the end of it.
package command

import (
	"github.com/containerd/log"
	"github.com/urfave/cli/v2"

	"github.com/zeroos-project/zeroos/version"
)

const defaultConfigPath = "/etc/zeroos/config.toml"

// App returns zeroosd's *cli.App instance.
func App() *cli.App {
	app := cli.NewApp()
	app.Name = "zeroosd"
	app.Version = version.Version
	app.Usage = "Zero OS capability microkernel daemon"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the TOML configuration file",
			Value:   defaultConfigPath,
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug output in logs, overriding the config file's debug.level",
		},
	}
	app.Before = func(cliContext *cli.Context) error {
		if cliContext.Bool("debug") {
			return log.SetLevel("debug")
		}
		return nil
	}
	app.Commands = []*cli.Command{
		configCommand,
		RunCommand,
	}
	app.Action = RunCommand.Action
	return app
}
