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

package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	zconfig "github.com/zeroos-project/zeroos/cmd/zeroosd/config"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "Information on the zeroosd config",
	Subcommands: []*cli.Command{
		{
			Name:  "default",
			Usage: "See the output of the default config",
			Action: func(cliContext *cli.Context) error {
				return printConfig(zconfig.Default())
			},
		},
		{
			Name:  "dump",
			Usage: "See the output of the config zeroosd would boot with",
			Action: func(cliContext *cli.Context) error {
				cfg, err := zconfig.Load(cliContext.Context, cliContext.String("config"))
				if err != nil {
					return err
				}
				return printConfig(cfg)
			},
		},
	},
}

func printConfig(cfg *zconfig.Config) error {
	out, err := zconfig.Dump(cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
