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

// Command zeroosd is the Zero OS daemon: it boots the plugin graph,
// constructs the Axiom Gateway, bootstraps the supervisor and Init, and
// serves until signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zeroos-project/zeroos/cmd/zeroosd/command"
)

func main() {
	ctx := context.Background()
	app := command.App()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zeroosd: %v\n", err)
		os.Exit(1)
	}
}
