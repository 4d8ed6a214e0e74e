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

// Package version holds zeroosd/zeroosctl's build identity, set at
// link time via -ldflags the same way containerd stamps its binaries.
package version

var (
	// Package is the Go import path this binary was built from.
	Package = "github.com/zeroos-project/zeroos"

	// Version is overridden at build time with -X version.Version=.
	Version = "0.0.0+unknown"

	// Revision is the VCS commit this binary was built from, overridden
	// the same way as Version.
	Revision = ""
)
