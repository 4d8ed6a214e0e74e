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

package identifiers

import (
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	for _, s := range []string{"vfs", "keystore-2", "identity.core", "a_b_c", "PermissionService"} {
		require.NoError(t, Validate(s), s)
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	err := Validate("")
	require.Error(t, err)
	require.True(t, errdefs.IsInvalidArgument(err))
}

func TestValidateRejectsTooLong(t *testing.T) {
	err := Validate(strings.Repeat("a", 77))
	require.Error(t, err)
	require.True(t, errdefs.IsInvalidArgument(err))
}

func TestValidateRejectsBadCharacters(t *testing.T) {
	for _, s := range []string{"vfs/evil", "has space", "-leading", "trailing-", "double..dot"} {
		require.Error(t, Validate(s), s)
	}
}
