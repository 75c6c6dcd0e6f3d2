// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth_test

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
)

func TestFileBasedKeyProvider(t *testing.T) {
	keys := map[string]string{
		"key1": "secret1",
		"key2": "secret2",
		"key3": "secret3",
	}
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := "key1: secret1\nkey2: secret2\r\nkey3: secret3"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p, err := auth.NewFileBasedKeyProvider(f)
	require.NoError(t, err)

	require.Equal(t, 3, p.NumKeys())
	for key, val := range keys {
		require.Equal(t, val, p.GetSecret(key))
	}
	require.Empty(t, p.GetSecret("unknown"))

	listed := p.Keys()
	sort.Strings(listed)
	require.Equal(t, []string{"key1", "key2", "key3"}, listed)

	t.Run("empty file", func(t *testing.T) {
		p, err := auth.NewFileBasedKeyProvider(strings.NewReader(""))
		require.NoError(t, err)
		require.Zero(t, p.NumKeys())
	})

	t.Run("invalid file", func(t *testing.T) {
		_, err := auth.NewFileBasedKeyProvider(strings.NewReader("- not\n- a map"))
		require.Error(t, err)
	})
}
