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

package auth

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var _ KeyProvider = (*FileBasedKeyProvider)(nil)

// FileBasedKeyProvider holds API key/secret pairs, one `key: secret` per line
type FileBasedKeyProvider struct {
	keys map[string]string
}

func NewFileBasedKeyProvider(r io.Reader) (*FileBasedKeyProvider, error) {
	keys := make(map[string]string)
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&keys); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "invalid api key/secret pairs, must be api_key: secret")
	}
	return NewFileBasedKeyProviderFromMap(keys), nil
}

func NewFileBasedKeyProviderFromMap(keys map[string]string) *FileBasedKeyProvider {
	return &FileBasedKeyProvider{
		keys: keys,
	}
}

func (p *FileBasedKeyProvider) GetSecret(key string) string {
	return p.keys[key]
}

func (p *FileBasedKeyProvider) NumKeys() int {
	return len(p.keys)
}

// Keys lists the API keys known to the provider
func (p *FileBasedKeyProvider) Keys() []string {
	keys := make([]string, 0, len(p.keys))
	for k := range p.keys {
		keys = append(keys, k)
	}
	return keys
}
