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
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
)

// APIKeyTokenIssuer signs payload digests. A digest token binds its signature to the
// exact bytes of a payload, which is how webhook deliveries are authenticated.
type APIKeyTokenIssuer struct {
	APIKey    string
	SecretKey string
	ValidFor  time.Duration
}

func NewAPIKeyTokenIssuer(key string, secret string) *APIKeyTokenIssuer {
	return &APIKeyTokenIssuer{
		APIKey:    key,
		SecretKey: secret,
		ValidFor:  DefaultValidDuration,
	}
}

// CreatePayloadDigestToken returns a token whose sha256 claim is PayloadDigest(payload).
func (s *APIKeyTokenIssuer) CreatePayloadDigestToken(payload []byte) (string, error) {
	if s.APIKey == "" || s.SecretKey == "" {
		return "", ErrKeysMissing
	}

	validFor := s.ValidFor
	if validFor <= 0 {
		validFor = DefaultValidDuration
	}

	cl := jwt.Claims{
		Issuer: s.APIKey,
		Expiry: jwt.NewNumericDate(time.Now().Add(validFor)),
	}
	return sign(s.SecretKey, cl, &digestClaims{Sha256: PayloadDigest(payload)})
}

// PayloadDigest is the standard base64 encoding of the SHA-256 of payload.
func PayloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}
