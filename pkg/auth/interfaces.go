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
	"errors"
	"time"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	DefaultValidDuration = 10 * time.Minute
)

var (
	// ErrKeysMissing is a configuration error, the caller must supply a key pair
	ErrKeysMissing = errors.New("missing API key or secret key")

	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token has expired")
	ErrIssuerMismatch   = errors.New("token issuer does not match API key")
	ErrMalformedToken   = errors.New("malformed token")
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

type TokenVerifier interface {
	APIKey() string
	Identity() string
	Verify(apiKey string, secret string) (*ClaimGrants, error)
	VerifyPayloadDigest(apiKey string, secret string) (string, error)
}

//counterfeiter:generate . KeyProvider
type KeyProvider interface {
	GetSecret(key string) string
	NumKeys() int
}
