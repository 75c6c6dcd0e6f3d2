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
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
)

// AccessToken produces tokens signed with an API key and secret.
// It holds a template of grants and may be reused; every call to ToJWT signs a new token.
type AccessToken struct {
	apiKey   string
	secret   string
	identity string
	grants   ClaimGrants
	validFor time.Duration
}

func NewAccessToken(key string, secret string) *AccessToken {
	return &AccessToken{
		apiKey: key,
		secret: secret,
	}
}

// SetIdentity sets the subject of the token
func (t *AccessToken) SetIdentity(identity string) *AccessToken {
	t.identity = identity
	return t
}

func (t *AccessToken) SetValidFor(duration time.Duration) *AccessToken {
	t.validFor = duration
	return t
}

// SetGrants copies the given grants into the token template.
func (t *AccessToken) SetGrants(grants *ClaimGrants) *AccessToken {
	if grants == nil {
		t.grants = ClaimGrants{}
		return t
	}
	t.grants = *grants.Clone()
	return t
}

func (t *AccessToken) AddGrant(grant *VideoGrant) *AccessToken {
	t.grants.Video = grant.Clone()
	return t
}

func (t *AccessToken) SetMetadata(md string) *AccessToken {
	t.grants.Metadata = md
	return t
}

func (t *AccessToken) SetGrantIdentity(identity string) *AccessToken {
	t.grants.Identity = identity
	return t
}

func (t *AccessToken) ToJWT() (string, error) {
	return t.ToJWTForRoom("")
}

// ToJWTForRoom signs the token with the video grant bound to room. An empty room keeps
// the room of the template. The template itself is left untouched.
func (t *AccessToken) ToJWTForRoom(room string) (string, error) {
	if t.apiKey == "" || t.secret == "" {
		return "", ErrKeysMissing
	}

	grants := t.grants.Clone()
	if room != "" {
		if grants.Video == nil {
			grants.Video = &VideoGrant{}
		}
		grants.Video.Room = room
	}

	validFor := DefaultValidDuration
	if t.validFor > 0 {
		validFor = t.validFor
	}

	cl := jwt.Claims{
		Issuer:  t.apiKey,
		Subject: t.identity,
		Expiry:  jwt.NewNumericDate(time.Now().Add(validFor)),
	}
	return sign(t.secret, cl, grants)
}

// BearerValue returns the value of an Authorization header carrying a fresh token.
func (t *AccessToken) BearerValue(room string) (string, error) {
	token, err := t.ToJWTForRoom(room)
	if err != nil {
		return "", err
	}
	return BearerPrefix + token, nil
}

// AuthHeader returns a single-entry header to merge into an outbound call.
func (t *AccessToken) AuthHeader(room string) (http.Header, error) {
	value, err := t.BearerValue(room)
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	header.Set(AuthorizationHeader, value)
	return header, nil
}

// IssueToken signs grants in a single call. identity becomes the subject when set,
// room overrides the room of the video grant when set.
func IssueToken(key, secret string, grants *ClaimGrants, identity string, room string) (string, error) {
	return NewAccessToken(key, secret).
		SetGrants(grants).
		SetIdentity(identity).
		ToJWTForRoom(room)
}

func sign(secret string, claims ...interface{}) (string, error) {
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", err
	}

	builder := jwt.Signed(sig)
	for _, c := range claims {
		builder = builder.Claims(c)
	}
	return builder.CompactSerialize()
}
