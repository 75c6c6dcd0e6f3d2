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
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/pkg/errors"
)

var _ TokenVerifier = (*APIKeyTokenVerifier)(nil)

type APIKeyTokenVerifier struct {
	token    *jwt.JSONWebToken
	apiKey   string
	identity string
}

// ParseAPIToken decodes a token without verifying it. Verify must be called before
// trusting anything in it.
func ParseAPIToken(raw string) (*APIKeyTokenVerifier, error) {
	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}

	out := jwt.Claims{}
	if err := tok.UnsafeClaimsWithoutVerification(&out); err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}

	return &APIKeyTokenVerifier{
		token:    tok,
		apiKey:   out.Issuer,
		identity: out.Subject,
	}, nil
}

// APIKey returns the unverified issuer, useful to look up the secret the token was signed with
func (v *APIKeyTokenVerifier) APIKey() string {
	return v.apiKey
}

func (v *APIKeyTokenVerifier) Identity() string {
	return v.identity
}

func (v *APIKeyTokenVerifier) Verify(apiKey string, secret string) (*ClaimGrants, error) {
	return v.VerifyAt(apiKey, secret, time.Now())
}

func (v *APIKeyTokenVerifier) VerifyAt(apiKey string, secret string, at time.Time) (*ClaimGrants, error) {
	claims := ClaimGrants{}
	if err := v.verify(apiKey, secret, at, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (v *APIKeyTokenVerifier) VerifyPayloadDigest(apiKey string, secret string) (string, error) {
	return v.VerifyPayloadDigestAt(apiKey, secret, time.Now())
}

// VerifyPayloadDigestAt validates the token and returns its sha256 claim.
func (v *APIKeyTokenVerifier) VerifyPayloadDigestAt(apiKey string, secret string, at time.Time) (string, error) {
	claims := digestClaims{}
	if err := v.verify(apiKey, secret, at, &claims); err != nil {
		return "", err
	}
	if claims.Sha256 == "" {
		return "", errors.Wrap(ErrMalformedToken, "missing sha256 claim")
	}
	return claims.Sha256, nil
}

func (v *APIKeyTokenVerifier) verify(apiKey string, secret string, at time.Time, dest interface{}) error {
	if apiKey == "" || secret == "" {
		return ErrKeysMissing
	}

	for _, h := range v.token.Headers {
		if h.Algorithm != string(jose.HS256) {
			return errors.Wrapf(ErrSignatureInvalid, "unexpected algorithm %s", h.Algorithm)
		}
	}

	out := jwt.Claims{}
	if err := v.token.Claims([]byte(secret), &out, dest); err != nil {
		if errors.Is(err, jose.ErrCryptoFailure) {
			return ErrSignatureInvalid
		}
		return errors.Wrap(ErrMalformedToken, err.Error())
	}
	if out.Expiry == nil {
		return errors.Wrap(ErrMalformedToken, "missing exp claim")
	}

	// audience is intentionally not checked, grants are not audience scoped
	err := out.ValidateWithLeeway(jwt.Expected{Issuer: apiKey, Time: at}, 0)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrInvalidIssuer):
		return errors.Wrapf(ErrIssuerMismatch, "issuer %q", out.Issuer)
	case errors.Is(err, jwt.ErrExpired):
		return errors.Wrapf(ErrTokenExpired, "expired at %s", out.Expiry.Time().UTC().Format(time.RFC3339))
	case errors.Is(err, jwt.ErrNotValidYet), errors.Is(err, jwt.ErrIssuedInTheFuture):
		return errors.Wrap(ErrTokenExpired, "token is not valid yet")
	default:
		return errors.Wrap(ErrMalformedToken, err.Error())
	}
}

// VerifyPayloadDigest validates token against the key pair and returns the payload
// digest it carries.
func VerifyPayloadDigest(apiKey string, secret string, token string) (string, error) {
	v, err := ParseAPIToken(token)
	if err != nil {
		return "", err
	}
	return v.VerifyPayloadDigest(apiKey, secret)
}

// VerifyGrants validates token against the key pair and returns its grants.
func VerifyGrants(apiKey string, secret string, token string) (*ClaimGrants, error) {
	v, err := ParseAPIToken(token)
	if err != nil {
		return nil, err
	}
	return v.Verify(apiKey, secret)
}
