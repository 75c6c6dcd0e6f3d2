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

package webhook

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
)

// AuthHeader carries the payload digest token of a delivery
const AuthHeader = "Authorization"

var (
	ErrMissingAuth      = errors.New("authorization header missing")
	ErrChecksumMismatch = errors.New("payload checksum does not match token")
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Receiver authenticates and decodes webhook deliveries. It holds no mutable state and is
// safe for concurrent use.
type Receiver struct {
	keys   auth.KeyProvider
	now    func() time.Time
	logger logger.Logger
}

type ReceiverOption func(r *Receiver)

// WithClock sets the time tokens are validated against
func WithClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) {
		r.now = now
	}
}

func WithLogger(l logger.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.logger = l
	}
}

func NewReceiver(apiKey string, apiSecret string, opts ...ReceiverOption) (*Receiver, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, auth.ErrKeysMissing
	}
	return NewReceiverWithKeyProvider(auth.NewFileBasedKeyProviderFromMap(map[string]string{
		apiKey: apiSecret,
	}), opts...)
}

// NewReceiverWithKeyProvider accepts deliveries signed by any key the provider knows.
func NewReceiverWithKeyProvider(keys auth.KeyProvider, opts ...ReceiverOption) (*Receiver, error) {
	if keys == nil || keys.NumKeys() == 0 {
		return nil, auth.ErrKeysMissing
	}
	r := &Receiver{
		keys:   keys,
		now:    time.Now,
		logger: logger.GetLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Receive authenticates body against the digest token in authHeader, then decodes it.
// body must be the raw request body. skipAuth bypasses authentication and is only
// appropriate when the transport already guarantees the sender.
func (r *Receiver) Receive(body []byte, authHeader string, skipAuth bool) (*Event, error) {
	if !skipAuth {
		if err := r.authenticate(body, authHeader); err != nil {
			r.logger.Warnw("rejected webhook", err, "reason", Reason(err))
			return nil, err
		}
	}

	event, err := decodeEvent(body)
	if err != nil {
		r.logger.Warnw("could not decode webhook", err, "reason", Reason(err))
		return nil, err
	}
	r.logger.Debugw("received webhook", "event", event.Event, "id", event.ID)
	return event, nil
}

func (r *Receiver) authenticate(body []byte, authHeader string) error {
	token := strings.TrimSpace(authHeader)
	token = strings.TrimSpace(strings.TrimPrefix(token, strings.TrimSpace(auth.BearerPrefix)))
	if token == "" {
		return ErrMissingAuth
	}

	v, err := auth.ParseAPIToken(token)
	if err != nil {
		return err
	}
	secret := r.keys.GetSecret(v.APIKey())
	if secret == "" {
		return pkgerrors.Wrapf(auth.ErrIssuerMismatch, "unknown api key %q", v.APIKey())
	}

	embedded, err := v.VerifyPayloadDigestAt(v.APIKey(), secret, r.now())
	if err != nil {
		return err
	}

	expected := auth.PayloadDigest(body)
	if subtle.ConstantTimeCompare([]byte(embedded), []byte(expected)) != 1 {
		return ErrChecksumMismatch
	}
	return nil
}

// IsAuthError reports whether err means the sender could not be authenticated,
// as opposed to an authenticated delivery that could not be decoded.
func IsAuthError(err error) bool {
	for _, e := range []error{
		ErrMissingAuth,
		ErrChecksumMismatch,
		auth.ErrSignatureInvalid,
		auth.ErrTokenExpired,
		auth.ErrIssuerMismatch,
		auth.ErrMalformedToken,
		auth.ErrKeysMissing,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Reason is a short, stable label for a receive failure
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingAuth):
		return "missing_auth"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, auth.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrIssuerMismatch):
		return "issuer_mismatch"
	case errors.Is(err, auth.ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrUnknownEventKind):
		return "unknown_event"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "error"
	}
}
