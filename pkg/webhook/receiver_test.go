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

package webhook_test

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/auth/authfakes"
	"github.com/livekit/livekit-server-sdk/pkg/utils"
	"github.com/livekit/livekit-server-sdk/pkg/webhook"
)

const joinedBody = `{"event":"participant_joined","participant":{"identity":"alice"}}`

func TestReceiver(t *testing.T) {
	apiKey, secret := apiKeypair()
	receiver, err := webhook.NewReceiver(apiKey, secret)
	require.NoError(t, err)

	t.Run("keys must be set", func(t *testing.T) {
		_, err := webhook.NewReceiver(apiKey, "")
		require.ErrorIs(t, err, auth.ErrKeysMissing)
		_, err = webhook.NewReceiverWithKeyProvider(auth.NewFileBasedKeyProviderFromMap(nil))
		require.ErrorIs(t, err, auth.ErrKeysMissing)
	})

	t.Run("authenticated delivery", func(t *testing.T) {
		body := []byte(joinedBody)
		event, err := receiver.Receive(body, sign(t, apiKey, secret, body), false)
		require.NoError(t, err)
		require.Equal(t, webhook.EventParticipantJoined, event.Event)
		require.Equal(t, "alice", event.Participant.Identity)
		require.Nil(t, event.Room)
	})

	t.Run("bearer prefix is tolerated", func(t *testing.T) {
		body := []byte(joinedBody)
		event, err := receiver.Receive(body, auth.BearerPrefix+sign(t, apiKey, secret, body), false)
		require.NoError(t, err)
		require.Equal(t, "alice", event.Participant.Identity)

		_, err = receiver.Receive(body, "  "+auth.BearerPrefix+" "+sign(t, apiKey, secret, body)+"\n", false)
		require.NoError(t, err)
	})

	t.Run("missing auth", func(t *testing.T) {
		for _, header := range []string{"", "  ", auth.BearerPrefix, " " + auth.BearerPrefix + "  ", "Bearer"} {
			_, err := receiver.Receive([]byte(joinedBody), header, false)
			require.ErrorIs(t, err, webhook.ErrMissingAuth)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		body := []byte(joinedBody)
		token := sign(t, apiKey, secret, body)

		tampered := []byte(joinedBody)
		tampered[len(tampered)-4] = 'X'
		_, err := receiver.Receive(tampered, token, false)
		require.ErrorIs(t, err, webhook.ErrChecksumMismatch)

		// same JSON, different bytes
		_, err = receiver.Receive([]byte(joinedBody+"\n"), token, false)
		require.ErrorIs(t, err, webhook.ErrChecksumMismatch)
	})

	t.Run("signed with another secret", func(t *testing.T) {
		body := []byte(joinedBody)
		event, err := receiver.Receive(body, sign(t, apiKey, utils.RandomSecret(), body), false)
		require.ErrorIs(t, err, auth.ErrSignatureInvalid)
		require.Nil(t, event)
	})

	t.Run("signed by another key", func(t *testing.T) {
		body := []byte(joinedBody)
		_, err := receiver.Receive(body, sign(t, "APIother", secret, body), false)
		require.ErrorIs(t, err, auth.ErrIssuerMismatch)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := receiver.Receive([]byte(joinedBody), "not-a-token", false)
		require.ErrorIs(t, err, auth.ErrMalformedToken)
		require.True(t, webhook.IsAuthError(err))
	})

	t.Run("access token without digest", func(t *testing.T) {
		token, err := auth.NewAccessToken(apiKey, secret).ToJWT()
		require.NoError(t, err)
		_, err = receiver.Receive([]byte(joinedBody), token, false)
		require.ErrorIs(t, err, auth.ErrMalformedToken)
	})

	t.Run("expired token", func(t *testing.T) {
		body := []byte(joinedBody)
		token := sign(t, apiKey, secret, body)
		later, err := webhook.NewReceiver(apiKey, secret, webhook.WithClock(func() time.Time {
			return time.Now().Add(11 * time.Minute)
		}))
		require.NoError(t, err)
		_, err = later.Receive(body, token, false)
		require.ErrorIs(t, err, auth.ErrTokenExpired)
	})

	t.Run("unknown event kind", func(t *testing.T) {
		body := []byte(`{"event":"unknown_kind"}`)
		_, err := receiver.Receive(body, sign(t, apiKey, secret, body), false)
		require.ErrorIs(t, err, webhook.ErrUnknownEventKind)
		require.False(t, webhook.IsAuthError(err))

		_, err = receiver.Receive(body, "", true)
		require.ErrorIs(t, err, webhook.ErrUnknownEventKind)

		// kinds match exactly
		_, err = receiver.Receive([]byte(`{"event":"ROOM_STARTED"}`), "", true)
		require.ErrorIs(t, err, webhook.ErrUnknownEventKind)

		_, err = receiver.Receive([]byte(`{"room":{"name":"r"}}`), "", true)
		require.ErrorIs(t, err, webhook.ErrUnknownEventKind)
	})

	t.Run("invalid payload", func(t *testing.T) {
		for _, body := range []string{
			`not json`,
			`{"event":"room_started","room":{"emptyTimeout":"ten"}}`,
			`{"event":"room_started","room":{"maxParticipants":"12abc"}}`,
			`{"event":"room_started","room":{"emptyTimeout":-1}}`,
		} {
			_, err := receiver.Receive([]byte(body), "", true)
			require.ErrorIs(t, err, webhook.ErrInvalidPayload, body)
		}
	})

	t.Run("lenient decoding", func(t *testing.T) {
		body := []byte(`{
			"EVENT": "room_finished",
			"Room": {"sid": "RM_abc", "NAME": "myroom", "emptyTimeout": "300", "maxParticipants": 20,
				"creationTime": "1692312345", "numParticipants": "0", "activeRecording": true},
			"createdAt": "1692312400",
			"id": "EV_1",
			"unknownField": {"nested": [1, 2]}
		}`)
		event, err := receiver.Receive(body, sign(t, apiKey, secret, body), false)
		require.NoError(t, err)
		require.Equal(t, webhook.EventRoomFinished, event.Event)
		require.Equal(t, "myroom", event.Room.Name)
		require.Equal(t, "myroom", event.RoomName())
		require.EqualValues(t, 300, event.Room.EmptyTimeout)
		require.EqualValues(t, 20, event.Room.MaxParticipants)
		require.EqualValues(t, 1692312345, event.Room.CreationTime)
		require.Zero(t, event.Room.NumParticipants)
		require.True(t, event.Room.ActiveRecording)
		require.EqualValues(t, 1692312400, event.CreatedAt)
		require.Equal(t, "EV_1", event.ID)
	})

	t.Run("participant and recording payloads", func(t *testing.T) {
		event, err := receiver.Receive([]byte(`{
			"event": "participant_left",
			"participant": {"sid": "PA_1", "identity": "bob", "state": "DISCONNECTED", "joinedAt": "1692312345",
				"permission": {"canPublish": true, "canSubscribe": true},
				"tracks": [{"sid": "TR_1", "type": "VIDEO", "width": "1280", "height": 720, "simulcast": true}]}
		}`), "", true)
		require.NoError(t, err)
		require.Equal(t, "bob", event.Participant.Identity)
		require.True(t, event.Participant.Permission.CanPublish)
		require.False(t, event.Participant.Permission.CanPublishData)
		require.Len(t, event.Participant.Tracks, 1)
		require.EqualValues(t, 1280, event.Participant.Tracks[0].Width)
		require.EqualValues(t, 720, event.Participant.Tracks[0].Height)

		event, err = receiver.Receive([]byte(`{
			"event": "recording_finished",
			"recordingInfo": {"id": "RC_1", "roomName": "myroom", "duration": "61000", "location": "s3://bucket/a.mp4"}
		}`), "", true)
		require.NoError(t, err)
		require.EqualValues(t, 61000, event.RecordingInfo.Duration)
		require.Equal(t, "myroom", event.RoomName())
	})

	t.Run("digest from another implementation", func(t *testing.T) {
		body := []byte(`{"event":"room_started","room":{"name":"r"}}`)
		token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
			"iss":    apiKey,
			"exp":    time.Now().Add(time.Minute).Unix(),
			"sha256": auth.PayloadDigest(body),
		}).SignedString([]byte(secret))
		require.NoError(t, err)

		event, err := receiver.Receive(body, token, false)
		require.NoError(t, err)
		require.Equal(t, webhook.EventRoomStarted, event.Event)
	})
}

func TestReceiverWithKeyProvider(t *testing.T) {
	keys := &authfakes.FakeKeyProvider{}
	keys.NumKeysReturns(2)
	keys.GetSecretCalls(func(key string) string {
		switch key {
		case "key1":
			return "secret1"
		case "key2":
			return "secret2"
		}
		return ""
	})

	receiver, err := webhook.NewReceiverWithKeyProvider(keys)
	require.NoError(t, err)

	body := []byte(`{"event":"room_started"}`)
	for _, pair := range [][2]string{{"key1", "secret1"}, {"key2", "secret2"}} {
		event, err := receiver.Receive(body, sign(t, pair[0], pair[1], body), false)
		require.NoError(t, err)
		require.Equal(t, webhook.EventRoomStarted, event.Event)
	}

	_, err = receiver.Receive(body, sign(t, "key3", "secret3", body), false)
	require.ErrorIs(t, err, auth.ErrIssuerMismatch)

	_, err = receiver.Receive(body, sign(t, "key1", "secret2", body), false)
	require.ErrorIs(t, err, auth.ErrSignatureInvalid)

	require.Equal(t, 4, keys.GetSecretCallCount())
	require.Equal(t, "key3", keys.GetSecretArgsForCall(2))
}

func TestReason(t *testing.T) {
	require.Equal(t, "ok", webhook.Reason(nil))
	require.Equal(t, "missing_auth", webhook.Reason(webhook.ErrMissingAuth))
	require.Equal(t, "checksum_mismatch", webhook.Reason(webhook.ErrChecksumMismatch))
	require.Equal(t, "expired", webhook.Reason(auth.ErrTokenExpired))

	_, err := webhook.ParseEventKind("nope")
	require.Equal(t, "unknown_event", webhook.Reason(err))
}

func sign(t *testing.T, apiKey, secret string, body []byte) string {
	t.Helper()
	token, err := auth.NewAPIKeyTokenIssuer(apiKey, secret).CreatePayloadDigestToken(body)
	require.NoError(t, err)
	return token
}

func apiKeypair() (string, string) {
	return utils.NewGuid(utils.APIKeyPrefix), utils.RandomSecret()
}
