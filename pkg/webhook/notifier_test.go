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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/webhook"
)

type webhookTestServer struct {
	server   *httptest.Server
	receiver *webhook.Receiver
	status   atomic.Int32
	// held once, after the first delivery is recorded
	delay atomic.Duration

	lock   sync.Mutex
	events []*webhook.Event
	errs   []error
}

func newTestServer(t *testing.T, apiKey, secret string) *webhookTestServer {
	receiver, err := webhook.NewReceiver(apiKey, secret)
	require.NoError(t, err)

	s := &webhookTestServer{receiver: receiver}
	s.status.Store(http.StatusOK)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil || r.Header.Get("Content-Type") != webhook.ContentType {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		event, err := s.receiver.Receive(body, r.Header.Get(webhook.AuthHeader), false)
		s.lock.Lock()
		if err != nil {
			s.errs = append(s.errs, err)
		} else {
			s.events = append(s.events, event)
		}
		s.lock.Unlock()
		if d := s.delay.Swap(0); d > 0 {
			time.Sleep(d)
		}
		w.WriteHeader(int(s.status.Load()))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *webhookTestServer) failures() []error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]error{}, s.errs...)
}

func (s *webhookTestServer) received() []*webhook.Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]*webhook.Event{}, s.events...)
}

func TestNotifier(t *testing.T) {
	apiKey, secret := apiKeypair()

	t.Run("keys must be set", func(t *testing.T) {
		_, err := webhook.NewDefaultNotifier("", secret, nil)
		require.ErrorIs(t, err, auth.ErrKeysMissing)
	})

	t.Run("delivers signed events", func(t *testing.T) {
		s1 := newTestServer(t, apiKey, secret)
		s2 := newTestServer(t, apiKey, secret)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s1.server.URL, s2.server.URL})
		require.NoError(t, err)
		defer notifier.Stop(true)

		event := &webhook.Event{
			Event: webhook.EventRoomStarted,
			Room:  &webhook.Room{Name: "myroom", EmptyTimeout: 300, CreationTime: 1692312345},
		}
		require.NoError(t, notifier.Notify(context.Background(), event))
		// the caller's event is left alone
		require.Empty(t, event.ID)
		require.Zero(t, event.CreatedAt)

		var id string
		for _, s := range []*webhookTestServer{s1, s2} {
			events := s.received()
			require.Len(t, events, 1)
			require.Equal(t, webhook.EventRoomStarted, events[0].Event)
			require.Equal(t, "myroom", events[0].Room.Name)
			require.EqualValues(t, 300, events[0].Room.EmptyTimeout)
			require.NotEmpty(t, events[0].ID)
			require.NotZero(t, events[0].CreatedAt)
			require.Empty(t, s.failures())
			if id == "" {
				id = events[0].ID
			}
			require.Equal(t, id, events[0].ID)
		}
	})

	t.Run("receiver with another secret rejects", func(t *testing.T) {
		s := newTestServer(t, apiKey, "another-secret")
		s.status.Store(http.StatusUnauthorized)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s.server.URL})
		require.NoError(t, err)
		defer notifier.Stop(true)

		err = notifier.Notify(context.Background(), &webhook.Event{Event: webhook.EventRoomFinished})
		require.Error(t, err)
		require.Empty(t, s.received())
		errs := s.failures()
		require.Len(t, errs, 1)
		require.ErrorIs(t, errs[0], auth.ErrSignatureInvalid)
	})

	t.Run("unknown kinds are not sent", func(t *testing.T) {
		s := newTestServer(t, apiKey, secret)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s.server.URL})
		require.NoError(t, err)
		defer notifier.Stop(true)

		err = notifier.Notify(context.Background(), &webhook.Event{Event: "track_published"})
		require.ErrorIs(t, err, webhook.ErrUnknownEventKind)
		err = notifier.QueueNotify(nil)
		require.ErrorIs(t, err, webhook.ErrInvalidPayload)
		require.Empty(t, s.received())
	})

	t.Run("queued events are flushed on stop", func(t *testing.T) {
		s := newTestServer(t, apiKey, secret)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s.server.URL}, webhook.WithPoolSize(2))
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			require.NoError(t, notifier.QueueNotify(&webhook.Event{
				Event:       webhook.EventParticipantJoined,
				Participant: &webhook.ParticipantInfo{Identity: "user"},
			}))
		}
		notifier.Stop(false)
		require.Len(t, s.received(), 5)

		require.ErrorIs(t, notifier.QueueNotify(&webhook.Event{Event: webhook.EventRoomStarted}), webhook.ErrNotifierStopped)
		require.ErrorIs(t, notifier.Notify(context.Background(), &webhook.Event{Event: webhook.EventRoomStarted}), webhook.ErrNotifierStopped)
		// stopping twice is harmless
		notifier.Stop(true)
	})

	t.Run("one event queued from many goroutines", func(t *testing.T) {
		s := newTestServer(t, apiKey, secret)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s.server.URL})
		require.NoError(t, err)

		event := &webhook.Event{Event: webhook.EventRoomStarted, Room: &webhook.Room{Name: "myroom"}}
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			go func() {
				errs <- notifier.QueueNotify(event)
			}()
		}
		for i := 0; i < 8; i++ {
			require.NoError(t, <-errs)
		}
		notifier.Stop(false)

		require.Empty(t, event.ID)
		require.Len(t, s.received(), 8)
		require.Empty(t, s.failures())
	})

	t.Run("queued deliveries are signed when sent", func(t *testing.T) {
		s := newTestServer(t, apiKey, secret)
		// the second delivery waits behind the first for longer than a token lives
		s.delay.Store(3500 * time.Millisecond)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s.server.URL},
			webhook.WithPoolSize(1),
			webhook.WithTokenValidity(2*time.Second),
		)
		require.NoError(t, err)

		for _, name := range []string{"first", "second"} {
			require.NoError(t, notifier.QueueNotify(&webhook.Event{
				Event: webhook.EventRoomStarted,
				Room:  &webhook.Room{Name: name},
			}))
		}
		notifier.Stop(false)

		require.Empty(t, s.failures())
		events := s.received()
		require.Len(t, events, 2)
		require.Equal(t, "second", events[1].Room.Name)
	})

	t.Run("non 2xx responses fail", func(t *testing.T) {
		s := newTestServer(t, apiKey, secret)
		s.status.Store(http.StatusServiceUnavailable)
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{s.server.URL})
		require.NoError(t, err)
		defer notifier.Stop(true)

		err = notifier.Notify(context.Background(), &webhook.Event{Event: webhook.EventRoomStarted})
		require.ErrorContains(t, err, "503")
		require.Len(t, s.received(), 1)
	})

	t.Run("unreachable url", func(t *testing.T) {
		notifier, err := webhook.NewDefaultNotifier(apiKey, secret, []string{"http://127.0.0.1:1/webhook"},
			webhook.WithHTTPClient(&http.Client{Timeout: time.Second}))
		require.NoError(t, err)
		defer notifier.Stop(true)

		err = notifier.Notify(context.Background(), &webhook.Event{Event: webhook.EventRoomStarted})
		require.Error(t, err)
	})
}
