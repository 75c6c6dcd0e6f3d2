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
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/gorilla/websocket"

	"github.com/livekit/livekit-server-sdk/pkg/logger"
)

const (
	subscriberBuffer = 16
	feedWriteTimeout = 5 * time.Second
)

// Feed keeps the most recent events and fans them out to subscribers. Served over HTTP,
// a plain GET returns the recent events and a websocket upgrade streams new ones.
type Feed struct {
	size   int
	logger logger.Logger

	mu     sync.Mutex
	recent *deque.Deque[*Event]
	subs   map[chan *Event]struct{}

	upgrader websocket.Upgrader
}

func NewFeed(size int, l logger.Logger) *Feed {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Feed{
		size:   size,
		logger: l,
		recent: deque.New[*Event](size),
		subs:   make(map[chan *Event]struct{}),
		upgrader: websocket.Upgrader{
			// origins are enforced by the CORS layer in front of the feed
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish records event and hands it to every subscriber. It satisfies EventFunc.
func (f *Feed) Publish(_ context.Context, event *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recent.PushBack(event)
	for f.recent.Len() > f.size {
		f.recent.PopFront()
	}
	for ch := range f.subs {
		select {
		case ch <- event:
		default:
			f.logger.Debugw("feed subscriber is behind, dropping event", "id", event.ID)
		}
	}
	return nil
}

// Recent returns the retained events, oldest first
func (f *Feed) Recent() []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]*Event, 0, f.recent.Len())
	for i := 0; i < f.recent.Len(); i++ {
		events = append(events, f.recent.At(i))
	}
	return events
}

// Subscribe returns a channel of new events and a func to release it.
func (f *Feed) Subscribe() (<-chan *Event, func()) {
	ch := make(chan *Event, subscriberBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
		})
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		f.stream(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	data, err := eventJSON.Marshal(f.Recent())
	if err != nil {
		f.logger.Errorw("could not encode events", err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (f *Feed) stream(w http.ResponseWriter, r *http.Request) {
	// subscribe before upgrading so no event is missed between the two
	events, unsubscribe := f.Subscribe()
	defer unsubscribe()

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debugw("could not upgrade feed connection", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event := <-events:
			data, err := encodeEvent(event)
			if err != nil {
				f.logger.Warnw("could not encode event", err, "id", event.ID)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
