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
	"io"
	"net/http"

	"github.com/livekit/livekit-server-sdk/pkg/logger"
	"github.com/livekit/livekit-server-sdk/pkg/telemetry/prometheus"
)

const maxBodySize = 1 << 20

// EventFunc handles an authenticated event. A returned error makes the handler
// respond with 500 so the sender retries.
type EventFunc func(ctx context.Context, event *Event) error

type HandlerOption func(h *Handler)

// WithSkipAuth disables authentication, only for transports that already guarantee the sender
func WithSkipAuth(skip bool) HandlerOption {
	return func(h *Handler) {
		h.skipAuth = skip
	}
}

func WithDeduper(d Deduper) HandlerOption {
	return func(h *Handler) {
		h.deduper = d
	}
}

func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// Handler receives webhook deliveries over HTTP.
type Handler struct {
	receiver *Receiver
	onEvent  EventFunc
	skipAuth bool
	deduper  Deduper
	logger   logger.Logger
}

func NewHandler(receiver *Receiver, onEvent EventFunc, opts ...HandlerOption) *Handler {
	h := &Handler{
		receiver: receiver,
		onEvent:  onEvent,
		logger:   logger.GetLogger(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.logger.Warnw("could not read webhook body", err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodySize {
		prometheus.RecordWebhookReceived("too_large")
		http.Error(w, "", http.StatusRequestEntityTooLarge)
		return
	}

	event, err := h.receiver.Receive(body, r.Header.Get(AuthHeader), h.skipAuth)
	if err != nil {
		prometheus.RecordWebhookReceived(Reason(err))
		// the reason is logged by the receiver, callers get no detail
		if IsAuthError(err) {
			http.Error(w, "", http.StatusUnauthorized)
		} else {
			http.Error(w, "", http.StatusBadRequest)
		}
		return
	}

	ctx := r.Context()
	if h.deduper != nil && event.ID != "" {
		first, err := h.deduper.MarkSeen(ctx, event.ID)
		if err != nil {
			h.logger.Warnw("could not check for duplicate webhook", err, "id", event.ID)
		} else if !first {
			h.logger.Debugw("dropping duplicate webhook", "id", event.ID, "event", event.Event)
			prometheus.RecordWebhookReceived("duplicate")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if h.onEvent != nil {
		if err := h.onEvent(ctx, event); err != nil {
			h.logger.Errorw("could not handle webhook", err, "id", event.ID, "event", event.Event)
			prometheus.RecordWebhookReceived("handler_error")
			if h.deduper != nil && event.ID != "" {
				if err := h.deduper.Forget(ctx, event.ID); err != nil {
					h.logger.Warnw("could not forget webhook", err, "id", event.ID)
				}
			}
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	prometheus.RecordWebhookReceived("ok")
	w.WriteHeader(http.StatusOK)
}
