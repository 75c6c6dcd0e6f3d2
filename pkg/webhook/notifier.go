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
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
	"github.com/livekit/livekit-server-sdk/pkg/telemetry/prometheus"
)

const (
	ContentType = "application/webhook+json"

	defaultPoolSize    = 4
	defaultSendTimeout = 5 * time.Second
)

var ErrNotifierStopped = errors.New("notifier has been stopped")

type Notifier interface {
	Notify(ctx context.Context, event *Event) error
	QueueNotify(event *Event) error
	Stop(force bool)
}

type NotifierOption func(n *DefaultNotifier)

func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *DefaultNotifier) {
		n.client = client
	}
}

func WithNotifierLogger(l logger.Logger) NotifierOption {
	return func(n *DefaultNotifier) {
		n.logger = l
	}
}

// WithTokenValidity sets how long the token signing each delivery stays valid
func WithTokenValidity(validFor time.Duration) NotifierOption {
	return func(n *DefaultNotifier) {
		if validFor > 0 {
			n.tokenValidity = validFor
		}
	}
}

// WithPoolSize sets how many queued deliveries may run at once
func WithPoolSize(size int) NotifierOption {
	return func(n *DefaultNotifier) {
		if size > 0 {
			n.poolSize = size
		}
	}
}

// DefaultNotifier signs events and posts them to each configured URL.
type DefaultNotifier struct {
	issuer   *auth.APIKeyTokenIssuer
	urls     []string
	client   *http.Client
	logger   logger.Logger
	poolSize int

	tokenValidity time.Duration

	mu      sync.RWMutex
	pool    *workerpool.WorkerPool
	stopped bool
}

func NewDefaultNotifier(apiKey, apiSecret string, urls []string, opts ...NotifierOption) (*DefaultNotifier, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, auth.ErrKeysMissing
	}
	n := &DefaultNotifier{
		issuer:   auth.NewAPIKeyTokenIssuer(apiKey, apiSecret),
		urls:     urls,
		client:   &http.Client{Timeout: defaultSendTimeout},
		logger:   logger.GetLogger(),
		poolSize: defaultPoolSize,
	}
	for _, o := range opts {
		o(n)
	}
	if n.tokenValidity > 0 {
		n.issuer.ValidFor = n.tokenValidity
	}
	n.pool = workerpool.New(n.poolSize)
	return n, nil
}

// Notify delivers event to every URL, returning the first failure after trying them all.
// The delivered copy gets an ID and CreatedAt when they are unset, event itself is not modified.
func (n *DefaultNotifier) Notify(ctx context.Context, event *Event) error {
	n.mu.RLock()
	stopped := n.stopped
	n.mu.RUnlock()
	if stopped {
		return ErrNotifierStopped
	}

	out, payload, err := n.prepare(event)
	if err != nil {
		return err
	}

	var firstErr error
	for _, url := range n.urls {
		if err := n.send(ctx, url, payload); err != nil {
			n.logger.Warnw("failed to send webhook", err, "url", url, "event", out.Event, "id", out.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// QueueNotify delivers event in the background. Each delivery is signed when it is
// sent, so a backlog does not outlive its tokens.
func (n *DefaultNotifier) QueueNotify(event *Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		return ErrNotifierStopped
	}

	out, payload, err := n.prepare(event)
	if err != nil {
		return err
	}
	for _, url := range n.urls {
		url := url
		n.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
			defer cancel()
			if err := n.send(ctx, url, payload); err != nil {
				n.logger.Warnw("failed to send webhook", err, "url", url, "event", out.Event, "id", out.ID)
			}
		})
	}
	return nil
}

// Stop rejects further events. Queued deliveries are dropped when force is set,
// otherwise Stop waits for them.
func (n *DefaultNotifier) Stop(force bool) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()

	if force {
		n.pool.Stop()
	} else {
		n.pool.StopWait()
	}
}

// prepare encodes a copy of event with ID and CreatedAt filled in
func (n *DefaultNotifier) prepare(event *Event) (*Event, []byte, error) {
	if event == nil {
		return nil, nil, pkgerrors.Wrap(ErrInvalidPayload, "nil event")
	}
	if _, err := ParseEventKind(string(event.Event)); err != nil {
		return nil, nil, err
	}

	out := *event
	if out.ID == "" {
		out.ID = "EV_" + uuid.NewString()
	}
	if out.CreatedAt == 0 {
		out.CreatedAt = time.Now().Unix()
	}

	payload, err := encodeEvent(&out)
	if err != nil {
		return nil, nil, err
	}
	return &out, payload, nil
}

func (n *DefaultNotifier) send(ctx context.Context, url string, payload []byte) error {
	token, err := n.issuer.CreatePayloadDigestToken(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set(AuthHeader, token)
	req.Header.Set("Content-Type", ContentType)

	start := time.Now()
	res, err := n.client.Do(req)
	if err != nil {
		prometheus.RecordWebhookSent(0, 0)
		return err
	}
	defer res.Body.Close()
	prometheus.RecordWebhookSent(res.StatusCode, time.Since(start).Milliseconds())

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return pkgerrors.Errorf("webhook %s responded with %s", url, res.Status)
	}
	return nil
}
