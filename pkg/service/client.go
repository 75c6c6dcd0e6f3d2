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

package service

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/twitchtv/twirp"
	"go.uber.org/atomic"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
	"github.com/livekit/livekit-server-sdk/pkg/telemetry/prometheus"
)

const defaultRequestTimeout = 10 * time.Second

var (
	ErrInvalidURL   = errors.New("invalid server url")
	ErrClientClosed = errors.New("client is closed")
)

type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     logger.Logger
}

// WithHTTPClient shares an existing client. Close leaves a shared client's
// connections alone.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

func WithClientLogger(l logger.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// twirpClient holds what every RPC client needs: the server address, the
// transport and a token template that is signed again for every call.
type twirpClient struct {
	url        string
	httpClient *http.Client
	ownsClient bool
	token      *auth.AccessToken
	logger     logger.Logger
	closed     atomic.Bool
}

func newTwirpClient(serverURL, apiKey, apiSecret string, grant *auth.VideoGrant, opts ...ClientOption) (*twirpClient, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, auth.ErrKeysMissing
	}
	httpURL, err := ToHTTPURL(serverURL)
	if err != nil {
		return nil, err
	}

	o := &clientOptions{
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	c := &twirpClient{
		url:        httpURL,
		httpClient: o.httpClient,
		token:      auth.NewAccessToken(apiKey, apiSecret).AddGrant(grant),
		logger:     o.logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: o.timeout}
		c.ownsClient = true
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	return c, nil
}

// twirpOptions are passed to the generated protobuf clients.
func (c *twirpClient) twirpOptions(service string) []twirp.ClientOption {
	return []twirp.ClientOption{
		twirp.WithClientHooks(twirp.ChainClientHooks(
			prometheus.TwirpClientHooks(),
			twirpClientLogger(c.logger.WithName(service)),
		)),
	}
}

// withAuth attaches a freshly signed token bound to room. An empty room keeps
// the grant unbound.
func (c *twirpClient) withAuth(ctx context.Context, room string) (context.Context, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	header, err := c.token.AuthHeader(room)
	if err != nil {
		return nil, err
	}
	return twirp.WithHTTPRequestHeaders(ctx, header)
}

// Close releases idle connections of a client created by the SDK. Calls made
// after Close fail with ErrClientClosed.
func (c *twirpClient) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.ownsClient {
		c.httpClient.CloseIdleConnections()
	}
}

func twirpClientLogger(l logger.Logger) *twirp.ClientHooks {
	return &twirp.ClientHooks{
		Error: func(ctx context.Context, err twirp.Error) {
			method, _ := twirp.MethodName(ctx)
			l.Debugw("rpc failed", "method", method, "code", err.Code(), "error", err.Msg())
		},
	}
}

// ToHTTPURL converts a websocket server url to the http url the RPC services
// listen on.
func ToHTTPURL(serverURL string) (string, error) {
	if serverURL == "" {
		return "", ErrInvalidURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", errors.Wrap(ErrInvalidURL, err.Error())
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", errors.Wrapf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Wrap(ErrInvalidURL, "missing host")
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}
