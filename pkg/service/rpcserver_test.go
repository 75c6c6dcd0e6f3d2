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

package service_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/utils"
)

// rpcCall is a request seen by rpcServer
type rpcCall struct {
	service string
	method  string
	grants  *auth.ClaimGrants
	authErr error
	body    []byte
}

// rpcServer answers twirp protobuf calls with canned responses.
type rpcServer struct {
	*httptest.Server
	apiKey string
	secret string

	mu        sync.Mutex
	calls     []rpcCall
	responses map[string]proto.Message
	failures  map[string]string
}

func newRPCServer(t *testing.T) *rpcServer {
	s := &rpcServer{
		apiKey:    utils.NewGuid(utils.APIKeyPrefix),
		secret:    utils.RandomSecret(),
		responses: make(map[string]proto.Message),
		failures:  make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *rpcServer) respond(method string, msg proto.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = msg
}

// fail makes method return a twirp error with the given code
func (s *rpcServer) fail(method string, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = code
}

func (s *rpcServer) handle(w http.ResponseWriter, r *http.Request) {
	service := strings.TrimPrefix(path.Dir(r.URL.Path), "/twirp/")
	call := rpcCall{
		service: service,
		method:  path.Base(r.URL.Path),
	}
	call.body, _ = io.ReadAll(r.Body)

	token := strings.TrimPrefix(r.Header.Get(auth.AuthorizationHeader), auth.BearerPrefix)
	call.grants, call.authErr = auth.VerifyGrants(s.apiKey, s.secret, token)

	s.mu.Lock()
	s.calls = append(s.calls, call)
	res := s.responses[call.method]
	code := s.failures[call.method]
	s.mu.Unlock()

	if call.authErr != nil {
		writeTwirpError(w, http.StatusUnauthorized, "unauthenticated", call.authErr.Error())
		return
	}
	if code != "" {
		writeTwirpError(w, http.StatusNotFound, code, "canned failure")
		return
	}

	var out []byte
	if res != nil {
		out, _ = proto.Marshal(res)
	}
	w.Header().Set("Content-Type", "application/protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *rpcServer) lastCall(t *testing.T) rpcCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.calls)
	return s.calls[len(s.calls)-1]
}

func (s *rpcServer) numCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// request decodes the body of the last call into msg
func (s *rpcServer) request(t *testing.T, msg proto.Message) rpcCall {
	call := s.lastCall(t)
	require.NoError(t, call.authErr)
	require.NoError(t, proto.Unmarshal(call.body, msg))
	return call
}

func writeTwirpError(w http.ResponseWriter, status int, code string, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"code":"`+code+`","msg":"`+strings.ReplaceAll(msg, `"`, `'`)+`"}`)
}
