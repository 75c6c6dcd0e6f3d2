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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/auth/authfakes"
	"github.com/livekit/livekit-server-sdk/pkg/service"
)

func TestAuthMiddleware(t *testing.T) {
	api := "APIabcdefg"
	secret := "somesecretencodedinbase62"
	provider := &authfakes.FakeKeyProvider{}
	provider.GetSecretReturns(secret)

	m := service.NewAPIKeyAuthMiddleware(provider)
	var grants *auth.ClaimGrants
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grants = service.GetGrants(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	orig := &auth.VideoGrant{Room: "abcdefg", RoomJoin: true}
	// ensure that the original claim could be retrieved
	at := auth.NewAccessToken(api, secret).
		AddGrant(orig)
	token, err := at.ToJWT()
	assert.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	service.SetAuthorizationToken(r, token)
	m.ServeHTTP(w, r, handler)

	assert.NotNil(t, grants)
	assert.EqualValues(t, orig, grants.Video)
	assert.Equal(t, api, provider.GetSecretArgsForCall(0))

	// token as query parameter
	grants = nil
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/events?access_token="+token, nil)
	m.ServeHTTP(w, r, handler)
	assert.NotNil(t, grants)

	// no authorization == no claims
	grants = nil
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/events", nil)
	m.ServeHTTP(w, r, handler)
	assert.Nil(t, grants)
	assert.Equal(t, http.StatusOK, w.Code)

	// incorrect authorization: error
	grants = nil
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/events", nil)
	service.SetAuthorizationToken(r, "invalid token")
	m.ServeHTTP(w, r, handler)
	assert.Nil(t, grants)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// header without bearer prefix
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/events", nil)
	r.Header.Set(auth.AuthorizationHeader, token)
	m.ServeHTTP(w, r, handler)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	secret := "somesecretencodedinbase62"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	t.Run("unknown api key", func(t *testing.T) {
		m := service.NewAPIKeyAuthMiddleware(&authfakes.FakeKeyProvider{})
		token, err := auth.NewAccessToken("APIunknown", secret).AddGrant(&auth.VideoGrant{RoomList: true}).ToJWT()
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		service.SetAuthorizationToken(r, token)
		w := httptest.NewRecorder()
		m.ServeHTTP(w, r, next)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("signed with another secret", func(t *testing.T) {
		provider := &authfakes.FakeKeyProvider{}
		provider.GetSecretReturns(secret)
		m := service.NewAPIKeyAuthMiddleware(provider)
		token, err := auth.NewAccessToken("APIabcdefg", "another secret").AddGrant(&auth.VideoGrant{RoomList: true}).ToJWT()
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		service.SetAuthorizationToken(r, token)
		w := httptest.NewRecorder()
		m.ServeHTTP(w, r, next)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireGrant(t *testing.T) {
	h := service.RequireGrant(service.EnsureListPermission, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tc := range []struct {
		name   string
		grants *auth.ClaimGrants
		code   int
	}{
		{name: "no grants", code: http.StatusUnauthorized},
		{name: "no video grant", grants: &auth.ClaimGrants{}, code: http.StatusForbidden},
		{name: "join only", grants: &auth.ClaimGrants{Video: &auth.VideoGrant{RoomJoin: true}}, code: http.StatusForbidden},
		{name: "list", grants: &auth.ClaimGrants{Video: &auth.VideoGrant{RoomList: true}}, code: http.StatusNoContent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/events", nil)
			if tc.grants != nil {
				r = r.WithContext(service.WithGrants(r.Context(), tc.grants))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			require.Equal(t, tc.code, w.Code)
		})
	}
}

func TestRequireGrantBehindMiddleware(t *testing.T) {
	api := "APIabcdefg"
	secret := "somesecretencodedinbase62"
	provider := &authfakes.FakeKeyProvider{}
	provider.GetSecretReturns(secret)

	m := service.NewAPIKeyAuthMiddleware(provider)
	guarded := service.RequireGrant(service.EnsureListPermission, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(grant *auth.VideoGrant) int {
		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		if grant != nil {
			token, err := auth.NewAccessToken(api, secret).AddGrant(grant).ToJWT()
			require.NoError(t, err)
			service.SetAuthorizationToken(r, token)
		}
		w := httptest.NewRecorder()
		m.ServeHTTP(w, r, guarded.ServeHTTP)
		return w.Code
	}

	require.Equal(t, http.StatusUnauthorized, serve(nil))
	require.Equal(t, http.StatusForbidden, serve(&auth.VideoGrant{RoomJoin: true, Room: "myroom"}))
	require.Equal(t, http.StatusNoContent, serve(&auth.VideoGrant{RoomList: true}))
}

func TestEnsurePermissions(t *testing.T) {
	ctx := service.WithGrants(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &auth.ClaimGrants{
		Video: &auth.VideoGrant{RoomJoin: true, RoomAdmin: true, Room: "myroom"},
	})

	room, err := service.EnsureJoinPermission(ctx)
	require.NoError(t, err)
	require.Equal(t, "myroom", room)

	require.NoError(t, service.EnsureAdminPermission(ctx, "myroom"))
	require.ErrorIs(t, service.EnsureAdminPermission(ctx, "other"), service.ErrPermissionDenied)
	require.ErrorIs(t, service.EnsureCreatePermission(ctx), service.ErrPermissionDenied)
	require.ErrorIs(t, service.EnsureRecordPermission(ctx), service.ErrPermissionDenied)
}
