// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/apiauth/internal/auth"
	"github.com/holomush/apiauth/internal/auth/memory"
)

type fakeRequest struct {
	path    string
	headers map[string]string
	cookies map[string]string
}

func (f fakeRequest) Path() string { return f.path }

func (f fakeRequest) Header(name string) string { return f.headers[name] }

func (f fakeRequest) Cookie(name string) (string, bool) {
	v, ok := f.cookies[name]
	return v, ok
}

func withCookie(name, value string) fakeRequest {
	return fakeRequest{path: "/api/v1/users/me", cookies: map[string]string{name: value}}
}

func withBasic(email, password string) fakeRequest {
	token := base64.StdEncoding.EncodeToString([]byte(email + ":" + password))
	return fakeRequest{path: "/api/v1/users/me", headers: map[string]string{"Authorization": "Basic " + token}}
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seedUser registers email/password in a fresh memory store.
func seedUser(t *testing.T, email, password string) (*memory.UserStore, *auth.BcryptHasher, *auth.User) {
	t.Helper()
	store := memory.NewUserStore()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	u, err := store.Insert(context.Background(), email, hash)
	require.NoError(t, err)
	return store, hasher, u
}
