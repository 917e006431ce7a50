// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/apiauth/internal/auth"
	"github.com/holomush/apiauth/internal/auth/memory"
	"github.com/holomush/apiauth/pkg/errutil"
)

func TestUserStore_InsertAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()

	first, err := store.Insert(ctx, "a@example.com", []byte("h1"))
	require.NoError(t, err)
	second, err := store.Insert(ctx, "b@example.com", []byte("h2"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Nil(t, first.SessionID)
	assert.Nil(t, first.ResetToken)
}

func TestUserStore_InsertDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()

	_, err := store.Insert(ctx, "a@example.com", []byte("h1"))
	require.NoError(t, err)

	_, err = store.Insert(ctx, "a@example.com", []byte("h2"))
	errutil.AssertCodedSentinel(t, err, "USER_DUPLICATE", auth.ErrDuplicateUser)

	u, err := store.Find(ctx, auth.Fields{auth.FieldEmail: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []byte("h1"), u.HashedPassword)
	assert.Equal(t, 1, store.Len())
}

func TestUserStore_Find(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()
	u, err := store.Insert(ctx, "a@example.com", []byte("h1"))
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, u.ID, auth.Fields{auth.FieldSessionID: "sess-1"}))

	tests := []struct {
		name    string
		filter  auth.Fields
		wantID  int64
		wantErr error
	}{
		{name: "by email", filter: auth.Fields{auth.FieldEmail: "a@example.com"}, wantID: u.ID},
		{name: "by id", filter: auth.Fields{auth.FieldID: u.ID}, wantID: u.ID},
		{name: "by session id", filter: auth.Fields{auth.FieldSessionID: "sess-1"}, wantID: u.ID},
		{name: "all fields must match", filter: auth.Fields{auth.FieldID: u.ID, auth.FieldEmail: "x@example.com"}, wantErr: auth.ErrNotFound},
		{name: "unknown email", filter: auth.Fields{auth.FieldEmail: "nobody@example.com"}, wantErr: auth.ErrNotFound},
		{name: "no reset token set", filter: auth.Fields{auth.FieldResetToken: "tok"}, wantErr: auth.ErrNotFound},
		{name: "unknown field", filter: auth.Fields{"nickname": "bob"}, wantErr: auth.ErrInvalidAttribute},
		{name: "wrong value type", filter: auth.Fields{auth.FieldID: 1}, wantErr: auth.ErrInvalidAttribute},
		{name: "empty filter", filter: auth.Fields{}, wantErr: auth.ErrInvalidAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Find(ctx, tt.filter)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestUserStore_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()
	u, err := store.Insert(ctx, "a@example.com", []byte("h1"))
	require.NoError(t, err)

	got, err := store.Find(ctx, auth.Fields{auth.FieldID: u.ID})
	require.NoError(t, err)
	got.Email = "changed@example.com"
	got.HashedPassword[0] = 'x'

	again, err := store.Find(ctx, auth.Fields{auth.FieldID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", again.Email)
	assert.Equal(t, []byte("h1"), again.HashedPassword)
}

func TestUserStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("sets and clears optional fields", func(t *testing.T) {
		store := memory.NewUserStore()
		u, err := store.Insert(ctx, "a@example.com", []byte("h1"))
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, u.ID, auth.Fields{
			auth.FieldSessionID:  "sess",
			auth.FieldResetToken: "reset",
		}))
		got, err := store.Find(ctx, auth.Fields{auth.FieldID: u.ID})
		require.NoError(t, err)
		require.NotNil(t, got.SessionID)
		require.NotNil(t, got.ResetToken)
		assert.Equal(t, "sess", *got.SessionID)
		assert.Equal(t, "reset", *got.ResetToken)

		require.NoError(t, store.Update(ctx, u.ID, auth.Fields{auth.FieldSessionID: nil}))
		got, err = store.Find(ctx, auth.Fields{auth.FieldID: u.ID})
		require.NoError(t, err)
		assert.Nil(t, got.SessionID)
		assert.NotNil(t, got.ResetToken)
	})

	t.Run("unknown user", func(t *testing.T) {
		store := memory.NewUserStore()
		err := store.Update(ctx, 42, auth.Fields{auth.FieldSessionID: "x"})
		errutil.AssertCodedSentinel(t, err, "USER_NOT_FOUND", auth.ErrNotFound)
	})

	t.Run("rejects id change", func(t *testing.T) {
		store := memory.NewUserStore()
		u, err := store.Insert(ctx, "a@example.com", []byte("h1"))
		require.NoError(t, err)
		err = store.Update(ctx, u.ID, auth.Fields{auth.FieldID: int64(9)})
		errutil.AssertCodedSentinel(t, err, "USER_INVALID_ATTRIBUTE", auth.ErrInvalidAttribute)
	})

	t.Run("rejects unknown field", func(t *testing.T) {
		store := memory.NewUserStore()
		u, err := store.Insert(ctx, "a@example.com", []byte("h1"))
		require.NoError(t, err)
		err = store.Update(ctx, u.ID, auth.Fields{"role": "admin"})
		errutil.AssertCodedSentinel(t, err, "USER_INVALID_ATTRIBUTE", auth.ErrInvalidAttribute)
	})

	t.Run("rejects email taken by another user", func(t *testing.T) {
		store := memory.NewUserStore()
		_, err := store.Insert(ctx, "a@example.com", []byte("h1"))
		require.NoError(t, err)
		b, err := store.Insert(ctx, "b@example.com", []byte("h2"))
		require.NoError(t, err)
		err = store.Update(ctx, b.ID, auth.Fields{auth.FieldEmail: "a@example.com"})
		assert.ErrorIs(t, err, auth.ErrDuplicateUser)
	})
}

func TestUserStore_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Insert(ctx, fmt.Sprintf("user%d@example.com", i), []byte("h"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
