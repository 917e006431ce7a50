// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/apiauth/internal/auth"
	"github.com/holomush/apiauth/internal/strategy"
)

type cookieRequest struct{ name, value string }

func (cookieRequest) Path() string { return "/api/v1/users/me" }
func (cookieRequest) Header(string) string { return "" }
func (r cookieRequest) Cookie(name string) (string, bool) {
	if name != r.name {
		return "", false
	}
	return r.value, true
}

var _ = Describe("SessionRepository", func() {
	var (
		ctx  context.Context
		user *auth.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx, env.pool)

		var err error
		user, err = env.Users.Insert(ctx, "bob@example.com", []byte("hash"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores and finds a session by its plain id", func() {
		created := time.Now().UTC().Truncate(time.Microsecond)
		s, err := auth.NewSession("plain-id", user.ID, created)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, s)).To(Succeed())

		var stored string
		Expect(env.pool.QueryRow(ctx, `SELECT token_hash FROM user_sessions WHERE id = $1`, s.ID.String()).
			Scan(&stored)).To(Succeed())
		Expect(stored).To(Equal(auth.HashToken("plain-id")))
		Expect(stored).NotTo(Equal("plain-id"))

		found, err := env.Sessions.FindBySessionID(ctx, "plain-id")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found[0].ID).To(Equal(s.ID))
		Expect(found[0].SessionID).To(Equal("plain-id"))
		Expect(found[0].UserID).To(Equal(user.ID))
		Expect(found[0].CreatedAt.Equal(created)).To(BeTrue())
	})

	It("returns nothing for an unknown id", func() {
		found, err := env.Sessions.FindBySessionID(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})

	It("deletes by row id", func() {
		s, err := auth.NewSession("plain-id", user.ID, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, s)).To(Succeed())

		Expect(env.Sessions.Delete(ctx, s.ID)).To(Succeed())
		Expect(env.Sessions.Delete(ctx, s.ID)).To(MatchError(auth.ErrNotFound))
	})

	It("rejects a second row for the same session id", func() {
		first, err := auth.NewSession("plain-id", user.ID, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, first)).To(Succeed())

		second, err := auth.NewSession("plain-id", user.ID, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, second)).NotTo(Succeed())
	})
})

var _ = Describe("DatabaseSessionAuth", func() {
	var (
		ctx  context.Context
		user *auth.User
		now  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx, env.pool)
		now = time.Now().UTC().Truncate(time.Microsecond)

		var err error
		user, err = env.Users.Insert(ctx, "bob@example.com", []byte("hash"))
		Expect(err).NotTo(HaveOccurred())
	})

	newStrategy := func(ttl time.Duration) *strategy.DatabaseSessionAuth {
		return strategy.NewDatabaseSessionAuth("sid", env.Users, env.Sessions, ttl,
			strategy.WithClock(func() time.Time { return now }))
	}

	It("resolves, expires and destroys sessions", func() {
		s := newStrategy(time.Second)

		id, err := s.CreateSession(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		got, err := s.CurrentUser(ctx, cookieRequest{"sid", id})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).NotTo(BeNil())
		Expect(got.ID).To(Equal(user.ID))

		now = now.Add(2 * time.Second)
		got, err = s.CurrentUser(ctx, cookieRequest{"sid", id})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())

		// expired rows are kept until destroyed
		destroyed, err := s.DestroySession(ctx, cookieRequest{"sid", id})
		Expect(err).NotTo(HaveOccurred())
		Expect(destroyed).To(BeTrue())

		destroyed, err = s.DestroySession(ctx, cookieRequest{"sid", id})
		Expect(err).NotTo(HaveOccurred())
		Expect(destroyed).To(BeFalse())
	})

	It("never expires with a zero ttl", func() {
		s := newStrategy(0)

		id, err := s.CreateSession(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(365 * 24 * time.Hour)
		got, err := s.CurrentUser(ctx, cookieRequest{"sid", id})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).NotTo(BeNil())
	})

	It("drops sessions with their user", func() {
		s := newStrategy(0)
		id, err := s.CreateSession(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID)
		Expect(err).NotTo(HaveOccurred())

		found, err := env.Sessions.FindBySessionID(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})
})

var _ = Describe("AuthService on PostgreSQL", func() {
	var (
		ctx     context.Context
		service *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx, env.pool)

		var err error
		service, err = auth.NewAuthService(env.Users, auth.NewBcryptHasher(bcrypt.MinCost))
		Expect(err).NotTo(HaveOccurred())
	})

	It("runs the account lifecycle", func() {
		u, err := service.RegisterUser(ctx, "bob@example.com", "old")
		Expect(err).NotTo(HaveOccurred())

		_, err = service.RegisterUser(ctx, "bob@example.com", "other")
		Expect(err).To(MatchError(auth.ErrDuplicateUser))

		Expect(service.ValidLogin(ctx, "bob@example.com", "old")).To(BeTrue())
		Expect(service.ValidLogin(ctx, "bob@example.com", "wrong")).To(BeFalse())
		Expect(service.ValidLogin(ctx, "eve@example.com", "old")).To(BeFalse())

		sid, err := service.CreateSession(ctx, "bob@example.com")
		Expect(err).NotTo(HaveOccurred())
		got, err := service.GetUserFromSessionID(ctx, sid)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))

		Expect(service.DestroySession(ctx, u.ID)).To(Succeed())
		got, err = service.GetUserFromSessionID(ctx, sid)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())

		token, err := service.GetResetPasswordToken(ctx, "bob@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(service.UpdatePassword(ctx, token, "new")).To(Succeed())
		Expect(service.UpdatePassword(ctx, token, "again")).To(MatchError(auth.ErrInvalidResetToken))

		Expect(service.ValidLogin(ctx, "bob@example.com", "new")).To(BeTrue())
		Expect(service.ValidLogin(ctx, "bob@example.com", "old")).To(BeFalse())
	})

	It("reports unknown users for reset tokens", func() {
		_, err := service.GetResetPasswordToken(ctx, "nobody@example.com")
		Expect(err).To(MatchError(auth.ErrUserNotFound))
	})
})
