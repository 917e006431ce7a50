// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/apiauth/internal/auth"
)

var _ = Describe("UserRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx, env.pool)
	})

	Describe("Insert", func() {
		It("assigns increasing ids", func() {
			a, err := env.Users.Insert(ctx, "a@example.com", []byte("hash-a"))
			Expect(err).NotTo(HaveOccurred())
			b, err := env.Users.Insert(ctx, "b@example.com", []byte("hash-b"))
			Expect(err).NotTo(HaveOccurred())

			Expect(a.ID).To(BeNumerically(">", 0))
			Expect(b.ID).To(BeNumerically(">", a.ID))
			Expect(a.SessionID).To(BeNil())
			Expect(a.ResetToken).To(BeNil())
		})

		It("rejects a duplicate email and keeps the first user", func() {
			first, err := env.Users.Insert(ctx, "dup@example.com", []byte("first"))
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Users.Insert(ctx, "dup@example.com", []byte("second"))
			Expect(err).To(MatchError(auth.ErrDuplicateUser))

			got, err := env.Users.Find(ctx, auth.Fields{auth.FieldEmail: "dup@example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(first.ID))
			Expect(got.HashedPassword).To(Equal([]byte("first")))
		})
	})

	Describe("Find", func() {
		It("matches on every filter entry", func() {
			u, err := env.Users.Insert(ctx, "bob@example.com", []byte("hash"))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Users.Update(ctx, u.ID, auth.Fields{auth.FieldSessionID: "sess-1"})).To(Succeed())

			got, err := env.Users.Find(ctx, auth.Fields{
				auth.FieldEmail:     "bob@example.com",
				auth.FieldSessionID: "sess-1",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(u.ID))
			Expect(*got.SessionID).To(Equal("sess-1"))

			_, err = env.Users.Find(ctx, auth.Fields{
				auth.FieldEmail:     "bob@example.com",
				auth.FieldSessionID: "other",
			})
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("rejects unknown fields", func() {
			_, err := env.Users.Find(ctx, auth.Fields{"nickname": "bob"})
			Expect(err).To(MatchError(auth.ErrInvalidAttribute))
		})
	})

	Describe("Update", func() {
		It("clears nullable columns with nil", func() {
			u, err := env.Users.Insert(ctx, "bob@example.com", []byte("hash"))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Users.Update(ctx, u.ID, auth.Fields{auth.FieldResetToken: "tok"})).To(Succeed())

			Expect(env.Users.Update(ctx, u.ID, auth.Fields{
				auth.FieldHashedPassword: []byte("new-hash"),
				auth.FieldResetToken:     nil,
			})).To(Succeed())

			got, err := env.Users.Find(ctx, auth.Fields{auth.FieldID: u.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ResetToken).To(BeNil())
			Expect(got.HashedPassword).To(Equal([]byte("new-hash")))
		})

		It("reports a missing user", func() {
			err := env.Users.Update(ctx, 9999, auth.Fields{auth.FieldSessionID: "x"})
			Expect(err).To(MatchError(auth.ErrNotFound))

			err = env.Users.Update(ctx, 9999, auth.Fields{})
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("rejects changing the id", func() {
			u, err := env.Users.Insert(ctx, "bob@example.com", []byte("hash"))
			Expect(err).NotTo(HaveOccurred())

			err = env.Users.Update(ctx, u.ID, auth.Fields{auth.FieldID: int64(42)})
			Expect(err).To(MatchError(auth.ErrInvalidAttribute))
		})
	})
})
