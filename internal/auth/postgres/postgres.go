// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth stores on PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// Schema is the DDL for the users and user_sessions tables.
//
//go:embed schema.sql
var Schema string

// poolIface is the subset of *pgxpool.Pool used by the repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// ApplySchema creates the tables and indexes if they do not exist.
func ApplySchema(ctx context.Context, db poolIface) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return oops.Code("SCHEMA_APPLY_FAILED").Wrap(err)
	}
	return nil
}
