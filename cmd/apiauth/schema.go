// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/apiauth/internal/auth/postgres"
	"github.com/holomush/apiauth/internal/config"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or apply the PostgreSQL schema",
		Long: `Print the DDL for the users and user_sessions tables. With --apply,
run it against database_url instead. The DDL is idempotent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !apply {
				_, err := fmt.Fprint(cmd.OutOrStdout(), postgres.Schema)
				return err
			}

			cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
			if err != nil {
				return err
			}
			if err := applySchema(cmd.Context(), cfg.DatabaseURL); err != nil {
				return err
			}
			cmd.Println("schema applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "apply the schema to database_url")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")

	return cmd
}

func applySchema(ctx context.Context, databaseURL string) error {
	if databaseURL == "" {
		return oops.Code("SCHEMA_NO_DATABASE").Errorf("database_url is required to apply the schema")
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	return postgres.ApplySchema(ctx, conn)
}
