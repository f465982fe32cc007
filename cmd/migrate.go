/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"time"

	"github.com/kassa-labs/recon"
	"github.com/kassa-labs/recon/config"
	"github.com/kassa-labs/recon/database"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

const migrationSchema = "recon"

func migrateCommands(r *reconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run recon database migrations",
	}

	cmd.AddCommand(migrateDirectionCommand(r, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(r, "down", migrate.Down))

	return cmd
}

func migrateDirectionCommand(r *reconInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("apply migrations %s", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := runMigrations(r.cnf, direction)
			if err != nil {
				return fmt.Errorf("error migrating %s: %w", use, err)
			}
			fmt.Printf("Applied %d migrations %s!\n", n, use)
			return nil
		},
	}
}

func runMigrations(cnf *config.Configuration, direction migrate.MigrationDirection) (int, error) {
	if cnf.DataSource.Dns == config.MemoryDataSource {
		return 0, fmt.Errorf("the in-memory data source has no schema to migrate")
	}

	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: recon.SQLFiles,
		Root:       "sql",
	}

	db, err := database.ConnectDB(cnf.DataSource.Dns, time.Duration(cnf.DataSource.ConnectRetrySec)*time.Second)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	migrate.SetSchema(migrationSchema)
	return migrate.Exec(db, "postgres", migrations, direction)
}
