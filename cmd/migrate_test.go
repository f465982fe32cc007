package main

import (
	"testing"

	"github.com/kassa-labs/recon"
	"github.com/kassa-labs/recon/config"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/assert"
)

func TestRunMigrationsRejectsMemoryDataSource(t *testing.T) {
	cnf := &config.Configuration{DataSource: config.DataSourceConfig{Dns: config.MemoryDataSource}}
	n, err := runMigrations(cnf, migrate.Up)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	source := migrate.EmbedFileSystemMigrationSource{FileSystem: recon.SQLFiles, Root: "sql"}
	migrations, err := source.FindMigrations()
	assert.NoError(t, err)
	assert.NotEmpty(t, migrations)
}
