package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kassa-labs/recon/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance IDataSource
var once sync.Once

// Datasource is the PostgreSQL implementation of IDataSource.
type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	return GetDBConnection(configuration)
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
// The memory data source returns a fresh MemoryStore shared for the lifetime of the process.
func GetDBConnection(configuration *config.Configuration) (IDataSource, error) {
	var err error
	once.Do(func() {
		if configuration.DataSource.Dns == config.MemoryDataSource {
			logrus.Warn("using the in-memory data source, matches will not survive a restart")
			instance = NewMemoryStore()
			return
		}
		retry := time.Duration(configuration.DataSource.ConnectRetrySec) * time.Second
		con, errConn := ConnectDB(configuration.DataSource.Dns, retry)
		if errConn != nil {
			err = errConn
			return
		}
		instance = Datasource{Conn: con}
	})
	if err != nil {
		once = sync.Once{}
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens the connection pool and pings the database with exponential
// backoff until maxWait has elapsed.
func ConnectDB(dns string, maxWait time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxWait
	err = backoff.RetryNotify(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}, policy, func(err error, next time.Duration) {
		logrus.WithError(err).Warnf("database not reachable, retrying in %s", next)
	})
	if err != nil {
		logrus.Errorf("database connection error: %v", err)
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Ping reports whether the database is reachable.
func (d Datasource) Ping(ctx context.Context) error {
	return d.Conn.PingContext(ctx)
}
