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

package recon

import (
	"context"
	"embed"
	"time"

	"github.com/kassa-labs/recon/config"
	"github.com/kassa-labs/recon/database"
	"github.com/kassa-labs/recon/internal/notification"
	redis_db "github.com/kassa-labs/recon/internal/redis-db"
	"github.com/kassa-labs/recon/matching"
	"github.com/kassa-labs/recon/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("recon")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// Recon is the matching engine. It is safe for concurrent use; every
// operation is scoped by an explicit tenant id.
type Recon struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	config     config.MatchingConfig
	notify     func(event, tenantID string, err error)
	now        func() time.Time
}

// NewRecon initializes the engine with the provided datasource.
// It fetches the configuration and connects to Redis when one is configured,
// which enables the per-tenant auto-match lock.
//
// Parameters:
// - db database.IDataSource: The datasource for record and match persistence.
//
// Returns:
// - *Recon: A pointer to the newly created engine.
// - error: An error if the configuration is missing or Redis is unreachable.
func NewRecon(db database.IDataSource) (*Recon, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	r := &Recon{
		datasource: db,
		config:     cnf.Matching,
		notify:     notification.NotifyError,
		now:        time.Now,
	}
	if cnf.Redis.Dns != "" {
		client, err := redis_db.NewRedisClient([]string{cnf.Redis.Dns}, cnf.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		r.redis = client
	} else {
		logrus.Warn("redis is not configured, concurrent auto-match runs of a tenant are not serialized")
	}
	return r, nil
}

// Ping reports whether the datasource is reachable.
func (r *Recon) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.datasource.Ping(ctx)
}

func (r *Recon) scorer() matching.Scorer {
	w := r.config.Weights
	return matching.NewScorer(matching.Weights{Amount: w.Amount, Date: w.Date, Description: w.Description})
}

func (r *Recon) policyFor(tenantID string) matching.Policy {
	t := r.config.ThresholdsFor(tenantID)
	return matching.Policy{AutoThreshold: t.AutoMatch, ReviewThreshold: t.Review, AmbiguityMargin: t.AmbiguityMargin}
}

// tolerance returns the amount difference accepted at commit time for a match type.
func (r *Recon) tolerance(mt model.MatchType) model.Amount {
	t := r.config.Tolerances
	d := t.Single
	switch mt {
	case model.MatchTypeCombination:
		d = t.Combination
	case model.MatchTypeProviderBulk:
		d = t.ProviderBulk
	}
	// validated to two decimal places when the configuration is loaded
	a, _ := model.AmountFromDecimal(d)
	return a
}
