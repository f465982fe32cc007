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
	"context"
	"fmt"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/kassa-labs/recon/api"
	"github.com/kassa-labs/recon/config"
	trace "github.com/kassa-labs/recon/internal/traces"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const certStoragePath = "./certmagic"

// serveTLS starts an HTTPS server whose certificates are managed by CertMagic.
// Without a configured domain it serves localhost.
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: certStoragePath}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		logrus.Warn("no domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	logrus.Infof("starting HTTPS server on %s", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTPS server: %w", err)
	}
	return nil
}

func initializeTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := trace.SetupOTelSDK(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	logrus.Infof("starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the command that serves the HTTP API.
func serverCommands(r *reconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start recon server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			shutdown, err := initializeTracing(ctx, r.cnf.Tracing)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					logrus.WithError(err).Error("error during tracing shutdown")
				}
			}()

			a := api.NewAPI(r.recon)
			if a == nil {
				return fmt.Errorf("could not build the API router")
			}
			return startServer(a.Router(), r.cnf.Server)
		},
	}

	return cmd
}
