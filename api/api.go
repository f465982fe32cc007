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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kassa-labs/recon"
	"github.com/kassa-labs/recon/api/middleware"
	"github.com/kassa-labs/recon/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	recon  *recon.Recon
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	tenant := router.Group("/", middleware.TenantMiddleware())

	tenant.POST("/ledger-items", a.RecordLedgerItem)
	tenant.POST("/bank-transactions", a.RecordBankTransaction)
	tenant.POST("/provider-reports", a.RecordProviderReport)
	tenant.GET("/provider-reports/:id", a.GetProviderReport)

	tenant.GET("/suggestions/provider", a.SuggestProviderMatches)
	tenant.GET("/suggestions/bank/:id", a.SuggestBankMatches)
	tenant.GET("/providers/summary", a.ProviderSummary)

	tenant.POST("/matches", a.CommitMatch)
	tenant.POST("/matches/auto", a.AutoMatch)
	tenant.POST("/matches/auto/provider", a.RunProviderAutoMatch)
	tenant.POST("/matches/auto/bank", a.RunBankAutoMatch)
	tenant.GET("/matches/:id", a.GetMatch)
	tenant.GET("/matches", a.ListMatches)
	tenant.POST("/matches/:id/reverse", a.ReverseMatch)

	return router
}

func NewAPI(r *recon.Recon) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}

	router := gin.Default()
	router.Use(otelgin.Middleware(conf.Tracing.ServiceName))
	router.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		router.Use(middleware.SecretKeyAuthMiddleware())
	}

	a := &Api{recon: r, router: router}
	router.GET("/health", a.Health)
	return a
}

func (a Api) Health(c *gin.Context) {
	if err := a.recon.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
