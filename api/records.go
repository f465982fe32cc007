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
	"github.com/kassa-labs/recon/api/middleware"
	model2 "github.com/kassa-labs/recon/api/model"
)

func (a Api) RecordLedgerItem(c *gin.Context) {
	var newItem model2.CreateLedgerItem
	if err := c.ShouldBindJSON(&newItem); err != nil {
		bindError(c, err)
		return
	}
	if err := newItem.ValidateCreateLedgerItem(); err != nil {
		bindError(c, err)
		return
	}

	resp, err := a.recon.RecordLedgerItem(c.Request.Context(), newItem.ToLedgerItem(middleware.Tenant(c)))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) RecordBankTransaction(c *gin.Context) {
	var newTxn model2.CreateBankTransaction
	if err := c.ShouldBindJSON(&newTxn); err != nil {
		bindError(c, err)
		return
	}
	if err := newTxn.ValidateCreateBankTransaction(); err != nil {
		bindError(c, err)
		return
	}

	resp, err := a.recon.RecordBankTransaction(c.Request.Context(), newTxn.ToBankTransaction(middleware.Tenant(c)))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) RecordProviderReport(c *gin.Context) {
	var newReport model2.CreateProviderReport
	if err := c.ShouldBindJSON(&newReport); err != nil {
		bindError(c, err)
		return
	}
	if err := newReport.ValidateCreateProviderReport(); err != nil {
		bindError(c, err)
		return
	}

	resp, err := a.recon.RecordProviderReport(c.Request.Context(), newReport.ToProviderReport(middleware.Tenant(c)))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetProviderReport(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	report, err := a.recon.GetProviderReport(c.Request.Context(), middleware.Tenant(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
