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
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kassa-labs/recon/api/middleware"
	model2 "github.com/kassa-labs/recon/api/model"
)

func (a Api) CommitMatch(c *gin.Context) {
	var req model2.CommitMatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateCommitMatch(); err != nil {
		bindError(c, err)
		return
	}

	match, err := a.recon.CommitMatch(c.Request.Context(), req.ToCommitRequest(middleware.Tenant(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, match)
}

// AutoMatch commits a caller supplied batch. Candidate failures are part of
// the 200 response; only systemic failures change the status.
func (a Api) AutoMatch(c *gin.Context) {
	var req model2.AutoMatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateAutoMatch(); err != nil {
		bindError(c, err)
		return
	}

	result, err := a.recon.AutoMatch(c.Request.Context(), middleware.Tenant(c), req.Candidates, req.MatchedBy)
	if err != nil {
		respondPartial(c, err, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) RunProviderAutoMatch(c *gin.Context) {
	var req model2.RunAutoMatch
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	result, err := a.recon.RunProviderAutoMatch(c.Request.Context(), middleware.Tenant(c), req.MatchedBy)
	if err != nil {
		respondPartial(c, err, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) RunBankAutoMatch(c *gin.Context) {
	var req model2.RunAutoMatch
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	result, err := a.recon.RunBankAutoMatch(c.Request.Context(), middleware.Tenant(c), req.MatchedBy)
	if err != nil {
		respondPartial(c, err, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) GetMatch(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	match, err := a.recon.GetMatch(c.Request.Context(), middleware.Tenant(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (a Api) ListMatches(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a number"})
		return
	}
	includeVoided := c.Query("include_voided") == "true"

	matches, err := a.recon.ListMatches(c.Request.Context(), middleware.Tenant(c), includeVoided, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (a Api) ReverseMatch(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.ReverseMatch
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	match, err := a.recon.ReverseMatch(c.Request.Context(), middleware.Tenant(c), id, req.By)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
