package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kassa-labs/recon/api/middleware"
)

func (a Api) SuggestProviderMatches(c *gin.Context) {
	resp, err := a.recon.SuggestProviderMatches(c.Request.Context(), middleware.Tenant(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) SuggestBankMatches(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.recon.SuggestBankMatches(c.Request.Context(), middleware.Tenant(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) ProviderSummary(c *gin.Context) {
	resp, err := a.recon.ProviderSummary(c.Request.Context(), middleware.Tenant(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
