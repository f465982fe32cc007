package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kassa-labs/recon/internal/apierror"
	redlock "github.com/kassa-labs/recon/internal/lock"
	"github.com/kassa-labs/recon/model"
)

// respondError writes err with the status its type maps to.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, redlock.ErrLockHeld) {
		c.JSON(http.StatusConflict, apierror.APIError{Code: apierror.ErrConflict, Message: "auto-match is already running for this tenant"})
		return
	}
	apiErr := apierror.FromError(err)
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
}

// respondPartial writes err like respondError and keeps the matches a batch
// committed before it stopped under "result".
func respondPartial(c *gin.Context, err error, result *model.AutoMatchResult) {
	if result == nil || errors.Is(err, redlock.ErrLockHeld) {
		respondError(c, err)
		return
	}
	apiErr := apierror.FromError(err)
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
		"details": apiErr.Details,
		"result":  result,
	})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
}
