package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
)

// fail maps an engine error to an HTTP status and writes the error body.
func fail(c *gin.Context, err error) {
	status := http.StatusUnprocessableEntity
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindPermission:
		status = http.StatusForbidden
	case errs.KindAlreadyExists:
		status = http.StatusConflict
	case errs.KindLimitExceeded, errs.KindBudgetExhausted:
		status = http.StatusUnprocessableEntity
	case errs.KindInsufficient:
		status = http.StatusPaymentRequired
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
