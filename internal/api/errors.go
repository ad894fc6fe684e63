package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/devmind/internal/bridge"
	"github.com/HendryAvila/devmind/internal/dbexec"
	"github.com/HendryAvila/devmind/internal/models"
)

const adminHint = "Please contact your administrator."

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bridge.ErrUnavailable), errors.Is(err, bridge.ErrClosed),
		errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrUnknownModel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// detailFor is the client-facing message for err.
func detailFor(err error) string {
	switch {
	case errors.Is(err, bridge.ErrUnavailable):
		return "VS Code Copilot bridge is not available. Please ensure the VS Code extension is running."
	case errors.Is(err, bridge.ErrClosed):
		return "Connection to VS Code bridge was closed"
	case errors.Is(err, dbexec.ErrCorrupted):
		return "The dashboard database is corrupted. " + adminHint
	case errors.Is(err, dbexec.ErrSchemaMissing):
		return "The dashboard database schema is missing. " + adminHint
	case errors.Is(err, dbexec.ErrFileNotAccessible):
		return "The dashboard database file is not accessible. " + adminHint
	default:
		return err.Error()
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"detail": detailFor(err)})
}
