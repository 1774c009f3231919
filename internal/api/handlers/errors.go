package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/importer"
	"github.com/andresuchdata/eisen-inventory/internal/service"
	"github.com/andresuchdata/eisen-inventory/pkg/validator"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err), importer.IsHeaderError(err), importer.IsParseError(err),
		errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, os.ErrNotExist):
		return http.StatusBadRequest
	case domain.IsNotFound(err), errors.Is(err, domain.ErrUnknownProduct):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStorageDisabled), errors.Is(err, service.ErrDriveDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": msg}. Server errors hide their cause behind
// fallback and keep it on the context for the request logger.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindRequest decodes the JSON body into dst and runs its validate tags.
func bindRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body")
		return false
	}
	if err := validator.Validate(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// parseOptionalID reads an optional positive id query parameter.
func parseOptionalID(c *gin.Context, name string) (*int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}
