// Package handlers adapts the services to gin. Handlers decode the request,
// call one service operation and write either the result or an error envelope.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/services"
)

type APIError struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err as an envelope. Internal failures never expose their
// cause.
func RespondError(c *gin.Context, err error) {
	status := apierr.StatusOf(err)
	body := APIError{Message: "internal error", Code: apierr.CodeOf(err)}
	if status < http.StatusInternalServerError {
		body.Message = err.Error()
		if apiErr, ok := apierr.As(err); ok {
			body.Details = apiErr.Details
		}
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// bind decodes the JSON body into req, answering with a validation error on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondError(c, apierr.Validation("invalid request body", err.Error()))
		return false
	}
	return true
}

// pagination reads the page and pageSize query parameters.
func pagination(c *gin.Context) (services.Pagination, error) {
	var p services.Pagination
	for key, dst := range map[string]*int{"page": &p.Page, "pageSize": &p.PageSize} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, apierr.Validation(key + " must be an integer")
		}
		*dst = n
	}
	return p.Normalize(), nil
}
