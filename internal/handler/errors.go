package handler

import (
	"errors"
	"net/http"

	"ims/internal/service"
	"ims/internal/workflow"
	"ims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var logger = zap.NewNop()

// SetLogger sets the logger used for server-side errors.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l.Named("handler")
	}
}

// statusFor maps a service error to its HTTP status and client message.
// Unclassified errors become a generic 500 so internals never leak.
func statusFor(err error) (int, string) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrRequestNotApproved),
		errors.Is(err, service.ErrOrderNotReceived),
		errors.Is(err, workflow.ErrInvalidStatus),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidDecision),
		errors.Is(err, workflow.ErrRequestDecided),
		errors.Is(err, workflow.ErrNoPendingStage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrForbidden), errors.Is(err, workflow.ErrStageForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusBadRequest, "record already exists"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return http.StatusBadRequest, "record references missing or dependent data"
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return http.StatusBadRequest, "record already exists"
	case errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation:
		return http.StatusBadRequest, "record references missing or dependent data"
	}
	return http.StatusInternalServerError, "internal server error"
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, response.Error(status, msg))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
