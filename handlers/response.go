package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-tracker/database"
)

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// storeFailure logs the underlying error and answers with a generic message.
// Connection-level failures are reported as 503, anything else as 500.
func storeFailure(c *gin.Context, logger *zap.Logger, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, database.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
	}
	logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	abortWithError(c, status, message)
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
