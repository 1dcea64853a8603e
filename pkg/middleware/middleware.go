package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "raffle/pkg/errors"
	"raffle/pkg/logging"
)

const RequestIDHeader = "X-Request-ID"

type requestLogger interface {
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
}

func LoggerMiddleware(logger requestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		logFields := []interface{}{
			"status", statusCode,
			"latency", latency,
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		}

		if errorMessage != "" {
			logFields = append(logFields, "error", errorMessage)
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			logger.ErrorwCtx(ctx, "HTTP Request", logFields...)
		case statusCode >= 400:
			logger.WarnwCtx(ctx, "HTTP Request", logFields...)
		default:
			logger.InfowCtx(ctx, "HTTP Request", logFields...)
		}
	}
}

func RecoveryMiddleware(logger requestLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := apperrors.RecoverPanic(recovered, nil)
		logger.ErrorwCtx(c.Request.Context(), "Panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		resp := apperrors.ToErrorResponse(err)
		resp.Details = nil
		c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
	})
}

// RequestIDMiddleware propagates or assigns a request id and stores it in the
// request context so every log line of the request carries it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
