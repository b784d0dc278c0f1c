package middleware

import (
	"net/http"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorHandler turns errors attached with c.Error into a generic 500 when the
// handler did not write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		for _, ge := range c.Errors {
			requestLog(c, zerolog.ErrorLevel).Err(ge.Err).Msg("handler error")
		}
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("internal server error"))
		}
	}
}

// Recovery converts a panic into a 500 and logs it with a stack trace.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = errors.Errorf("%v", r)
			}
			requestLog(c, zerolog.ErrorLevel).Stack().Err(errors.WithStack(err)).Msg("panic recovered")
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("internal server error"))
		}()
		c.Next()
	}
}

// Logger writes one access log line per request. 5xx log at error level,
// 4xx at warn, everything else at info.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zerolog.WarnLevel
		}

		ev := requestLog(c, level).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start))
		if claims, ok := c.Get(ClaimsKey); ok {
			if jc, ok := claims.(*JWTClaims); ok {
				ev = ev.Str("user_id", jc.UserID).Str("role", jc.Role)
			}
		}
		ev.Msg("request")
	}
}

func requestLog(c *gin.Context, level zerolog.Level) *zerolog.Event {
	return log.WithLevel(level).
		Str("request_id", c.GetString(RequestIDKey)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path)
}
