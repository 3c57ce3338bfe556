package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// requestLog starts an event carrying the request id and, once JWTAuth ran,
// the acting user.
func requestLog(c *gin.Context, ev *zerolog.Event) *zerolog.Event {
	ev = ev.Str("request_id", c.GetString(RequestIDKey)).Str("method", c.Request.Method)
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*JWTClaims); ok {
			ev = ev.Str("user", claims.Username).Str("rol", claims.Rol)
		}
	}
	return ev
}

// ErrorHandler answers errors a handler attached with c.Error instead of
// writing a response. Domain errors keep their kind's status; anything else
// becomes a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		if de, ok := apierror.AsDomain(err); ok {
			c.AbortWithStatusJSON(de.Status(), apierror.FromDomain(de))
			return
		}
		requestLog(c, log.Error()).Str("path", c.FullPath()).Err(err).Msg("unhandled error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}

// Recovery turns a panic into a 500. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestLog(c, log.Error()).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// quietPaths are scraped constantly; they are logged at debug.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// Logger writes one line per request. 5xx log at error, 4xx at warn.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		case quietPaths[c.Request.URL.Path]:
			ev = log.Debug()
		default:
			ev = log.Info()
		}
		requestLog(c, ev).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
