package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// HealthCheck pings one dependency. A failing check answers 503.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
	// informative only, never affect the status code
	DLQ  map[string]int64 `json:"dlq,omitempty"`
	SMTP string           `json:"smtp,omitempty"`
}

// Health runs every check concurrently within a 3s budget. Errors are
// reported as "error" so credentials in DSNs never leak.
func Health(db *gorm.DB, rdb *redis.Client, mailer *infra.Mailer) gin.HandlerFunc {
	checks := map[string]HealthCheck{
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	dlq := worker.NewDeadLetters(rdb)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		resp := runChecks(ctx, checks)
		if resp.Checks["redis"] == "ok" {
			resp.DLQ, _ = dlq.Lengths(ctx)
		}
		if mailer != nil && mailer.Enabled() {
			resp.SMTP = mailer.BreakerState().String()
		}
		status := http.StatusOK
		if !resp.OK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

func runChecks(ctx context.Context, checks map[string]HealthCheck) healthResponse {
	resp := healthResponse{OK: true, Checks: make(map[string]string, len(checks))}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			result := "ok"
			if err := check(ctx); err != nil {
				result = "error"
			}
			mu.Lock()
			resp.Checks[name] = result
			if result != "ok" {
				resp.OK = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return resp
}
