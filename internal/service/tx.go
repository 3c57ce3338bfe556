package service

import (
	"context"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

// JobQueue is the subset of *worker.Dispatcher the services enqueue into.
type JobQueue interface {
	EnqueueNotificacion(ctx context.Context, payload worker.NotificacionJobPayload) error
	EnqueueComprobante(ctx context.Context, payload worker.ComprobanteJobPayload) error
}

const fechaLayout = "2006-01-02T15:04:05Z07:00"

func formatFecha(t time.Time) string { return t.Format(fechaLayout) }

func formatFechaPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(fechaLayout)
	return &s
}
