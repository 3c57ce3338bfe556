package repository

import (
	"context"

	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ComprobanteRepository interface {
	// Upsert creates the comprobante of a devolución or returns the existing one,
	// so a redelivered job does not issue a second nota de crédito.
	Upsert(ctx context.Context, c *model.Comprobante) error
	FindByDevolucionID(ctx context.Context, devolucionID uuid.UUID) (*model.Comprobante, error)
	Update(ctx context.Context, c *model.Comprobante) error
}

type comprobanteRepo struct{ db *gorm.DB }

func NewComprobanteRepository(db *gorm.DB) ComprobanteRepository {
	return &comprobanteRepo{db: db}
}

func (r *comprobanteRepo) Upsert(ctx context.Context, c *model.Comprobante) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "devolucion_id"}}, DoNothing: true}).
		Create(c).Error
	if err != nil {
		return err
	}
	existing, err := r.FindByDevolucionID(ctx, c.DevolucionID)
	if err != nil {
		return err
	}
	*c = *existing
	return nil
}

func (r *comprobanteRepo) FindByDevolucionID(ctx context.Context, devolucionID uuid.UUID) (*model.Comprobante, error) {
	var c model.Comprobante
	err := r.db.WithContext(ctx).Where("devolucion_id = ?", devolucionID).First(&c).Error
	if err != nil {
		return nil, notFound(err, "Comprobante")
	}
	return &c, nil
}

func (r *comprobanteRepo) Update(ctx context.Context, c *model.Comprobante) error {
	return r.db.WithContext(ctx).Save(c).Error
}
