package repository

import (
	"context"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CPCFilter narrows ListCPC. Zero values mean "no filter".
type CPCFilter struct {
	Estado     model.EstadoCPC
	PacienteID *uuid.UUID
	Page       int
	Limit      int
}

type CPCRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CuentaPorCobrar, error)
	FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error)
	// SaveTx persists monto/estado with an optimistic check on Version.
	SaveTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error
	CreatePagoTx(ctx context.Context, tx *gorm.DB, p *model.PagoCPC) error
	List(ctx context.Context, filter CPCFilter) ([]model.CuentaPorCobrar, int64, error)
	// ListPorPeriodo returns receivables whose account closed in [desde, hasta).
	ListPorPeriodo(ctx context.Context, desde, hasta time.Time) ([]model.CuentaPorCobrar, error)
	DB() *gorm.DB
}

type cpcRepo struct{ db *gorm.DB }

func NewCPCRepository(db *gorm.DB) CPCRepository { return &cpcRepo{db: db} }

func (r *cpcRepo) DB() *gorm.DB { return r.db }

func (r *cpcRepo) CreateTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (r *cpcRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	var c model.CuentaPorCobrar
	err := r.db.WithContext(ctx).
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Cuenta por cobrar")
	}
	return &c, nil
}

func (r *cpcRepo) FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	var c model.CuentaPorCobrar
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Cuenta por cobrar")
	}
	return &c, nil
}

func (r *cpcRepo) SaveTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPorCobrar) error {
	res := tx.WithContext(ctx).Model(&model.CuentaPorCobrar{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"monto_pagado":    c.MontoPagado,
			"monto_pendiente": c.MontoPendiente,
			"estado":          c.Estado,
			"updated_at":      c.UpdatedAt,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierror.ErrConflictoConcurrencia
	}
	c.Version++
	return nil
}

func (r *cpcRepo) CreatePagoTx(ctx context.Context, tx *gorm.DB, p *model.PagoCPC) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *cpcRepo) List(ctx context.Context, filter CPCFilter) ([]model.CuentaPorCobrar, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.CuentaPorCobrar{})
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.PacienteID != nil {
		q = q.Where("paciente_id = ?", *filter.PacienteID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var out []model.CuentaPorCobrar
	err := q.Order("fecha_cierre_cuenta DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, err
}

func (r *cpcRepo) ListPorPeriodo(ctx context.Context, desde, hasta time.Time) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	err := r.db.WithContext(ctx).
		Where("fecha_cierre_cuenta >= ? AND fecha_cierre_cuenta < ?", desde, hasta).
		Order("fecha_cierre_cuenta ASC").
		Find(&out).Error
	return out, err
}
