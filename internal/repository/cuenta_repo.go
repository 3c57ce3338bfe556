package repository

import (
	"context"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CuentaRepository persists patient accounts, their charge lines and payments.
// The *Tx methods must run inside the caller's transaction.
type CuentaRepository interface {
	Create(ctx context.Context, c *model.CuentaPaciente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CuentaPaciente, error)

	// FindByIDForUpdateTx loads the account with SELECT … FOR UPDATE so concurrent
	// mutations of the same account serialize.
	FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPaciente, error)
	CreateTransaccionTx(ctx context.Context, tx *gorm.DB, t *model.TransaccionCuenta) error
	CreatePagoTx(ctx context.Context, tx *gorm.DB, p *model.PagoCuenta) error
	UpdateTotalesTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPaciente) error
	// CerrarTx flips estado to cerrada only if it is still abierta.
	CerrarTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPaciente) error

	CountAbiertasPorTipo(ctx context.Context) (map[model.TipoAtencion]int64, error)

	DB() *gorm.DB
}

type cuentaRepo struct{ db *gorm.DB }

func NewCuentaRepository(db *gorm.DB) CuentaRepository { return &cuentaRepo{db: db} }

func (r *cuentaRepo) DB() *gorm.DB { return r.db }

func (r *cuentaRepo) Create(ctx context.Context, c *model.CuentaPaciente) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (r *cuentaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CuentaPaciente, error) {
	var c model.CuentaPaciente
	err := r.db.WithContext(ctx).
		Preload("Transacciones", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Cuenta")
	}
	return &c, nil
}

func (r *cuentaRepo) FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CuentaPaciente, error) {
	var c model.CuentaPaciente
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Transacciones", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("fecha ASC") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Cuenta")
	}
	return &c, nil
}

func (r *cuentaRepo) CreateTransaccionTx(ctx context.Context, tx *gorm.DB, t *model.TransaccionCuenta) error {
	return tx.WithContext(ctx).Create(t).Error
}

func (r *cuentaRepo) CreatePagoTx(ctx context.Context, tx *gorm.DB, p *model.PagoCuenta) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *cuentaRepo) UpdateTotalesTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPaciente) error {
	res := tx.WithContext(ctx).Model(&model.CuentaPaciente{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"total_servicios": c.TotalServicios,
			"total_productos": c.TotalProductos,
			"total_cuenta":    c.TotalCuenta,
			"total_pagado":    c.TotalPagado,
			"total_devuelto":  c.TotalDevuelto,
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

func (r *cuentaRepo) CerrarTx(ctx context.Context, tx *gorm.DB, c *model.CuentaPaciente) error {
	res := tx.WithContext(ctx).Model(&model.CuentaPaciente{}).
		Where("id = ? AND estado = ?", c.ID, model.CuentaAbierta).
		Updates(map[string]interface{}{
			"estado":             model.CuentaCerrada,
			"saldo_cierre":       c.SaldoCierre,
			"metodo_pago_cierre": c.MetodoPagoCierre,
			"cerrada_por":        c.CerradaPor,
			"fecha_cierre":       c.FechaCierre,
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierror.ErrCuentaCerrada
	}
	c.Version++
	return nil
}

func (r *cuentaRepo) CountAbiertasPorTipo(ctx context.Context) (map[model.TipoAtencion]int64, error) {
	var rows []struct {
		TipoAtencion model.TipoAtencion
		Total        int64
	}
	err := r.db.WithContext(ctx).Model(&model.CuentaPaciente{}).
		Select("tipo_atencion, COUNT(*) AS total").
		Where("estado = ?", model.CuentaAbierta).
		Group("tipo_atencion").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.TipoAtencion]int64, len(rows))
	for _, row := range rows {
		out[row.TipoAtencion] = row.Total
	}
	return out, nil
}
