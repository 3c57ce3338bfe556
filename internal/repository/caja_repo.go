package repository

import (
	"context"

	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CajaRepository interface {
	DB() *gorm.DB
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionAbiertaPorCaja(ctx context.Context, numeroCaja int) (*model.SesionCaja, error)
	// FindSesionAbiertaPorUsuario answers "does this user have an open register?".
	FindSesionAbiertaPorUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	UpdateSesion(ctx context.Context, s *model.SesionCaja) error
	// LockSesionAbiertaTx takes the session row lock; ErrNoEncontrado once it is closed.
	// Every movement writer and the arqueo go through it.
	LockSesionAbiertaTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error)
	UpdateSesionTx(ctx context.Context, tx *gorm.DB, s *model.SesionCaja) error
	CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error
	CreateMovimientoTx(ctx context.Context, tx *gorm.DB, m *model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error)
	SumMovimientosByMetodo(ctx context.Context, sesionCajaID uuid.UUID) (map[string]decimal.Decimal, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cajaRepo) FindSesionAbiertaPorCaja(ctx context.Context, numeroCaja int) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Where("numero_caja = ? AND estado = 'abierta'", numeroCaja).First(&s).Error
	if err != nil {
		return nil, notFound(err, "Sesión de caja")
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionAbiertaPorUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("usuario_id = ? AND estado = 'abierta'", usuarioID).
		Order("opened_at DESC").
		First(&s).Error
	if err != nil {
		return nil, notFound(err, "Sesión de caja")
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Preload("Movimientos").First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Sesión de caja")
	}
	return &s, nil
}

func (r *cajaRepo) UpdateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Omit("Movimientos").Save(s).Error
}

func (r *cajaRepo) LockSesionAbiertaTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND estado = 'abierta'", id).
		First(&s).Error
	if err != nil {
		return nil, notFound(err, "Sesión de caja abierta")
	}
	return &s, nil
}

func (r *cajaRepo) UpdateSesionTx(ctx context.Context, tx *gorm.DB, s *model.SesionCaja) error {
	return tx.WithContext(ctx).Omit("Movimientos").Save(s).Error
}

func (r *cajaRepo) CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) CreateMovimientoTx(ctx context.Context, tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).Where("sesion_caja_id = ?", sesionCajaID).Order("created_at ASC").Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) SumMovimientosByMetodo(ctx context.Context, sesionCajaID uuid.UUID) (map[string]decimal.Decimal, error) {
	var rows []struct {
		MetodoPago string
		Total      decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).
		Select("COALESCE(metodo_pago, 'efectivo') AS metodo_pago, SUM(monto) AS total").
		Where("sesion_caja_id = ?", sesionCajaID).
		Group("COALESCE(metodo_pago, 'efectivo')").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.MetodoPago] = row.Total
	}
	return out, nil
}
