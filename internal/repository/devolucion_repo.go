package repository

import (
	"context"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DevolucionFilter narrows List. Zero values mean "no filter".
type DevolucionFilter struct {
	Estado   model.EstadoDevolucion
	CuentaID *uuid.UUID
	Page     int
	Limit    int
}

type DevolucionRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, d *model.Devolucion) error
	NextNumeroTx(ctx context.Context, tx *gorm.DB) (string, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Devolucion, error)
	List(ctx context.Context, filter DevolucionFilter) ([]model.Devolucion, int64, error)
	// ListActivasPorCuentaTx returns pendiente/autorizada/procesada devoluciones
	// of the account with their lines.
	ListActivasPorCuentaTx(ctx context.Context, tx *gorm.DB, cuentaID uuid.UUID) ([]model.Devolucion, error)

	// TransicionTx persists d.Estado and its audit columns with a compare-and-set
	// on desde. Zero affected rows means another request moved it first.
	TransicionTx(ctx context.Context, tx *gorm.DB, d *model.Devolucion, desde model.EstadoDevolucion) error

	FindMotivo(ctx context.Context, id int) (*model.MotivoDevolucion, error)
	ListMotivos(ctx context.Context) ([]model.MotivoDevolucion, error)

	DB() *gorm.DB
}

type devolucionRepo struct{ db *gorm.DB }

func NewDevolucionRepository(db *gorm.DB) DevolucionRepository { return &devolucionRepo{db: db} }

func (r *devolucionRepo) DB() *gorm.DB { return r.db }

func (r *devolucionRepo) CreateTx(ctx context.Context, tx *gorm.DB, d *model.Devolucion) error {
	return tx.WithContext(ctx).Omit("Motivo").Create(d).Error
}

func (r *devolucionRepo) NextNumeroTx(ctx context.Context, tx *gorm.DB) (string, error) {
	// Uses a PostgreSQL sequence; numbers are unique but may have gaps after rollbacks
	var seq int64
	if err := tx.WithContext(ctx).Raw("SELECT nextval('devoluciones_numero_seq')").Scan(&seq).Error; err != nil {
		return "", err
	}
	return model.FormatNumeroDevolucion(seq), nil
}

func (r *devolucionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Devolucion, error) {
	var d model.Devolucion
	err := r.db.WithContext(ctx).Preload("Productos").Preload("Motivo").First(&d, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Devolución")
	}
	return &d, nil
}

func (r *devolucionRepo) List(ctx context.Context, filter DevolucionFilter) ([]model.Devolucion, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Devolucion{})
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.CuentaID != nil {
		q = q.Where("cuenta_id = ?", *filter.CuentaID)
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

	var out []model.Devolucion
	err := q.Preload("Productos").Preload("Motivo").
		Order("fecha_solicitud DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&out).Error
	return out, total, err
}

func (r *devolucionRepo) ListActivasPorCuentaTx(ctx context.Context, tx *gorm.DB, cuentaID uuid.UUID) ([]model.Devolucion, error) {
	var out []model.Devolucion
	err := tx.WithContext(ctx).Preload("Productos").
		Where("cuenta_id = ? AND estado IN ?", cuentaID, []model.EstadoDevolucion{
			model.DevolucionPendiente, model.DevolucionAutorizada, model.DevolucionProcesada,
		}).
		Find(&out).Error
	return out, err
}

func (r *devolucionRepo) TransicionTx(ctx context.Context, tx *gorm.DB, d *model.Devolucion, desde model.EstadoDevolucion) error {
	res := tx.WithContext(ctx).Model(&model.Devolucion{}).
		Where("id = ? AND estado = ?", d.ID, desde).
		Updates(map[string]interface{}{
			"estado":                     d.Estado,
			"autorizador":                d.Autorizador,
			"observaciones_autorizacion": d.ObservacionesAutorizacion,
			"motivo_rechazo":             d.MotivoRechazo,
			"motivo_cancelacion":         d.MotivoCancelacion,
			"metodo_pago_devolucion":     d.MetodoPagoDevolucion,
			"sesion_caja_id":             d.SesionCajaID,
			"procesado_por":              d.ProcesadoPor,
			"fecha_autorizacion":         d.FechaAutorizacion,
			"fecha_rechazo":              d.FechaRechazo,
			"fecha_cancelacion":          d.FechaCancelacion,
			"fecha_proceso":              d.FechaProceso,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierror.ErrTransicionInvalida.WithDetail("La devolución ya no está en estado " + string(desde))
	}
	return nil
}

func (r *devolucionRepo) FindMotivo(ctx context.Context, id int) (*model.MotivoDevolucion, error) {
	var m model.MotivoDevolucion
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Motivo")
	}
	return &m, nil
}

func (r *devolucionRepo) ListMotivos(ctx context.Context) ([]model.MotivoDevolucion, error) {
	var out []model.MotivoDevolucion
	err := r.db.WithContext(ctx).Where("activo = true").Order("id ASC").Find(&out).Error
	return out, err
}
