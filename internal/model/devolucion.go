package model

import (
	"fmt"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoDevolucion is the closed set of devolución states.
//
//	pendiente_autorizacion --autorizar--> autorizada --procesar--> procesada
//	pendiente_autorizacion --rechazar---> rechazada
//	pendiente_autorizacion --cancelar---> cancelada
type EstadoDevolucion string

const (
	DevolucionPendiente  EstadoDevolucion = "pendiente_autorizacion"
	DevolucionAutorizada EstadoDevolucion = "autorizada"
	DevolucionProcesada  EstadoDevolucion = "procesada"
	DevolucionRechazada  EstadoDevolucion = "rechazada"
	DevolucionCancelada  EstadoDevolucion = "cancelada"
)

// AccionDevolucion is an event that moves a devolución between states.
type AccionDevolucion string

const (
	AccionAutorizar AccionDevolucion = "autorizar"
	AccionRechazar  AccionDevolucion = "rechazar"
	AccionCancelar  AccionDevolucion = "cancelar"
	AccionProcesar  AccionDevolucion = "procesar"
)

var transicionesDevolucion = map[EstadoDevolucion]map[AccionDevolucion]EstadoDevolucion{
	DevolucionPendiente: {
		AccionAutorizar: DevolucionAutorizada,
		AccionRechazar:  DevolucionRechazada,
		AccionCancelar:  DevolucionCancelada,
	},
	DevolucionAutorizada: {
		AccionProcesar: DevolucionProcesada,
	},
}

// Siguiente is the only place that decides whether an action is legal from e.
func (e EstadoDevolucion) Siguiente(a AccionDevolucion) (EstadoDevolucion, error) {
	if next, ok := transicionesDevolucion[e][a]; ok {
		return next, nil
	}
	return e, apierror.ErrTransicionInvalida.WithDetail(
		fmt.Sprintf("No se puede %s una devolución en estado %s", a, e))
}

// EsTerminal reports whether no action can leave e.
func (e EstadoDevolucion) EsTerminal() bool {
	return len(transicionesDevolucion[e]) == 0
}

func (e EstadoDevolucion) IsValid() bool {
	switch e {
	case DevolucionPendiente, DevolucionAutorizada, DevolucionProcesada, DevolucionRechazada, DevolucionCancelada:
		return true
	}
	return false
}

// Activa reports whether the devolución still counts against the account total.
func (e EstadoDevolucion) Activa() bool {
	return e == DevolucionPendiente || e == DevolucionAutorizada || e == DevolucionProcesada
}

// TipoDevolucion: "servicio" | "producto" | "total_cuenta"
type TipoDevolucion string

const (
	DevolucionServicio    TipoDevolucion = "servicio"
	DevolucionProducto    TipoDevolucion = "producto"
	DevolucionTotalCuenta TipoDevolucion = "total_cuenta"
)

func (t TipoDevolucion) IsValid() bool {
	return t == DevolucionServicio || t == DevolucionProducto || t == DevolucionTotalCuenta
}

// EstadoProducto: "bueno" | "danado" | "caducado". Only "bueno" may go back to stock.
type EstadoProducto string

const (
	ProductoBueno    EstadoProducto = "bueno"
	ProductoDanado   EstadoProducto = "danado"
	ProductoCaducado EstadoProducto = "caducado"
)

func (e EstadoProducto) IsValid() bool {
	return e == ProductoBueno || e == ProductoDanado || e == ProductoCaducado
}

// Devolucion is a refund request against a closed CuentaPaciente.
type Devolucion struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Numero        string           `gorm:"type:varchar(20);uniqueIndex;not null"`
	CuentaID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Tipo          TipoDevolucion   `gorm:"type:varchar(20);not null"`
	MotivoID      int              `gorm:"not null"`
	MotivoDetalle *string
	Monto         decimal.Decimal  `gorm:"type:decimal(12,2);not null;column:monto_devolucion"`
	Estado        EstadoDevolucion `gorm:"type:varchar(30);not null;default:'pendiente_autorizacion';index"`

	CajeroSolicita            uuid.UUID  `gorm:"type:uuid;not null"`
	Autorizador               *uuid.UUID `gorm:"type:uuid"`
	ObservacionesAutorizacion *string
	MotivoRechazo             *string
	MotivoCancelacion         *string
	MetodoPagoDevolucion      *MetodoPago `gorm:"type:varchar(20)"`
	SesionCajaID              *uuid.UUID  `gorm:"type:uuid"`
	ProcesadoPor              *uuid.UUID  `gorm:"type:uuid"`

	FechaSolicitud    time.Time `gorm:"not null"`
	FechaAutorizacion *time.Time
	FechaRechazo      *time.Time
	FechaCancelacion  *time.Time
	FechaProceso      *time.Time
	UpdatedAt         time.Time

	Productos []ProductoDevuelto `gorm:"foreignKey:DevolucionID"`
	Motivo    *MotivoDevolucion  `gorm:"foreignKey:MotivoID"`
}

func (Devolucion) TableName() string { return "devoluciones" }

// ProductoDevuelto is one returned charge line. CantidadOriginal and
// PrecioUnitario are copied from the referenced TransaccionCuenta.
type ProductoDevuelto struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DevolucionID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	TransaccionID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID        *uuid.UUID      `gorm:"type:uuid"`
	CantidadOriginal  int             `gorm:"not null"`
	CantidadDevuelta  int             `gorm:"not null"`
	PrecioUnitario    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	EstadoProducto    EstadoProducto  `gorm:"type:varchar(20);not null;default:'bueno'"`
	RegresaInventario bool            `gorm:"not null;default:false"`
}

func (ProductoDevuelto) TableName() string { return "productos_devueltos" }

// MotivoDevolucion is the seeded catalog of refund reasons.
type MotivoDevolucion struct {
	ID     int    `gorm:"primaryKey"`
	Nombre string `gorm:"uniqueIndex;not null"`
	Activo bool   `gorm:"not null;default:true"`
}

func (MotivoDevolucion) TableName() string { return "motivos_devolucion" }

// FormatNumeroDevolucion renders a sequence value as "DEV-000001".
func FormatNumeroDevolucion(seq int64) string {
	return fmt.Sprintf("DEV-%06d", seq)
}

// ── Transitions ─────────────────────────────────────────────────────────────
// Each method moves d in memory; the repository persists it with a
// compare-and-set on the previous estado.

func (d *Devolucion) Autorizar(autorizador uuid.UUID, observaciones *string, now time.Time) error {
	next, err := d.Estado.Siguiente(AccionAutorizar)
	if err != nil {
		return err
	}
	d.Estado = next
	d.Autorizador = &autorizador
	d.ObservacionesAutorizacion = observaciones
	d.FechaAutorizacion = &now
	return nil
}

func (d *Devolucion) Rechazar(autorizador uuid.UUID, motivo string, now time.Time) error {
	next, err := d.Estado.Siguiente(AccionRechazar)
	if err != nil {
		return err
	}
	d.Estado = next
	d.Autorizador = &autorizador
	d.MotivoRechazo = &motivo
	d.FechaRechazo = &now
	return nil
}

func (d *Devolucion) Cancelar(motivo string, now time.Time) error {
	next, err := d.Estado.Siguiente(AccionCancelar)
	if err != nil {
		return err
	}
	d.Estado = next
	d.MotivoCancelacion = &motivo
	d.FechaCancelacion = &now
	return nil
}

func (d *Devolucion) Procesar(por uuid.UUID, metodo MetodoPago, sesionCajaID uuid.UUID, now time.Time) error {
	next, err := d.Estado.Siguiente(AccionProcesar)
	if err != nil {
		return err
	}
	d.Estado = next
	d.ProcesadoPor = &por
	d.MetodoPagoDevolucion = &metodo
	d.SesionCajaID = &sesionCajaID
	d.FechaProceso = &now
	return nil
}
