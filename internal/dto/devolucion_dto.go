package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ProductoDevueltoRequest references a charge line of the account; quantity
// and price are taken from that line, not from the client.
type ProductoDevueltoRequest struct {
	TransaccionID     string `json:"transaccion_id"     validate:"required,uuid"`
	CantidadDevuelta  int    `json:"cantidad_devuelta"`
	EstadoProducto    string `json:"estado_producto"    validate:"omitempty,oneof=bueno danado caducado"`
	RegresaInventario bool   `json:"regresa_inventario"`
}

type CrearDevolucionRequest struct {
	CuentaID      string                    `json:"cuenta_id"       validate:"required,uuid"`
	Tipo          string                    `json:"tipo"            validate:"required,oneof=servicio producto total_cuenta"`
	MotivoID      int                       `json:"motivo_id"       validate:"required,min=1"`
	MotivoDetalle *string                   `json:"motivo_detalle"  validate:"omitempty,max=500"`
	Monto         *decimal.Decimal          `json:"monto_devolucion"`
	Productos     []ProductoDevueltoRequest `json:"productos"       validate:"omitempty,dive"`
}

type AutorizarDevolucionRequest struct {
	Observaciones *string `json:"observaciones" validate:"omitempty,max=500"`
}

// MotivoRequest is the body of rechazar and cancelar.
type MotivoRequest struct {
	Motivo string `json:"motivo" validate:"max=500"`
}

type ProcesarDevolucionRequest struct {
	MetodoPago string `json:"metodo_pago" validate:"required,oneof=efectivo tarjeta transferencia"`
}

// DevolucionFilter is bound from the query string of GET /v1/devoluciones.
type DevolucionFilter struct {
	Estado   string `form:"estado"    validate:"omitempty,oneof=pendiente_autorizacion autorizada procesada rechazada cancelada"`
	CuentaID string `form:"cuenta_id" validate:"omitempty,uuid"`
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoDevueltoResponse struct {
	ID                string          `json:"id"`
	TransaccionID     string          `json:"transaccion_id"`
	ProductoID        *string         `json:"producto_id"`
	CantidadOriginal  int             `json:"cantidad_original"`
	CantidadDevuelta  int             `json:"cantidad_devuelta"`
	PrecioUnitario    decimal.Decimal `json:"precio_unitario"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	EstadoProducto    string          `json:"estado_producto"`
	RegresaInventario bool            `json:"regresa_inventario"`
}

type DevolucionResponse struct {
	ID                        string                     `json:"id"`
	Numero                    string                     `json:"numero"`
	CuentaID                  string                     `json:"cuenta_id"`
	Tipo                      string                     `json:"tipo"`
	MotivoID                  int                        `json:"motivo_id"`
	Motivo                    string                     `json:"motivo,omitempty"`
	MotivoDetalle             *string                    `json:"motivo_detalle"`
	Monto                     decimal.Decimal            `json:"monto_devolucion"`
	Estado                    string                     `json:"estado"`
	CajeroSolicita            string                     `json:"cajero_solicita"`
	Autorizador               *string                    `json:"autorizador"`
	ObservacionesAutorizacion *string                    `json:"observaciones_autorizacion"`
	MotivoRechazo             *string                    `json:"motivo_rechazo"`
	MotivoCancelacion         *string                    `json:"motivo_cancelacion"`
	MetodoPagoDevolucion      *string                    `json:"metodo_pago_devolucion"`
	SesionCajaID              *string                    `json:"sesion_caja_id"`
	FechaSolicitud            string                     `json:"fecha_solicitud"`
	FechaAutorizacion         *string                    `json:"fecha_autorizacion"`
	FechaRechazo              *string                    `json:"fecha_rechazo"`
	FechaCancelacion          *string                    `json:"fecha_cancelacion"`
	FechaProceso              *string                    `json:"fecha_proceso"`
	Productos                 []ProductoDevueltoResponse `json:"productos"`
}

// EgresoCajaResponse is the register egress emitted when a devolución is processed.
type EgresoCajaResponse struct {
	MovimientoID string          `json:"movimiento_id"`
	SesionCajaID string          `json:"sesion_caja_id"`
	Monto        decimal.Decimal `json:"monto"`
	MetodoPago   string          `json:"metodo_pago"`
}

type ProcesarDevolucionResponse struct {
	Devolucion DevolucionResponse `json:"devolucion"`
	Egreso     EgresoCajaResponse `json:"egreso"`
}

type DevolucionListResponse struct {
	Data  []DevolucionResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type MotivoDevolucionResponse struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
}
