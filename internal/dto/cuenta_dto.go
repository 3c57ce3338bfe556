package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCuentaRequest struct {
	PacienteID     string `json:"paciente_id"     validate:"required,uuid"`
	PacienteNombre string `json:"paciente_nombre" validate:"required,min=2,max=200"`
	TipoAtencion   string `json:"tipo_atencion"   validate:"required,oneof=ambulatoria urgencias hospitalizacion"`
}

// AgregarCargoRequest accepts either an explicit Subtotal (servicios) or a
// ProductoID + Cantidad priced from the catalog.
type AgregarCargoRequest struct {
	Concepto   string          `json:"concepto"    validate:"required,min=2,max=200"`
	Tipo       string          `json:"tipo"        validate:"required,oneof=servicio producto"`
	ProductoID *string         `json:"producto_id" validate:"omitempty,uuid"`
	Cantidad   int             `json:"cantidad"    validate:"omitempty,min=1"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type RegistrarPagoCuentaRequest struct {
	Monto         decimal.Decimal `json:"monto"`
	Metodo        string          `json:"metodo"        validate:"required,oneof=efectivo tarjeta transferencia"`
	Observaciones *string         `json:"observaciones" validate:"omitempty,max=500"`
}

type CerrarCuentaRequest struct {
	MetodoPago         *string `json:"metodo_pago"         validate:"omitempty,oneof=efectivo tarjeta transferencia"`
	CuentaPorCobrar    bool    `json:"cuenta_por_cobrar"`
	MotivoAutorizacion string  `json:"motivo_autorizacion" validate:"max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TransaccionCuentaResponse struct {
	ID             string          `json:"id"`
	Concepto       string          `json:"concepto"`
	Tipo           string          `json:"tipo"`
	ProductoID     *string         `json:"producto_id"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Fecha          string          `json:"fecha"`
}

type PagoCuentaResponse struct {
	ID            string          `json:"id"`
	Monto         decimal.Decimal `json:"monto"`
	Metodo        string          `json:"metodo"`
	Observaciones *string         `json:"observaciones"`
	Fecha         string          `json:"fecha"`
}

type CuentaResponse struct {
	ID               string                      `json:"id"`
	PacienteID       string                      `json:"paciente_id"`
	PacienteNombre   string                      `json:"paciente_nombre"`
	TipoAtencion     string                      `json:"tipo_atencion"`
	Estado           string                      `json:"estado"`
	TotalServicios   decimal.Decimal             `json:"total_servicios"`
	TotalProductos   decimal.Decimal             `json:"total_productos"`
	TotalCuenta      decimal.Decimal             `json:"total_cuenta"`
	TotalPagado      decimal.Decimal             `json:"total_pagado"`
	TotalDevuelto    decimal.Decimal             `json:"total_devuelto"`
	Saldo            decimal.Decimal             `json:"saldo"`
	SaldoCierre      *decimal.Decimal            `json:"saldo_cierre"`
	MetodoPagoCierre *string                     `json:"metodo_pago_cierre"`
	FechaApertura    string                      `json:"fecha_apertura"`
	FechaCierre      *string                     `json:"fecha_cierre"`
	Transacciones    []TransaccionCuentaResponse `json:"transacciones,omitempty"`
	Pagos            []PagoCuentaResponse        `json:"pagos,omitempty"`
}

type SaldoResponse struct {
	CuentaID    string          `json:"cuenta_id"`
	Estado      string          `json:"estado"`
	TotalCuenta decimal.Decimal `json:"total_cuenta"`
	TotalPagado decimal.Decimal `json:"total_pagado"`
	Saldo       decimal.Decimal `json:"saldo"`
}

type CierreCuentaResponse struct {
	Cuenta CuentaResponse `json:"cuenta"`
	CPCID  *string        `json:"cpc_id"`
}

// OcupacionResponse backs GET /v1/dashboard/ocupacion.
type OcupacionResponse struct {
	Ambulatoria     int64  `json:"ambulatoria"`
	Urgencias       int64  `json:"urgencias"`
	Hospitalizacion int64  `json:"hospitalizacion"`
	Total           int64  `json:"total"`
	GeneradoEn      string `json:"generado_en"`
}
