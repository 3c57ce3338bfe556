package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// NumeroCaja may be omitted by a cashier assigned to a register.
type AbrirCajaRequest struct {
	NumeroCaja   int             `json:"numero_caja"   validate:"omitempty,min=1"`
	MontoInicial decimal.Decimal `json:"monto_inicial"  validate:"min=0"`
}

type DeclaracionArqueo struct {
	Efectivo      decimal.Decimal `json:"efectivo"      validate:"min=0"`
	Tarjeta       decimal.Decimal `json:"tarjeta"       validate:"min=0"`
	Transferencia decimal.Decimal `json:"transferencia" validate:"min=0"`
}

type ArqueoRequest struct {
	SesionCajaID  string            `json:"sesion_caja_id" validate:"omitempty,uuid"`
	Declaracion   DeclaracionArqueo `json:"declaracion"    validate:"required"`
	Observaciones *string           `json:"observaciones"`
}

// MovimientoManualRequest applies to the caller's open session when
// SesionCajaID is empty.
type MovimientoManualRequest struct {
	SesionCajaID string          `json:"sesion_caja_id" validate:"omitempty,uuid"`
	Tipo         string          `json:"tipo"           validate:"required,oneof=ingreso_manual egreso_manual"`
	MetodoPago   string          `json:"metodo_pago"    validate:"required,oneof=efectivo tarjeta transferencia"`
	Monto        decimal.Decimal `json:"monto"          validate:"required,gt=0"`
	Descripcion  string          `json:"descripcion"    validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type MontosPorMetodo struct {
	Efectivo      decimal.Decimal `json:"efectivo"`
	Tarjeta       decimal.Decimal `json:"tarjeta"`
	Transferencia decimal.Decimal `json:"transferencia"`
	Total         decimal.Decimal `json:"total"`
}

type ArqueoResponse struct {
	SesionCajaID   string          `json:"sesion_caja_id"`
	MontoEsperado  MontosPorMetodo `json:"monto_esperado"`
	MontoDeclarado MontosPorMetodo `json:"monto_declarado"`
	Desvio         DesvioResponse  `json:"desvio"`
	Estado         string          `json:"estado"`
}

type ReporteCajaResponse struct {
	SesionCajaID   string           `json:"sesion_caja_id"`
	NumeroCaja     int              `json:"numero_caja"`
	UsuarioID      string           `json:"usuario_id"`
	MontoInicial   decimal.Decimal  `json:"monto_inicial"`
	MontoEsperado  MontosPorMetodo  `json:"monto_esperado"`
	MontoDeclarado *MontosPorMetodo `json:"monto_declarado"`
	Desvio         *DesvioResponse  `json:"desvio"`
	Estado         string           `json:"estado"`
	Observaciones  *string          `json:"observaciones"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at"`
	// Movimientos is filled by the reporte endpoint only.
	Movimientos []MovimientoCajaResponse `json:"movimientos,omitempty"`
}

type MovimientoCajaResponse struct {
	ID           string          `json:"id"`
	Tipo         string          `json:"tipo"`
	MetodoPago   *string         `json:"metodo_pago"`
	Monto        decimal.Decimal `json:"monto"`
	Descripcion  string          `json:"descripcion"`
	ReferenciaID *string         `json:"referencia_id"`
	CreatedAt    string          `json:"created_at"`
}
