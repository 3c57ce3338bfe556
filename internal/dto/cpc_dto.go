package dto

import "github.com/shopspring/decimal"

// CPCFilter is bound from the query string of GET /v1/cpc.
type CPCFilter struct {
	Estado     string `form:"estado"      validate:"omitempty,oneof=pendiente pagado_parcial pagado_total"`
	PacienteID string `form:"paciente_id" validate:"omitempty,uuid"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// EstadisticasFilter is bound from GET /v1/cpc/estadisticas. Dates are
// YYYY-MM-DD; hasta is inclusive.
type EstadisticasFilter struct {
	Desde string `form:"desde" validate:"omitempty,datetime=2006-01-02"`
	Hasta string `form:"hasta" validate:"omitempty,datetime=2006-01-02"`
}

type RegistrarPagoCPCRequest struct {
	Monto  decimal.Decimal `json:"monto"`
	Metodo string          `json:"metodo" validate:"required,oneof=efectivo tarjeta transferencia"`
}

type PagoCPCResponse struct {
	ID     string          `json:"id"`
	Monto  decimal.Decimal `json:"monto"`
	Metodo string          `json:"metodo"`
	Fecha  string          `json:"fecha"`
}

type CPCResponse struct {
	ID                 string            `json:"id"`
	CuentaID           string            `json:"cuenta_id"`
	PacienteID         string            `json:"paciente_id"`
	PacienteNombre     string            `json:"paciente_nombre"`
	MontoOriginal      decimal.Decimal   `json:"monto_original"`
	MontoPagado        decimal.Decimal   `json:"monto_pagado"`
	MontoPendiente     decimal.Decimal   `json:"monto_pendiente"`
	Estado             string            `json:"estado"`
	MotivoAutorizacion string            `json:"motivo_autorizacion"`
	AutorizadoPor      string            `json:"autorizado_por"`
	FechaCierreCuenta  string            `json:"fecha_cierre_cuenta"`
	Pagos              []PagoCPCResponse `json:"pagos,omitempty"`
}

type CPCListResponse struct {
	Data  []CPCResponse `json:"data"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type DeudorResponse struct {
	PacienteID         string          `json:"paciente_id"`
	PacienteNombre     string          `json:"paciente_nombre"`
	MontoPendiente     decimal.Decimal `json:"monto_pendiente"`
	Cuentas            int             `json:"cuentas"`
	PrimeraFechaCierre string          `json:"primera_fecha_cierre"`
}

type EstadisticasCPCResponse struct {
	Desde               string           `json:"desde"`
	Hasta               string           `json:"hasta"`
	TotalCPC            int              `json:"total_cpc"`
	MontoPendiente      decimal.Decimal  `json:"monto_pendiente"`
	MontoRecuperado     decimal.Decimal  `json:"monto_recuperado"`
	TasaRecuperacion    decimal.Decimal  `json:"tasa_recuperacion"`
	PorEstado           map[string]int   `json:"por_estado"`
	PrincipalesDeudores []DeudorResponse `json:"principales_deudores"`
}
