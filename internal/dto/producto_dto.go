package dto

import "github.com/shopspring/decimal"

type CrearProductoRequest struct {
	Codigo       string          `json:"codigo"        validate:"required,max=50"`
	Nombre       string          `json:"nombre"        validate:"required,max=200"`
	Descripcion  *string         `json:"descripcion"`
	PrecioVenta  decimal.Decimal `json:"precio_venta"`
	StockActual  int             `json:"stock_actual"  validate:"min=0"`
	StockMinimo  int             `json:"stock_minimo"  validate:"min=0"`
	UnidadMedida string          `json:"unidad_medida" validate:"omitempty,max=30"`
}

type ProductoResponse struct {
	ID           string          `json:"id"`
	Codigo       string          `json:"codigo"`
	Nombre       string          `json:"nombre"`
	Descripcion  *string         `json:"descripcion,omitempty"`
	PrecioVenta  decimal.Decimal `json:"precio_venta"`
	StockActual  int             `json:"stock_actual"`
	StockMinimo  int             `json:"stock_minimo"`
	UnidadMedida string          `json:"unidad_medida"`
	Activo       bool            `json:"activo"`
	BajoMinimo   bool            `json:"bajo_minimo"`
}

// MovimientoStockFilter is bound from GET /v1/productos/movimientos.
type MovimientoStockFilter struct {
	ProductoID   string `form:"producto_id"   validate:"omitempty,uuid"`
	ReferenciaID string `form:"referencia_id" validate:"omitempty,uuid"`
	Tipo         string `form:"tipo"          validate:"omitempty,oneof=cargo_cuenta devolucion ajuste_manual"`
	Page         int    `form:"page,default=1"    validate:"min=1"`
	Limit        int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type MovimientoStockResponse struct {
	ID             string  `json:"id"`
	ProductoID     string  `json:"producto_id"`
	ProductoNombre string  `json:"producto_nombre,omitempty"`
	Tipo           string  `json:"tipo"`
	Cantidad       int     `json:"cantidad"`
	StockAnterior  int     `json:"stock_anterior"`
	StockNuevo     int     `json:"stock_nuevo"`
	Motivo         string  `json:"motivo"`
	ReferenciaID   *string `json:"referencia_id"`
	Fecha          string  `json:"fecha"`
}

type MovimientoStockListResponse struct {
	Data  []MovimientoStockResponse `json:"data"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}
