package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de Comprobante.
const (
	ComprobantePendiente = "pendiente"
	ComprobanteEmitido   = "emitido"
	ComprobanteError     = "error"
)

// Comprobante is the nota de crédito issued for a processed devolución.
// One per devolución; the PDF is rendered asynchronously by the worker.
type Comprobante struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DevolucionID   uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	Tipo           string          `gorm:"type:varchar(30);not null;default:'nota_credito'"`
	Numero         string          `gorm:"type:varchar(20);not null"`
	ReceptorNombre string          `gorm:"not null"`
	MontoTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado         string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	// PDFPath is relative to PDF_STORAGE_PATH
	PDFPath      *string `gorm:"column:pdf_path"`
	EmailEnviado bool    `gorm:"not null;default:false"`
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Comprobante) TableName() string { return "comprobantes" }
