package model

import (
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoCPC: "pendiente" | "pagado_parcial" | "pagado_total"
type EstadoCPC string

const (
	CPCPendiente     EstadoCPC = "pendiente"
	CPCPagadoParcial EstadoCPC = "pagado_parcial"
	CPCPagadoTotal   EstadoCPC = "pagado_total"
)

func (e EstadoCPC) IsValid() bool {
	return e == CPCPendiente || e == CPCPagadoParcial || e == CPCPagadoTotal
}

// EstadoCPCPara derives the receivable state from what has been paid.
func EstadoCPCPara(pagado, original decimal.Decimal) EstadoCPC {
	switch {
	case !pagado.IsPositive():
		return CPCPendiente
	case pagado.LessThan(original):
		return CPCPagadoParcial
	default:
		return CPCPagadoTotal
	}
}

// CuentaPorCobrar is the receivable created when an account closes with debt.
// MontoPagado + MontoPendiente = MontoOriginal; MontoPagado never exceeds MontoOriginal.
type CuentaPorCobrar struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CuentaID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	PacienteID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	PacienteNombre     string          `gorm:"not null"`
	MontoOriginal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoPagado        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontoPendiente     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado             EstadoCPC       `gorm:"type:varchar(20);not null;default:'pendiente';index"`
	MotivoAutorizacion string          `gorm:"not null"`
	AutorizadoPor      uuid.UUID       `gorm:"type:uuid;not null"`
	FechaCierreCuenta  time.Time       `gorm:"not null;index"`
	Version            int             `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Pagos []PagoCPC `gorm:"foreignKey:CPCID"`
}

func (CuentaPorCobrar) TableName() string { return "cuentas_por_cobrar" }

// PagoCPC is a payment applied to a receivable after the account closed.
type PagoCPC struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CPCID     uuid.UUID       `gorm:"type:uuid;not null;index;column:cpc_id"`
	Monto     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Metodo    MetodoPago      `gorm:"type:varchar(20);not null"`
	UsuarioID uuid.UUID       `gorm:"type:uuid;not null"`
	Fecha     time.Time       `gorm:"not null"`
}

func (PagoCPC) TableName() string { return "pagos_cpc" }

// NuevaCPC builds the receivable for an account closing with saldo > 0.
func NuevaCPC(cuenta *CuentaPaciente, saldo decimal.Decimal, motivo string, autorizadoPor uuid.UUID, now time.Time) *CuentaPorCobrar {
	saldo = money.Round(saldo)
	return &CuentaPorCobrar{
		ID:                 uuid.New(),
		CuentaID:           cuenta.ID,
		PacienteID:         cuenta.PacienteID,
		PacienteNombre:     cuenta.PacienteNombre,
		MontoOriginal:      saldo,
		MontoPagado:        decimal.Zero,
		MontoPendiente:     saldo,
		Estado:             CPCPendiente,
		MotivoAutorizacion: motivo,
		AutorizadoPor:      autorizadoPor,
		FechaCierreCuenta:  now,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// AplicarPago applies a payment, rejecting anything above the pending amount.
func (c *CuentaPorCobrar) AplicarPago(monto decimal.Decimal, metodo MetodoPago, usuarioID uuid.UUID, now time.Time) (*PagoCPC, error) {
	monto = money.Round(monto)
	if !monto.IsPositive() {
		return nil, apierror.ErrMontoInvalido
	}
	nuevoPagado := c.MontoPagado.Add(monto)
	if nuevoPagado.GreaterThan(c.MontoOriginal) {
		return nil, apierror.ErrSobrepago.WithDetail(
			"El pago de " + money.Format(monto) + " excede el pendiente de " + money.Format(c.MontoPendiente))
	}
	c.MontoPagado = nuevoPagado
	c.MontoPendiente = c.MontoOriginal.Sub(nuevoPagado)
	c.Estado = EstadoCPCPara(c.MontoPagado, c.MontoOriginal)
	c.UpdatedAt = now

	pago := PagoCPC{
		ID:        uuid.New(),
		CPCID:     c.ID,
		Monto:     monto,
		Metodo:    metodo,
		UsuarioID: usuarioID,
		Fecha:     now,
	}
	c.Pagos = append(c.Pagos, pago)
	return &c.Pagos[len(c.Pagos)-1], nil
}
