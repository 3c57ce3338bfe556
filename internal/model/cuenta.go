package model

import (
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoCuenta: "abierta" | "cerrada". Closing is one-way.
type EstadoCuenta string

const (
	CuentaAbierta EstadoCuenta = "abierta"
	CuentaCerrada EstadoCuenta = "cerrada"
)

// TipoAtencion is the kind of visit the account bills.
type TipoAtencion string

const (
	AtencionAmbulatoria     TipoAtencion = "ambulatoria"
	AtencionUrgencias       TipoAtencion = "urgencias"
	AtencionHospitalizacion TipoAtencion = "hospitalizacion"
)

func (t TipoAtencion) IsValid() bool {
	switch t {
	case AtencionAmbulatoria, AtencionUrgencias, AtencionHospitalizacion:
		return true
	}
	return false
}

// TipoTransaccion: "servicio" | "producto" charge lines, plus "devolucion"
// adjustments written when a refund is processed against a closed account.
type TipoTransaccion string

const (
	TransaccionServicio   TipoTransaccion = "servicio"
	TransaccionProducto   TipoTransaccion = "producto"
	TransaccionDevolucion TipoTransaccion = "devolucion"
)

// MetodoPago is shared by account payments, CPC payments, refunds and caja movements.
type MetodoPago string

const (
	MetodoEfectivo      MetodoPago = "efectivo"
	MetodoTarjeta       MetodoPago = "tarjeta"
	MetodoTransferencia MetodoPago = "transferencia"
)

func (m MetodoPago) IsValid() bool {
	return m == MetodoEfectivo || m == MetodoTarjeta || m == MetodoTransferencia
}

// CuentaPaciente is the running bill of one patient visit.
// TotalCuenta = TotalServicios + TotalProductos always; TotalPagado is the
// running sum of PagoCuenta rows and TotalDevuelto the sum of processed refunds.
type CuentaPaciente struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PacienteID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	PacienteNombre   string           `gorm:"not null"`
	TipoAtencion     TipoAtencion     `gorm:"type:varchar(20);not null"`
	Estado           EstadoCuenta     `gorm:"type:varchar(20);not null;default:'abierta';index"`
	TotalServicios   decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	TotalProductos   decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	TotalCuenta      decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	TotalPagado      decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDevuelto    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	SaldoCierre      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MetodoPagoCierre *string          `gorm:"type:varchar(20)"`
	AbiertaPor       uuid.UUID        `gorm:"type:uuid;not null"`
	CerradaPor       *uuid.UUID       `gorm:"type:uuid"`
	FechaApertura    time.Time        `gorm:"not null"`
	FechaCierre      *time.Time
	Version          int `gorm:"not null;default:1"`
	UpdatedAt        time.Time

	Transacciones []TransaccionCuenta `gorm:"foreignKey:CuentaID"`
	Pagos         []PagoCuenta        `gorm:"foreignKey:CuentaID"`
}

func (CuentaPaciente) TableName() string { return "cuentas_paciente" }

// TransaccionCuenta is an append-only line of the account.
type TransaccionCuenta struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CuentaID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Concepto       string          `gorm:"not null"`
	Tipo           TipoTransaccion `gorm:"type:varchar(20);not null"`
	ProductoID     *uuid.UUID      `gorm:"type:uuid"`
	Cantidad       int             `gorm:"not null;default:1"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ReferenciaID links a "devolucion" line to its Devolucion
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	UsuarioID    uuid.UUID  `gorm:"type:uuid;not null"`
	Fecha        time.Time  `gorm:"not null"`
}

func (TransaccionCuenta) TableName() string { return "transacciones_cuenta" }

// PagoCuenta is a partial payment taken while the account is open.
type PagoCuenta struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CuentaID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Monto         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Metodo        MetodoPago      `gorm:"type:varchar(20);not null"`
	Observaciones *string
	UsuarioID     uuid.UUID `gorm:"type:uuid;not null"`
	Fecha         time.Time `gorm:"not null"`
}

func (PagoCuenta) TableName() string { return "pagos_cuenta" }

// NuevaCuenta opens an account with a zero balance (no automatic anticipo).
func NuevaCuenta(pacienteID uuid.UUID, nombre string, tipo TipoAtencion, abiertaPor uuid.UUID, now time.Time) *CuentaPaciente {
	return &CuentaPaciente{
		ID:             uuid.New(),
		PacienteID:     pacienteID,
		PacienteNombre: nombre,
		TipoAtencion:   tipo,
		Estado:         CuentaAbierta,
		TotalServicios: decimal.Zero,
		TotalProductos: decimal.Zero,
		TotalCuenta:    decimal.Zero,
		TotalPagado:    decimal.Zero,
		TotalDevuelto:  decimal.Zero,
		AbiertaPor:     abiertaPor,
		FechaApertura:  now,
		Version:        1,
	}
}

func (c *CuentaPaciente) EstaCerrada() bool { return c.Estado == CuentaCerrada }

// Saldo is TotalCuenta − Σ pagos. Positive means debt, negative overpayment.
func (c *CuentaPaciente) Saldo() decimal.Decimal {
	return c.TotalCuenta.Sub(c.TotalPagado)
}

// AgregarCargo appends a servicio/producto line and updates the totals.
func (c *CuentaPaciente) AgregarCargo(linea TransaccionCuenta) (*TransaccionCuenta, error) {
	if c.EstaCerrada() {
		return nil, apierror.ErrCuentaCerrada
	}
	linea.Subtotal = money.Round(linea.Subtotal)
	if !linea.Subtotal.IsPositive() {
		return nil, apierror.ErrMontoInvalido
	}
	switch linea.Tipo {
	case TransaccionServicio:
		c.TotalServicios = c.TotalServicios.Add(linea.Subtotal)
	case TransaccionProducto:
		c.TotalProductos = c.TotalProductos.Add(linea.Subtotal)
	default:
		return nil, apierror.ErrLineaInvalida.WithDetail("Tipo de cargo inválido: " + string(linea.Tipo))
	}
	if linea.ID == uuid.Nil {
		linea.ID = uuid.New()
	}
	if linea.Cantidad <= 0 {
		linea.Cantidad = 1
	}
	if linea.PrecioUnitario.IsZero() {
		linea.PrecioUnitario = linea.Subtotal.DivRound(decimal.NewFromInt(int64(linea.Cantidad)), money.Places)
	}
	linea.CuentaID = c.ID
	c.TotalCuenta = c.TotalServicios.Add(c.TotalProductos)
	c.Transacciones = append(c.Transacciones, linea)
	return &c.Transacciones[len(c.Transacciones)-1], nil
}

// RegistrarPago appends a partial payment and returns it.
func (c *CuentaPaciente) RegistrarPago(pago PagoCuenta) (*PagoCuenta, error) {
	pago.Monto = money.Round(pago.Monto)
	if !pago.Monto.IsPositive() {
		return nil, apierror.ErrMontoInvalido
	}
	if c.EstaCerrada() {
		return nil, apierror.ErrCuentaCerrada
	}
	if pago.ID == uuid.Nil {
		pago.ID = uuid.New()
	}
	pago.CuentaID = c.ID
	c.TotalPagado = c.TotalPagado.Add(pago.Monto)
	c.Pagos = append(c.Pagos, pago)
	return &c.Pagos[len(c.Pagos)-1], nil
}

// Cerrar marks the account closed, recording the balance at that moment.
func (c *CuentaPaciente) Cerrar(por uuid.UUID, metodo *string, now time.Time) error {
	if c.EstaCerrada() {
		return apierror.ErrCuentaCerrada
	}
	saldo := c.Saldo()
	c.Estado = CuentaCerrada
	c.SaldoCierre = &saldo
	c.MetodoPagoCierre = metodo
	c.CerradaPor = &por
	c.FechaCierre = &now
	return nil
}

// AjustePorDevolucion records a processed refund on a closed account. It is
// the only mutation a closed account accepts and leaves the charge totals as they were.
func (c *CuentaPaciente) AjustePorDevolucion(devolucionID uuid.UUID, numero string, monto decimal.Decimal, por uuid.UUID, now time.Time) (*TransaccionCuenta, error) {
	if !c.EstaCerrada() {
		return nil, apierror.ErrCuentaNoCerrada
	}
	ref := devolucionID
	linea := TransaccionCuenta{
		ID:             uuid.New(),
		CuentaID:       c.ID,
		Concepto:       "Devolución " + numero,
		Tipo:           TransaccionDevolucion,
		Cantidad:       1,
		PrecioUnitario: monto.Neg(),
		Subtotal:       monto.Neg(),
		ReferenciaID:   &ref,
		UsuarioID:      por,
		Fecha:          now,
	}
	c.TotalDevuelto = c.TotalDevuelto.Add(monto)
	c.Transacciones = append(c.Transacciones, linea)
	return &c.Transacciones[len(c.Transacciones)-1], nil
}

// RecalcularTotales rebuilds the charge totals from the loaded lines.
func (c *CuentaPaciente) RecalcularTotales() {
	servicios, productos, devuelto := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range c.Transacciones {
		switch t.Tipo {
		case TransaccionServicio:
			servicios = servicios.Add(t.Subtotal)
		case TransaccionProducto:
			productos = productos.Add(t.Subtotal)
		case TransaccionDevolucion:
			devuelto = devuelto.Add(t.Subtotal.Neg())
		}
	}
	pagado := decimal.Zero
	for _, p := range c.Pagos {
		pagado = pagado.Add(p.Monto)
	}
	c.TotalServicios = servicios
	c.TotalProductos = productos
	c.TotalCuenta = servicios.Add(productos)
	c.TotalDevuelto = devuelto
	c.TotalPagado = pagado
}

// FindTransaccion returns the line with the given id, if loaded.
func (c *CuentaPaciente) FindTransaccion(id uuid.UUID) (*TransaccionCuenta, bool) {
	for i := range c.Transacciones {
		if c.Transacciones[i].ID == id {
			return &c.Transacciones[i], true
		}
	}
	return nil, false
}
