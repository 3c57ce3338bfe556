package service

import (
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
)

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func cuentaToResponse(c *model.CuentaPaciente) dto.CuentaResponse {
	resp := dto.CuentaResponse{
		ID:               c.ID.String(),
		PacienteID:       c.PacienteID.String(),
		PacienteNombre:   c.PacienteNombre,
		TipoAtencion:     string(c.TipoAtencion),
		Estado:           string(c.Estado),
		TotalServicios:   c.TotalServicios,
		TotalProductos:   c.TotalProductos,
		TotalCuenta:      c.TotalCuenta,
		TotalPagado:      c.TotalPagado,
		TotalDevuelto:    c.TotalDevuelto,
		Saldo:            c.Saldo(),
		SaldoCierre:      c.SaldoCierre,
		MetodoPagoCierre: c.MetodoPagoCierre,
		FechaApertura:    formatFecha(c.FechaApertura),
		FechaCierre:      formatFechaPtr(c.FechaCierre),
	}
	for _, t := range c.Transacciones {
		resp.Transacciones = append(resp.Transacciones, transaccionToResponse(t))
	}
	for _, p := range c.Pagos {
		resp.Pagos = append(resp.Pagos, dto.PagoCuentaResponse{
			ID:            p.ID.String(),
			Monto:         p.Monto,
			Metodo:        string(p.Metodo),
			Observaciones: p.Observaciones,
			Fecha:         formatFecha(p.Fecha),
		})
	}
	return resp
}

func transaccionToResponse(t model.TransaccionCuenta) dto.TransaccionCuentaResponse {
	return dto.TransaccionCuentaResponse{
		ID:             t.ID.String(),
		Concepto:       t.Concepto,
		Tipo:           string(t.Tipo),
		ProductoID:     uuidPtrString(t.ProductoID),
		Cantidad:       t.Cantidad,
		PrecioUnitario: t.PrecioUnitario,
		Subtotal:       t.Subtotal,
		Fecha:          formatFecha(t.Fecha),
	}
}

func saldoToResponse(c *model.CuentaPaciente) *dto.SaldoResponse {
	return &dto.SaldoResponse{
		CuentaID:    c.ID.String(),
		Estado:      string(c.Estado),
		TotalCuenta: c.TotalCuenta,
		TotalPagado: c.TotalPagado,
		Saldo:       c.Saldo(),
	}
}

func cpcToResponse(c *model.CuentaPorCobrar) dto.CPCResponse {
	resp := dto.CPCResponse{
		ID:                 c.ID.String(),
		CuentaID:           c.CuentaID.String(),
		PacienteID:         c.PacienteID.String(),
		PacienteNombre:     c.PacienteNombre,
		MontoOriginal:      c.MontoOriginal,
		MontoPagado:        c.MontoPagado,
		MontoPendiente:     c.MontoPendiente,
		Estado:             string(c.Estado),
		MotivoAutorizacion: c.MotivoAutorizacion,
		AutorizadoPor:      c.AutorizadoPor.String(),
		FechaCierreCuenta:  formatFecha(c.FechaCierreCuenta),
	}
	for _, p := range c.Pagos {
		resp.Pagos = append(resp.Pagos, dto.PagoCPCResponse{
			ID:     p.ID.String(),
			Monto:  p.Monto,
			Metodo: string(p.Metodo),
			Fecha:  formatFecha(p.Fecha),
		})
	}
	return resp
}

func devolucionToResponse(d *model.Devolucion) dto.DevolucionResponse {
	resp := dto.DevolucionResponse{
		ID:                        d.ID.String(),
		Numero:                    d.Numero,
		CuentaID:                  d.CuentaID.String(),
		Tipo:                      string(d.Tipo),
		MotivoID:                  d.MotivoID,
		MotivoDetalle:             d.MotivoDetalle,
		Monto:                     d.Monto,
		Estado:                    string(d.Estado),
		CajeroSolicita:            d.CajeroSolicita.String(),
		Autorizador:               uuidPtrString(d.Autorizador),
		ObservacionesAutorizacion: d.ObservacionesAutorizacion,
		MotivoRechazo:             d.MotivoRechazo,
		MotivoCancelacion:         d.MotivoCancelacion,
		SesionCajaID:              uuidPtrString(d.SesionCajaID),
		FechaSolicitud:            formatFecha(d.FechaSolicitud),
		FechaAutorizacion:         formatFechaPtr(d.FechaAutorizacion),
		FechaRechazo:              formatFechaPtr(d.FechaRechazo),
		FechaCancelacion:          formatFechaPtr(d.FechaCancelacion),
		FechaProceso:              formatFechaPtr(d.FechaProceso),
		Productos:                 make([]dto.ProductoDevueltoResponse, len(d.Productos)),
	}
	if d.Motivo != nil {
		resp.Motivo = d.Motivo.Nombre
	}
	if d.MetodoPagoDevolucion != nil {
		m := string(*d.MetodoPagoDevolucion)
		resp.MetodoPagoDevolucion = &m
	}
	for i, p := range d.Productos {
		resp.Productos[i] = dto.ProductoDevueltoResponse{
			ID:                p.ID.String(),
			TransaccionID:     p.TransaccionID.String(),
			ProductoID:        uuidPtrString(p.ProductoID),
			CantidadOriginal:  p.CantidadOriginal,
			CantidadDevuelta:  p.CantidadDevuelta,
			PrecioUnitario:    p.PrecioUnitario,
			Subtotal:          p.Subtotal,
			EstadoProducto:    string(p.EstadoProducto),
			RegresaInventario: p.RegresaInventario,
		}
	}
	return resp
}
