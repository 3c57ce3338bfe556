package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DevolucionService runs the refund workflow against closed accounts:
// solicitud → autorización/rechazo/cancelación → proceso.
type DevolucionService interface {
	Crear(ctx context.Context, actor authz.Actor, req dto.CrearDevolucionRequest) (*dto.DevolucionResponse, error)
	Autorizar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.AutorizarDevolucionRequest) (*dto.DevolucionResponse, error)
	Rechazar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.MotivoRequest) (*dto.DevolucionResponse, error)
	Cancelar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.MotivoRequest) (*dto.DevolucionResponse, error)
	Procesar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.ProcesarDevolucionRequest) (*dto.ProcesarDevolucionResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error)
	Listar(ctx context.Context, filter dto.DevolucionFilter) (*dto.DevolucionListResponse, error)
	Motivos(ctx context.Context) ([]dto.MotivoDevolucionResponse, error)
}

type devolucionService struct {
	repo          repository.DevolucionRepository
	cuentas       repository.CuentaRepository
	caja          CajaService
	inventario    InventarioService
	jobs          JobQueue
	metrics       *infra.Metrics
	cashierWindow time.Duration
	clock         Clock
}

func NewDevolucionService(
	repo repository.DevolucionRepository,
	cuentas repository.CuentaRepository,
	caja CajaService,
	inventario InventarioService,
	jobs JobQueue,
	metrics *infra.Metrics,
	cashierWindow time.Duration,
	clock Clock,
) DevolucionService {
	return &devolucionService{
		repo:          repo,
		cuentas:       cuentas,
		caja:          caja,
		inventario:    inventario,
		jobs:          jobs,
		metrics:       metrics,
		cashierWindow: cashierWindow,
		clock:         clockOrDefault(clock),
	}
}

// ── Crear ─────────────────────────────────────────────────────────────────────
// The account row is locked while the request is validated so two concurrent
// solicitudes cannot both fit under the account total.

func (s *devolucionService) Crear(ctx context.Context, actor authz.Actor, req dto.CrearDevolucionRequest) (*dto.DevolucionResponse, error) {
	if !authz.Can(actor, authz.CapRequestDevolucion) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	tipo := model.TipoDevolucion(req.Tipo)
	if !tipo.IsValid() {
		return nil, apierror.ErrLineaInvalida.WithDetail("Tipo de devolución inválido: " + req.Tipo)
	}
	cuentaID, err := uuid.Parse(req.CuentaID)
	if err != nil {
		return nil, apierror.ErrIDInvalido.WithDetail("cuenta_id inválido")
	}

	var (
		dev    *model.Devolucion
		cuenta *model.CuentaPaciente
	)
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		c, err := s.cuentas.FindByIDForUpdateTx(ctx, tx, cuentaID)
		if err != nil {
			return err
		}
		if !c.EstaCerrada() {
			return apierror.ErrCuentaNoCerrada
		}
		now := s.clock()
		if !authz.Can(actor, authz.CapBypassCashierWindow) && c.FechaCierre != nil &&
			now.Sub(*c.FechaCierre) > s.cashierWindow {
			return apierror.ErrSolicitudVencida
		}

		// amount errors outrank line errors
		if err := validarMontoPedido(tipo, req.Monto); err != nil {
			return err
		}

		activas, err := s.repo.ListActivasPorCuentaTx(ctx, tx, c.ID)
		if err != nil {
			return err
		}

		productos, limiteLineas, sumaLineas, err := s.validarLineas(c, tipo, req.Productos, activas)
		if err != nil {
			return err
		}

		monto, limite, err := montoYLimite(c, tipo, req.Monto, limiteLineas, sumaLineas)
		if err != nil {
			return err
		}
		if monto.GreaterThan(limite) {
			return apierror.ErrMontoExcedeOriginal.WithDetail(fmt.Sprintf(
				"El monto %s excede el máximo devolvible de %s", money.Format(monto), money.Format(limite)))
		}
		comprometido := decimal.Zero
		for _, a := range activas {
			comprometido = comprometido.Add(a.Monto)
		}
		if comprometido.Add(monto).GreaterThan(c.TotalCuenta) {
			return apierror.ErrMontoExcedeOriginal.WithDetail(fmt.Sprintf(
				"Las devoluciones activas (%s) más este monto superan el total de la cuenta (%s)",
				money.Format(comprometido), money.Format(c.TotalCuenta)))
		}

		motivo, err := s.repo.FindMotivo(ctx, req.MotivoID)
		if errors.Is(err, apierror.ErrNoEncontrado) || (err == nil && !motivo.Activo) {
			return apierror.ErrMotivoInvalido
		}
		if err != nil {
			return err
		}

		numero, err := s.repo.NextNumeroTx(ctx, tx)
		if err != nil {
			return err
		}
		d := &model.Devolucion{
			ID:             uuid.New(),
			Numero:         numero,
			CuentaID:       c.ID,
			Tipo:           tipo,
			MotivoID:       motivo.ID,
			MotivoDetalle:  req.MotivoDetalle,
			Monto:          monto,
			Estado:         model.DevolucionPendiente,
			CajeroSolicita: actor.UsuarioID,
			FechaSolicitud: now,
			UpdatedAt:      now,
			Productos:      productos,
			Motivo:         motivo,
		}
		for i := range d.Productos {
			d.Productos[i].DevolucionID = d.ID
		}
		if err := s.repo.CreateTx(ctx, tx, d); err != nil {
			return err
		}
		dev, cuenta = d, c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Devolucion(string(dev.Estado))
	log.Info().
		Str("devolucion_id", dev.ID.String()).
		Str("numero", dev.Numero).
		Str("cuenta_id", dev.CuentaID.String()).
		Str("monto", dev.Monto.StringFixed(2)).
		Msg("devolución solicitada")
	s.notificarSolicitud(ctx, dev, cuenta)

	resp := devolucionToResponse(dev)
	return &resp, nil
}

// validarLineas resolves each requested line against the account's product
// charges. It returns the lines to store, the sum of the original subtotals
// of the referenced charges and the sum of the returned subtotals.
func (s *devolucionService) validarLineas(
	c *model.CuentaPaciente,
	tipo model.TipoDevolucion,
	req []dto.ProductoDevueltoRequest,
	activas []model.Devolucion,
) ([]model.ProductoDevuelto, decimal.Decimal, decimal.Decimal, error) {
	limite, suma := decimal.Zero, decimal.Zero
	if tipo == model.DevolucionServicio {
		if len(req) > 0 {
			return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail("Una devolución de servicio no lleva productos")
		}
		return nil, limite, suma, nil
	}
	if tipo == model.DevolucionProducto && len(req) == 0 {
		return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail("Se requiere al menos un producto a devolver")
	}

	yaDevuelto := map[uuid.UUID]int{}
	for _, a := range activas {
		for _, p := range a.Productos {
			yaDevuelto[p.TransaccionID] += p.CantidadDevuelta
		}
	}

	referenciadas := map[uuid.UUID]bool{}
	out := make([]model.ProductoDevuelto, 0, len(req))
	for _, r := range req {
		tID, err := uuid.Parse(r.TransaccionID)
		if err != nil {
			return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail("transaccion_id inválido: " + r.TransaccionID)
		}
		t, ok := c.FindTransaccion(tID)
		if !ok || t.Tipo != model.TransaccionProducto {
			return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail("La línea " + r.TransaccionID + " no es un cargo de producto de la cuenta")
		}
		if r.CantidadDevuelta <= 0 {
			return nil, limite, suma, apierror.ErrCantidadInvalida.WithDetail("La cantidad devuelta debe ser mayor a cero")
		}
		if yaDevuelto[tID]+r.CantidadDevuelta > t.Cantidad {
			return nil, limite, suma, apierror.ErrCantidadInvalida.WithDetail(fmt.Sprintf(
				"%s: se devolverían %d de %d unidades cargadas", t.Concepto, yaDevuelto[tID]+r.CantidadDevuelta, t.Cantidad))
		}
		yaDevuelto[tID] += r.CantidadDevuelta

		estado := model.EstadoProducto(r.EstadoProducto)
		if estado == "" {
			estado = model.ProductoBueno
		}
		if !estado.IsValid() {
			return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail("Estado de producto inválido: " + r.EstadoProducto)
		}
		if r.RegresaInventario && estado != model.ProductoBueno {
			return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail("Solo un producto en buen estado puede regresar al inventario")
		}
		if r.RegresaInventario && t.ProductoID == nil {
			return nil, limite, suma, apierror.ErrLineaInvalida.WithDetail(
				"La línea " + r.TransaccionID + " no referencia un producto del catálogo; no puede regresar al inventario")
		}

		subtotal := money.Round(t.PrecioUnitario.Mul(decimal.NewFromInt(int64(r.CantidadDevuelta))))
		suma = suma.Add(subtotal)
		if !referenciadas[tID] {
			referenciadas[tID] = true
			limite = limite.Add(t.Subtotal)
		}
		out = append(out, model.ProductoDevuelto{
			ID:                uuid.New(),
			TransaccionID:     tID,
			ProductoID:        t.ProductoID,
			CantidadOriginal:  t.Cantidad,
			CantidadDevuelta:  r.CantidadDevuelta,
			PrecioUnitario:    t.PrecioUnitario,
			Subtotal:          subtotal,
			EstadoProducto:    estado,
			RegresaInventario: r.RegresaInventario,
		})
	}
	return out, limite, suma, nil
}

// validarMontoPedido checks the requested amount on its own. A producto
// refund may omit it; the other tipos need it positive.
func validarMontoPedido(tipo model.TipoDevolucion, pedido *decimal.Decimal) error {
	if tipo == model.DevolucionProducto {
		if pedido != nil && money.Round(*pedido).IsNegative() {
			return apierror.ErrMontoInvalido
		}
		return nil
	}
	if pedido == nil || !money.Round(*pedido).IsPositive() {
		return apierror.ErrMontoInvalido
	}
	return nil
}

// montoYLimite resolves the refund amount and the most that tipo allows.
// A producto refund without an explicit amount refunds the returned lines.
func montoYLimite(c *model.CuentaPaciente, tipo model.TipoDevolucion, pedido *decimal.Decimal, limiteLineas, sumaLineas decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var monto decimal.Decimal
	if pedido != nil {
		monto = money.Round(*pedido)
	}

	switch tipo {
	case model.DevolucionProducto:
		if monto.IsNegative() {
			return monto, limiteLineas, apierror.ErrMontoInvalido
		}
		if monto.IsZero() {
			monto = sumaLineas
		}
		return monto, limiteLineas, nil
	case model.DevolucionServicio:
		if !monto.IsPositive() {
			return monto, c.TotalServicios, apierror.ErrMontoInvalido
		}
		return monto, c.TotalServicios, nil
	default:
		if !monto.IsPositive() {
			return monto, c.TotalCuenta, apierror.ErrMontoInvalido
		}
		return monto, c.TotalCuenta, nil
	}
}

func (s *devolucionService) notificarSolicitud(ctx context.Context, d *model.Devolucion, c *model.CuentaPaciente) {
	if s.jobs == nil {
		return
	}
	motivo := ""
	if d.Motivo != nil {
		motivo = d.Motivo.Nombre
	}
	err := s.jobs.EnqueueNotificacion(ctx, worker.NotificacionJobPayload{
		Tipo:   worker.NotificacionDevolucionSolicitada,
		Asunto: fmt.Sprintf("Devolución %s pendiente de autorización", d.Numero),
		Cuerpo: fmt.Sprintf(
			"Se solicitó la devolución %s por %s sobre la cuenta de %s.\nTipo: %s\nMotivo: %s",
			d.Numero, money.Format(d.Monto), c.PacienteNombre, d.Tipo, motivo),
		ReferenciaID: d.ID.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("devolucion_id", d.ID.String()).Msg("no se pudo encolar la notificación")
	}
}

// ── Transiciones ──────────────────────────────────────────────────────────────

func (s *devolucionService) Autorizar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.AutorizarDevolucionRequest) (*dto.DevolucionResponse, error) {
	if !authz.Can(actor, authz.CapAuthorizeDevolucion) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	return s.transicionar(ctx, id, func(d *model.Devolucion, now time.Time) error {
		return d.Autorizar(actor.UsuarioID, req.Observaciones, now)
	})
}

func (s *devolucionService) Rechazar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.MotivoRequest) (*dto.DevolucionResponse, error) {
	if !authz.Can(actor, authz.CapRejectDevolucion) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	motivo := strings.TrimSpace(req.Motivo)
	if motivo == "" {
		return nil, apierror.ErrMotivoRequerido.WithDetail("Se requiere el motivo del rechazo")
	}
	return s.transicionar(ctx, id, func(d *model.Devolucion, now time.Time) error {
		return d.Rechazar(actor.UsuarioID, motivo, now)
	})
}

// Cancelar is open to the requester and to holders of cancel_any_devolucion.
func (s *devolucionService) Cancelar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.MotivoRequest) (*dto.DevolucionResponse, error) {
	motivo := strings.TrimSpace(req.Motivo)
	if motivo == "" {
		return nil, apierror.ErrMotivoRequerido.WithDetail("Se requiere el motivo de la cancelación")
	}
	return s.transicionar(ctx, id, func(d *model.Devolucion, now time.Time) error {
		if d.CajeroSolicita != actor.UsuarioID && !authz.Can(actor, authz.CapCancelAnyDevolucion) {
			return apierror.ErrAutorizacionInsuficiente.WithDetail("Solo quien solicitó la devolución o un administrador puede cancelarla")
		}
		return d.Cancelar(motivo, now)
	})
}

// transicionar applies a state change in memory and persists it with a
// compare-and-set on the estado it was read in.
func (s *devolucionService) transicionar(ctx context.Context, id uuid.UUID, apply func(d *model.Devolucion, now time.Time) error) (*dto.DevolucionResponse, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	desde := d.Estado
	if err := apply(d, s.clock()); err != nil {
		return nil, err
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.TransicionTx(ctx, tx, d, desde)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Devolucion(string(d.Estado))
	log.Info().
		Str("devolucion_id", d.ID.String()).
		Str("numero", d.Numero).
		Str("desde", string(desde)).
		Str("hacia", string(d.Estado)).
		Msg("devolución actualizada")
	resp := devolucionToResponse(d)
	return &resp, nil
}

// ── Procesar ──────────────────────────────────────────────────────────────────
// One transaction: estado CAS, caja egress, account adjustment line and stock
// re-entry. The nota de crédito is produced asynchronously after commit.

func (s *devolucionService) Procesar(ctx context.Context, actor authz.Actor, id uuid.UUID, req dto.ProcesarDevolucionRequest) (*dto.ProcesarDevolucionResponse, error) {
	if !authz.Can(actor, authz.CapProcessDevolucion) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	metodo := model.MetodoPago(req.MetodoPago)
	if !metodo.IsValid() {
		return nil, apierror.ErrMetodoPagoInvalido
	}

	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := d.Estado.Siguiente(model.AccionProcesar); err != nil {
		return nil, err
	}
	sesion, err := s.caja.SesionAbierta(ctx, actor.UsuarioID)
	if err != nil {
		return nil, err
	}

	desde := d.Estado
	now := s.clock()
	if err := d.Procesar(actor.UsuarioID, metodo, sesion.ID, now); err != nil {
		return nil, err
	}

	metodoStr := string(metodo)
	ref := d.ID
	egreso := &model.MovimientoCaja{
		ID:           uuid.New(),
		SesionCajaID: sesion.ID,
		Tipo:         model.MovimientoDevolucion,
		MetodoPago:   &metodoStr,
		Monto:        d.Monto.Neg(),
		Descripcion:  "Devolución " + d.Numero,
		ReferenciaID: &ref,
		UsuarioID:    actor.UsuarioID,
		CreatedAt:    now,
	}

	for _, p := range d.Productos {
		if p.RegresaInventario && p.ProductoID == nil {
			return nil, apierror.ErrLineaInvalida.WithDetail(
				"La línea " + p.TransaccionID.String() + " no referencia un producto del catálogo; no puede regresar al inventario")
		}
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		// the egress takes the caja session lock first, so an arqueo
		// cannot close the register between the check and the write
		if err := s.caja.RegistrarMovimientoTx(ctx, tx, egreso); err != nil {
			return err
		}
		if err := s.repo.TransicionTx(ctx, tx, d, desde); err != nil {
			return err
		}

		c, err := s.cuentas.FindByIDForUpdateTx(ctx, tx, d.CuentaID)
		if err != nil {
			return err
		}
		ajuste, err := c.AjustePorDevolucion(d.ID, d.Numero, d.Monto, actor.UsuarioID, now)
		if err != nil {
			return err
		}
		if err := s.cuentas.CreateTransaccionTx(ctx, tx, ajuste); err != nil {
			return err
		}
		if err := s.cuentas.UpdateTotalesTx(ctx, tx, c); err != nil {
			return err
		}

		for _, p := range d.Productos {
			if !p.RegresaInventario {
				continue
			}
			if err := s.inventario.ReingresarStockTx(ctx, tx, *p.ProductoID, p.CantidadDevuelta, d.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Devolucion(string(d.Estado))
	s.metrics.EgresoDevolucion(d.Monto)
	log.Info().
		Str("devolucion_id", d.ID.String()).
		Str("numero", d.Numero).
		Str("sesion_caja_id", sesion.ID.String()).
		Str("monto", d.Monto.StringFixed(2)).
		Msg("devolución procesada")

	if s.jobs != nil {
		if err := s.jobs.EnqueueComprobante(ctx, worker.ComprobanteJobPayload{DevolucionID: d.ID.String()}); err != nil {
			log.Error().Err(err).Str("devolucion_id", d.ID.String()).Msg("no se pudo encolar la nota de crédito")
		}
	}

	return &dto.ProcesarDevolucionResponse{
		Devolucion: devolucionToResponse(d),
		Egreso: dto.EgresoCajaResponse{
			MovimientoID: egreso.ID.String(),
			SesionCajaID: sesion.ID.String(),
			Monto:        d.Monto,
			MetodoPago:   metodoStr,
		},
	}, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *devolucionService) Obtener(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := devolucionToResponse(d)
	return &resp, nil
}

func (s *devolucionService) Listar(ctx context.Context, filter dto.DevolucionFilter) (*dto.DevolucionListResponse, error) {
	f := repository.DevolucionFilter{
		Estado: model.EstadoDevolucion(filter.Estado),
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.CuentaID != "" {
		id, err := uuid.Parse(filter.CuentaID)
		if err != nil {
			return nil, apierror.ErrIDInvalido.WithDetail("cuenta_id inválido")
		}
		f.CuentaID = &id
	}
	devs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := &dto.DevolucionListResponse{
		Data:  make([]dto.DevolucionResponse, len(devs)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range devs {
		resp.Data[i] = devolucionToResponse(&devs[i])
	}
	return resp, nil
}

func (s *devolucionService) Motivos(ctx context.Context) ([]dto.MotivoDevolucionResponse, error) {
	motivos, err := s.repo.ListMotivos(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MotivoDevolucionResponse, len(motivos))
	for i, m := range motivos {
		out[i] = dto.MotivoDevolucionResponse{ID: m.ID, Nombre: m.Nombre}
	}
	return out, nil
}
