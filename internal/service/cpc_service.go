package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	fechaDiaLayout = "2006-01-02"
	maxDeudores    = 10
)

// CPCService manages receivables created by closing accounts with debt.
type CPCService interface {
	RegistrarPago(ctx context.Context, actor authz.Actor, cpcID uuid.UUID, req dto.RegistrarPagoCPCRequest) (*dto.CPCResponse, error)
	Estadisticas(ctx context.Context, filter dto.EstadisticasFilter) (*dto.EstadisticasCPCResponse, error)
	Listar(ctx context.Context, filter dto.CPCFilter) (*dto.CPCListResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.CPCResponse, error)
}

type cpcService struct {
	repo    repository.CPCRepository
	caja    CajaService
	metrics *infra.Metrics
	clock   Clock
}

func NewCPCService(repo repository.CPCRepository, caja CajaService, metrics *infra.Metrics, clock Clock) CPCService {
	return &cpcService{repo: repo, caja: caja, metrics: metrics, clock: clockOrDefault(clock)}
}

// ── RegistrarPago ─────────────────────────────────────────────────────────────

func (s *cpcService) RegistrarPago(ctx context.Context, actor authz.Actor, cpcID uuid.UUID, req dto.RegistrarPagoCPCRequest) (*dto.CPCResponse, error) {
	if !authz.Can(actor, authz.CapRegisterCPCPayment) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	metodo := model.MetodoPago(req.Metodo)
	if !metodo.IsValid() {
		return nil, apierror.ErrMetodoPagoInvalido
	}
	if !money.IsPositive(req.Monto) {
		return nil, apierror.ErrMontoInvalido
	}

	var sesion *model.SesionCaja
	if s.caja != nil {
		abierta, err := s.caja.SesionAbierta(ctx, actor.UsuarioID)
		if err != nil && !errors.Is(err, apierror.ErrSinCajaAbierta) {
			return nil, err
		}
		sesion = abierta
	}

	var (
		cpc  *model.CuentaPorCobrar
		pago *model.PagoCPC
	)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		c, err := s.repo.FindByIDForUpdateTx(ctx, tx, cpcID)
		if err != nil {
			return err
		}
		p, err := c.AplicarPago(req.Monto, metodo, actor.UsuarioID, s.clock())
		if err != nil {
			return err
		}
		if err := s.repo.SaveTx(ctx, tx, c); err != nil {
			return err
		}
		if err := s.repo.CreatePagoTx(ctx, tx, p); err != nil {
			return err
		}
		if sesion != nil {
			m := string(metodo)
			ref := p.ID
			if err := s.caja.RegistrarMovimientoTx(ctx, tx, &model.MovimientoCaja{
				SesionCajaID: sesion.ID,
				Tipo:         model.MovimientoPagoCPC,
				MetodoPago:   &m,
				Monto:        p.Monto,
				Descripcion:  "Pago cuenta por cobrar " + c.ID.String(),
				ReferenciaID: &ref,
				UsuarioID:    actor.UsuarioID,
			}); err != nil {
				return err
			}
		}
		cpc, pago = c, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PagoCPC(pago.Monto)
	log.Info().
		Str("cpc_id", cpc.ID.String()).
		Str("monto", pago.Monto.StringFixed(2)).
		Str("estado", string(cpc.Estado)).
		Msg("pago cpc registrado")
	resp := cpcToResponse(cpc)
	return &resp, nil
}

// ── Estadisticas ──────────────────────────────────────────────────────────────
// The period covers receivables by closing date, both ends inclusive. With no
// dates it is the current month up to today.

func (s *cpcService) Estadisticas(ctx context.Context, filter dto.EstadisticasFilter) (*dto.EstadisticasCPCResponse, error) {
	desde, hasta, err := s.periodo(filter)
	if err != nil {
		return nil, err
	}

	cpcs, err := s.repo.ListPorPeriodo(ctx, desde, hasta.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	resp := &dto.EstadisticasCPCResponse{
		Desde:    desde.Format(fechaDiaLayout),
		Hasta:    hasta.Format(fechaDiaLayout),
		TotalCPC: len(cpcs),
		PorEstado: map[string]int{
			string(model.CPCPendiente):     0,
			string(model.CPCPagadoParcial): 0,
			string(model.CPCPagadoTotal):   0,
		},
		PrincipalesDeudores: []dto.DeudorResponse{},
	}

	pendiente, recuperado := decimal.Zero, decimal.Zero
	type deudor struct {
		dto.DeudorResponse
		primera time.Time
	}
	porPaciente := map[uuid.UUID]*deudor{}
	for _, c := range cpcs {
		pendiente = pendiente.Add(c.MontoPendiente)
		recuperado = recuperado.Add(c.MontoPagado)
		resp.PorEstado[string(c.Estado)]++

		if !c.MontoPendiente.IsPositive() {
			continue
		}
		d, ok := porPaciente[c.PacienteID]
		if !ok {
			d = &deudor{
				DeudorResponse: dto.DeudorResponse{
					PacienteID:     c.PacienteID.String(),
					PacienteNombre: c.PacienteNombre,
					MontoPendiente: decimal.Zero,
				},
				primera: c.FechaCierreCuenta,
			}
			porPaciente[c.PacienteID] = d
		}
		d.MontoPendiente = d.MontoPendiente.Add(c.MontoPendiente)
		d.Cuentas++
		if c.FechaCierreCuenta.Before(d.primera) {
			d.primera = c.FechaCierreCuenta
		}
	}

	deudores := make([]*deudor, 0, len(porPaciente))
	for _, d := range porPaciente {
		deudores = append(deudores, d)
	}
	sort.Slice(deudores, func(i, j int) bool {
		a, b := deudores[i], deudores[j]
		if cmp := a.MontoPendiente.Cmp(b.MontoPendiente); cmp != 0 {
			return cmp > 0
		}
		if !a.primera.Equal(b.primera) {
			return a.primera.Before(b.primera)
		}
		return a.PacienteID < b.PacienteID
	})
	if len(deudores) > maxDeudores {
		deudores = deudores[:maxDeudores]
	}
	for _, d := range deudores {
		d.PrimeraFechaCierre = formatFecha(d.primera)
		resp.PrincipalesDeudores = append(resp.PrincipalesDeudores, d.DeudorResponse)
	}

	resp.MontoPendiente = pendiente
	resp.MontoRecuperado = recuperado
	resp.TasaRecuperacion = money.Ratio(recuperado, recuperado.Add(pendiente))
	return resp, nil
}

func (s *cpcService) periodo(filter dto.EstadisticasFilter) (time.Time, time.Time, error) {
	now := s.clock()
	hoy := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	desde := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	hasta := hoy

	var err error
	if filter.Desde != "" {
		if desde, err = time.ParseInLocation(fechaDiaLayout, filter.Desde, now.Location()); err != nil {
			return desde, hasta, apierror.ErrPeriodoInvalido.WithDetail("Fecha desde inválida: " + filter.Desde)
		}
	}
	if filter.Hasta != "" {
		if hasta, err = time.ParseInLocation(fechaDiaLayout, filter.Hasta, now.Location()); err != nil {
			return desde, hasta, apierror.ErrPeriodoInvalido.WithDetail("Fecha hasta inválida: " + filter.Hasta)
		}
	}
	if desde.After(hasta) {
		return desde, hasta, apierror.ErrPeriodoInvalido.WithDetail("La fecha desde es posterior a la fecha hasta")
	}
	return desde, hasta, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cpcService) Listar(ctx context.Context, filter dto.CPCFilter) (*dto.CPCListResponse, error) {
	f := repository.CPCFilter{
		Estado: model.EstadoCPC(filter.Estado),
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.PacienteID != "" {
		id, err := uuid.Parse(filter.PacienteID)
		if err != nil {
			return nil, apierror.ErrIDInvalido.WithDetail("paciente_id inválido")
		}
		f.PacienteID = &id
	}
	cpcs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := &dto.CPCListResponse{
		Data:  make([]dto.CPCResponse, len(cpcs)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range cpcs {
		resp.Data[i] = cpcToResponse(&cpcs[i])
	}
	return resp, nil
}

func (s *cpcService) Obtener(ctx context.Context, id uuid.UUID) (*dto.CPCResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := cpcToResponse(c)
	return &resp, nil
}
