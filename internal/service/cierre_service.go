package service

import (
	"context"
	"fmt"
	"strings"

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
	"gorm.io/gorm"
)

// CierreService decides whether an account may close and, when it closes
// with debt, creates the receivable in the same transaction.
type CierreService interface {
	Cerrar(ctx context.Context, actor authz.Actor, cuentaID uuid.UUID, req dto.CerrarCuentaRequest) (*dto.CierreCuentaResponse, error)
}

type cierreService struct {
	cuentas repository.CuentaRepository
	cpcs    repository.CPCRepository
	jobs    JobQueue // nil disables the CPC notification
	metrics *infra.Metrics
	clock   Clock
}

func NewCierreService(cuentas repository.CuentaRepository, cpcs repository.CPCRepository, jobs JobQueue, metrics *infra.Metrics, clock Clock) CierreService {
	return &cierreService{cuentas: cuentas, cpcs: cpcs, jobs: jobs, metrics: metrics, clock: clockOrDefault(clock)}
}

// Cerrar checks, in order: account already closed, then (only with debt) the
// CPC flag plus authorize_cpc capability, then the authorization reason.
func (s *cierreService) Cerrar(ctx context.Context, actor authz.Actor, cuentaID uuid.UUID, req dto.CerrarCuentaRequest) (*dto.CierreCuentaResponse, error) {
	if !authz.Can(actor, authz.CapCloseAccount) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	if req.MetodoPago != nil && !model.MetodoPago(*req.MetodoPago).IsValid() {
		return nil, apierror.ErrMetodoPagoInvalido
	}

	var (
		cuenta *model.CuentaPaciente
		cpc    *model.CuentaPorCobrar
	)
	err := runTx(ctx, s.cuentas.DB(), func(tx *gorm.DB) error {
		c, err := s.cuentas.FindByIDForUpdateTx(ctx, tx, cuentaID)
		if err != nil {
			return err
		}
		if c.EstaCerrada() {
			return apierror.ErrCuentaCerrada
		}

		now := s.clock()
		saldo := c.Saldo()
		if saldo.IsPositive() {
			if !req.CuentaPorCobrar || !authz.Can(actor, authz.CapAuthorizeCPC) {
				return apierror.ErrAutorizacionInsuficiente.WithDetail(
					"La cuenta tiene saldo pendiente; cerrarla requiere autorización de cuenta por cobrar")
			}
			motivo := strings.TrimSpace(req.MotivoAutorizacion)
			if motivo == "" {
				return apierror.ErrMotivoRequerido.WithDetail("Se requiere el motivo de autorización de la cuenta por cobrar")
			}
			cpc = model.NuevaCPC(c, saldo, motivo, actor.UsuarioID, now)
			if err := s.cpcs.CreateTx(ctx, tx, cpc); err != nil {
				return err
			}
		}

		if err := c.Cerrar(actor.UsuarioID, req.MetodoPago, now); err != nil {
			return err
		}
		if err := s.cuentas.CerrarTx(ctx, tx, c); err != nil {
			return err
		}
		cuenta = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CuentaCerrada(cpc != nil)
	ev := log.Info().Str("cuenta_id", cuenta.ID.String()).Str("saldo", cuenta.SaldoCierre.StringFixed(2))
	resp := &dto.CierreCuentaResponse{Cuenta: cuentaToResponse(cuenta)}
	if cpc != nil {
		id := cpc.ID.String()
		resp.CPCID = &id
		ev = ev.Str("cpc_id", id)
	}
	ev.Msg("cuenta cerrada")
	if cpc != nil {
		s.notificarCPC(ctx, cpc)
	}
	return resp, nil
}

// notificarCPC runs after commit; a queue failure is logged and never undoes the close.
func (s *cierreService) notificarCPC(ctx context.Context, cpc *model.CuentaPorCobrar) {
	if s.jobs == nil {
		return
	}
	err := s.jobs.EnqueueNotificacion(ctx, worker.NotificacionJobPayload{
		Tipo:   worker.NotificacionCPCCreada,
		Asunto: fmt.Sprintf("Cuenta por cobrar de %s por %s", cpc.PacienteNombre, money.Format(cpc.MontoOriginal)),
		Cuerpo: fmt.Sprintf(
			"La cuenta %s se cerró con un saldo pendiente de %s.\nPaciente: %s\nMotivo de autorización: %s",
			cpc.CuentaID, money.Format(cpc.MontoOriginal), cpc.PacienteNombre, cpc.MotivoAutorizacion),
		ReferenciaID: cpc.ID.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("cpc_id", cpc.ID.String()).Msg("no se pudo encolar la notificación")
	}
}
