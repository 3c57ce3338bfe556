package service

import (
	"context"
	"errors"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	sesionAbierta = "abierta"
	sesionCerrada = "cerrada"
)

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.ReporteCajaResponse, error)
	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) error
	Arqueo(ctx context.Context, usuarioID uuid.UUID, req dto.ArqueoRequest) (*dto.ArqueoResponse, error)
	// ObtenerReporte is limited to the session owner unless the actor audits registers.
	ObtenerReporte(ctx context.Context, actor authz.Actor, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error)
	GetActiva(ctx context.Context, usuarioID uuid.UUID) (*dto.ReporteCajaResponse, error)

	// SesionAbierta is the open-register fact the devolución and payment
	// flows depend on. ErrSinCajaAbierta when the user has none.
	SesionAbierta(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error)
	// RegistrarMovimientoTx appends a movement inside the caller's transaction.
	RegistrarMovimientoTx(ctx context.Context, tx *gorm.DB, m *model.MovimientoCaja) error
}

type cajaService struct {
	repo  repository.CajaRepository
	clock Clock
}

func NewCajaService(repo repository.CajaRepository, clock Clock) CajaService {
	return &cajaService{repo: repo, clock: clockOrDefault(clock)}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.ReporteCajaResponse, error) {
	if req.NumeroCaja <= 0 {
		return nil, apierror.ErrNumeroCajaRequerido
	}
	if req.MontoInicial.IsNegative() {
		return nil, apierror.ErrMontoInvalido.WithDetail("El monto inicial no puede ser negativo")
	}
	// one open session per register and per user
	if _, err := s.repo.FindSesionAbiertaPorCaja(ctx, req.NumeroCaja); err == nil {
		return nil, apierror.ErrCajaYaAbierta
	} else if !errors.Is(err, apierror.ErrNoEncontrado) {
		return nil, err
	}
	if _, err := s.repo.FindSesionAbiertaPorUsuario(ctx, usuarioID); err == nil {
		return nil, apierror.ErrCajaYaAbierta.WithDetail("El usuario ya tiene una caja abierta")
	} else if !errors.Is(err, apierror.ErrNoEncontrado) {
		return nil, err
	}

	sesion := &model.SesionCaja{
		ID:           uuid.New(),
		NumeroCaja:   req.NumeroCaja,
		UsuarioID:    usuarioID,
		MontoInicial: money.Round(req.MontoInicial),
		Estado:       sesionAbierta,
		OpenedAt:     s.clock(),
	}
	if err := s.repo.CreateSesion(ctx, sesion); err != nil {
		return nil, err
	}
	log.Info().Str("sesion_caja_id", sesion.ID.String()).Int("numero_caja", sesion.NumeroCaja).Msg("caja abierta")
	return s.buildReporte(ctx, sesion, false)
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// Ingreso / egreso manual. Movements are immutable, no Update/Delete.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) error {
	sesion, err := s.sesionDelUsuario(ctx, usuarioID, req.SesionCajaID)
	if err != nil {
		return err
	}
	if sesion.UsuarioID != usuarioID {
		return apierror.ErrAutorizacionInsuficiente.WithDetail("La sesión de caja pertenece a otro usuario")
	}
	if sesion.Estado != sesionAbierta {
		return apierror.ErrSinCajaAbierta
	}
	if !money.IsPositive(req.Monto) {
		return apierror.ErrMontoInvalido
	}

	monto := money.Round(req.Monto)
	if req.Tipo == model.MovimientoEgresoManual {
		monto = monto.Neg()
	}
	metodo := req.MetodoPago
	return s.repo.CreateMovimiento(ctx, &model.MovimientoCaja{
		SesionCajaID: sesion.ID,
		Tipo:         req.Tipo,
		MetodoPago:   &metodo,
		Monto:        monto,
		Descripcion:  req.Descripcion,
		UsuarioID:    usuarioID,
		CreatedAt:    s.clock(),
	})
}

func (s *cajaService) RegistrarMovimientoTx(ctx context.Context, tx *gorm.DB, m *model.MovimientoCaja) error {
	if _, err := s.lockAbierta(ctx, tx, m.SesionCajaID); err != nil {
		return err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock()
	}
	return s.repo.CreateMovimientoTx(ctx, tx, m)
}

// lockAbierta re-reads the session under its row lock. An arqueo that
// committed after the caller looked the session up shows as ErrSinCajaAbierta.
func (s *cajaService) lockAbierta(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	sesion, err := s.repo.LockSesionAbiertaTx(ctx, tx, id)
	if errors.Is(err, apierror.ErrNoEncontrado) {
		return nil, apierror.ErrSinCajaAbierta.WithDetail("La sesión de caja ya está cerrada")
	}
	return sesion, err
}

// ── Arqueo ────────────────────────────────────────────────────────────────────
// Blind count: calculates desvio AFTER receiving the declaration.
// Closes the session and records classification.

func (s *cajaService) Arqueo(ctx context.Context, usuarioID uuid.UUID, req dto.ArqueoRequest) (*dto.ArqueoResponse, error) {
	sesion, err := s.sesionDelUsuario(ctx, usuarioID, req.SesionCajaID)
	if err != nil {
		return nil, err
	}
	if sesion.Estado != sesionAbierta {
		return nil, apierror.ErrSinCajaAbierta.WithDetail("La sesión ya está cerrada")
	}

	declarado := totalizar(dto.MontosPorMetodo{
		Efectivo:      req.Declaracion.Efectivo,
		Tarjeta:       req.Declaracion.Tarjeta,
		Transferencia: req.Declaracion.Transferencia,
	})
	var (
		esperado      dto.MontosPorMetodo
		desvioMonto   decimal.Decimal
		desvioPct     decimal.Decimal
		clasificacion string
	)
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		locked, err := s.lockAbierta(ctx, tx, sesion.ID)
		if err != nil {
			return err
		}
		// movement writers need this lock, so the sums cannot move until commit
		sums, err := s.repo.SumMovimientosByMetodo(ctx, locked.ID)
		if err != nil {
			return err
		}
		esperado = montosEsperados(locked.MontoInicial, sums)
		desvioMonto = declarado.Total.Sub(esperado.Total)
		desvioPct = money.Ratio(desvioMonto, esperado.Total).Mul(decimal.NewFromInt(100)).Round(2)
		clasificacion = clasificarDesvio(desvioPct)

		if clasificacion == "critico" && (req.Observaciones == nil || *req.Observaciones == "") {
			return apierror.ErrMotivoRequerido.WithDetail("Desvío crítico: se requieren observaciones del supervisor")
		}

		now := s.clock()
		locked.MontoEsperado = &esperado.Total
		locked.MontoDeclarado = &declarado.Total
		locked.Desvio = &desvioMonto
		locked.DesvioPct = &desvioPct
		locked.Estado = sesionCerrada
		locked.ClasificacionDesvio = &clasificacion
		locked.Observaciones = req.Observaciones
		locked.ClosedAt = &now
		return s.repo.UpdateSesionTx(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("sesion_caja_id", sesion.ID.String()).
		Str("desvio", desvioMonto.StringFixed(2)).
		Str("clasificacion", clasificacion).
		Msg("caja cerrada")

	return &dto.ArqueoResponse{
		SesionCajaID:   sesion.ID.String(),
		MontoEsperado:  esperado,
		MontoDeclarado: declarado,
		Desvio: dto.DesvioResponse{
			Monto:         desvioMonto,
			Porcentaje:    desvioPct,
			Clasificacion: clasificacion,
		},
		Estado: sesionCerrada,
	}, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerReporte(ctx context.Context, actor authz.Actor, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, err
	}
	if sesion.UsuarioID != actor.UsuarioID && !authz.Can(actor, authz.CapAuditCaja) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	return s.buildReporte(ctx, sesion, true)
}

func (s *cajaService) GetActiva(ctx context.Context, usuarioID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.SesionAbierta(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	return s.buildReporte(ctx, sesion, false)
}

func (s *cajaService) SesionAbierta(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	sesion, err := s.repo.FindSesionAbiertaPorUsuario(ctx, usuarioID)
	if errors.Is(err, apierror.ErrNoEncontrado) {
		return nil, apierror.ErrSinCajaAbierta
	}
	return sesion, err
}

// sesionDelUsuario resolves an explicit session id, or the user's open session
// when id is empty.
func (s *cajaService) sesionDelUsuario(ctx context.Context, usuarioID uuid.UUID, id string) (*model.SesionCaja, error) {
	if id == "" {
		return s.SesionAbierta(ctx, usuarioID)
	}
	sesionID, err := uuid.Parse(id)
	if err != nil {
		return nil, apierror.ErrIDInvalido.WithDetail("sesion_caja_id inválido")
	}
	return s.repo.FindSesionByID(ctx, sesionID)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return "advertencia"
	default:
		return "critico"
	}
}

func montosEsperados(inicial decimal.Decimal, sums map[string]decimal.Decimal) dto.MontosPorMetodo {
	return totalizar(dto.MontosPorMetodo{
		Efectivo:      inicial.Add(sums[string(model.MetodoEfectivo)]),
		Tarjeta:       sums[string(model.MetodoTarjeta)],
		Transferencia: sums[string(model.MetodoTransferencia)],
	})
}

func totalizar(m dto.MontosPorMetodo) dto.MontosPorMetodo {
	m.Total = money.Sum(m.Efectivo, m.Tarjeta, m.Transferencia)
	return m
}

func (s *cajaService) buildReporte(ctx context.Context, sesion *model.SesionCaja, conMovimientos bool) (*dto.ReporteCajaResponse, error) {
	sums, err := s.repo.SumMovimientosByMetodo(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}

	reporte := &dto.ReporteCajaResponse{
		SesionCajaID:  sesion.ID.String(),
		NumeroCaja:    sesion.NumeroCaja,
		UsuarioID:     sesion.UsuarioID.String(),
		MontoInicial:  sesion.MontoInicial,
		MontoEsperado: montosEsperados(sesion.MontoInicial, sums),
		Estado:        sesion.Estado,
		Observaciones: sesion.Observaciones,
		OpenedAt:      formatFecha(sesion.OpenedAt),
		ClosedAt:      formatFechaPtr(sesion.ClosedAt),
	}
	if sesion.MontoDeclarado != nil {
		reporte.MontoDeclarado = &dto.MontosPorMetodo{Total: *sesion.MontoDeclarado}
	}
	if sesion.Desvio != nil && sesion.DesvioPct != nil && sesion.ClasificacionDesvio != nil {
		reporte.Desvio = &dto.DesvioResponse{
			Monto:         *sesion.Desvio,
			Porcentaje:    *sesion.DesvioPct,
			Clasificacion: *sesion.ClasificacionDesvio,
		}
	}

	if conMovimientos {
		movs := sesion.Movimientos
		if movs == nil {
			if movs, err = s.repo.ListMovimientos(ctx, sesion.ID); err != nil {
				return nil, err
			}
		}
		reporte.Movimientos = make([]dto.MovimientoCajaResponse, len(movs))
		for i, m := range movs {
			var ref *string
			if m.ReferenciaID != nil {
				r := m.ReferenciaID.String()
				ref = &r
			}
			reporte.Movimientos[i] = dto.MovimientoCajaResponse{
				ID:           m.ID.String(),
				Tipo:         m.Tipo,
				MetodoPago:   m.MetodoPago,
				Monto:        m.Monto,
				Descripcion:  m.Descripcion,
				ReferenciaID: ref,
				CreatedAt:    formatFecha(m.CreatedAt),
			}
		}
	}
	return reporte, nil
}
