package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const ocupacionCacheKey = "dashboard:ocupacion"

// CuentaService is the account ledger: charges, partial payments and balance.
type CuentaService interface {
	Abrir(ctx context.Context, actor authz.Actor, req dto.AbrirCuentaRequest) (*dto.CuentaResponse, error)
	AgregarCargo(ctx context.Context, actor authz.Actor, cuentaID uuid.UUID, req dto.AgregarCargoRequest) (*dto.CuentaResponse, error)
	RegistrarPagoParcial(ctx context.Context, actor authz.Actor, cuentaID uuid.UUID, req dto.RegistrarPagoCuentaRequest) (*dto.SaldoResponse, error)
	ObtenerSaldo(ctx context.Context, cuentaID uuid.UUID) (*dto.SaldoResponse, error)
	ObtenerCuenta(ctx context.Context, cuentaID uuid.UUID) (*dto.CuentaResponse, error)
	Ocupacion(ctx context.Context) (*dto.OcupacionResponse, error)
}

type cuentaService struct {
	repo       repository.CuentaRepository
	productos  repository.ProductoRepository
	inventario InventarioService
	caja       CajaService
	rdb        *redis.Client // nil disables the occupancy cache
	cacheTTL   time.Duration
	clock      Clock
}

func NewCuentaService(
	repo repository.CuentaRepository,
	productos repository.ProductoRepository,
	inventario InventarioService,
	caja CajaService,
	rdb *redis.Client,
	cacheTTL time.Duration,
	clock Clock,
) CuentaService {
	return &cuentaService{
		repo:       repo,
		productos:  productos,
		inventario: inventario,
		caja:       caja,
		rdb:        rdb,
		cacheTTL:   cacheTTL,
		clock:      clockOrDefault(clock),
	}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cuentaService) Abrir(ctx context.Context, actor authz.Actor, req dto.AbrirCuentaRequest) (*dto.CuentaResponse, error) {
	if !authz.Can(actor, authz.CapOpenAccount) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	pacienteID, err := uuid.Parse(req.PacienteID)
	if err != nil {
		return nil, apierror.ErrIDInvalido.WithDetail("paciente_id inválido")
	}
	tipo := model.TipoAtencion(req.TipoAtencion)
	if !tipo.IsValid() {
		return nil, apierror.ErrLineaInvalida.WithDetail("Tipo de atención inválido: " + req.TipoAtencion)
	}

	c := model.NuevaCuenta(pacienteID, req.PacienteNombre, tipo, actor.UsuarioID, s.clock())
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Info().Str("cuenta_id", c.ID.String()).Str("tipo_atencion", string(tipo)).Msg("cuenta abierta")
	resp := cuentaToResponse(c)
	return &resp, nil
}

// ── AgregarCargo ──────────────────────────────────────────────────────────────
// Product charges are priced from the catalog and discount stock in the same
// transaction as the account line.

func (s *cuentaService) AgregarCargo(ctx context.Context, actor authz.Actor, cuentaID uuid.UUID, req dto.AgregarCargoRequest) (*dto.CuentaResponse, error) {
	if !authz.Can(actor, authz.CapAddCharge) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}

	now := s.clock()
	linea := model.TransaccionCuenta{
		ID:        uuid.New(),
		Concepto:  req.Concepto,
		Tipo:      model.TipoTransaccion(req.Tipo),
		Cantidad:  req.Cantidad,
		Subtotal:  req.Subtotal,
		UsuarioID: actor.UsuarioID,
		Fecha:     now,
	}
	if linea.Cantidad <= 0 {
		linea.Cantidad = 1
	}

	var productoID *uuid.UUID
	if req.ProductoID != nil && *req.ProductoID != "" {
		if linea.Tipo != model.TransaccionProducto {
			return nil, apierror.ErrLineaInvalida.WithDetail("producto_id solo aplica a cargos de tipo producto")
		}
		id, err := uuid.Parse(*req.ProductoID)
		if err != nil {
			return nil, apierror.ErrIDInvalido.WithDetail("producto_id inválido")
		}
		p, err := s.productos.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.Activo {
			return nil, apierror.ErrLineaInvalida.WithDetail("El producto " + p.Nombre + " está inactivo")
		}
		productoID = &id
		linea.ProductoID = productoID
		linea.PrecioUnitario = p.PrecioVenta
		linea.Subtotal = money.Round(p.PrecioVenta.Mul(decimal.NewFromInt(int64(linea.Cantidad))))
	}

	var cuenta *model.CuentaPaciente
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		c, err := s.repo.FindByIDForUpdateTx(ctx, tx, cuentaID)
		if err != nil {
			return err
		}
		nueva, err := c.AgregarCargo(linea)
		if err != nil {
			return err
		}
		if err := s.repo.CreateTransaccionTx(ctx, tx, nueva); err != nil {
			return err
		}
		if err := s.repo.UpdateTotalesTx(ctx, tx, c); err != nil {
			return err
		}
		if productoID != nil {
			if err := s.inventario.DescontarStockTx(ctx, tx, *productoID, nueva.Cantidad, c.ID); err != nil {
				return err
			}
		}
		cuenta = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := cuentaToResponse(cuenta)
	return &resp, nil
}

// ── RegistrarPagoParcial ──────────────────────────────────────────────────────
// When the actor has an open register the payment is also recorded as a caja
// movement; payments taken at a nursing station have no register.

func (s *cuentaService) RegistrarPagoParcial(ctx context.Context, actor authz.Actor, cuentaID uuid.UUID, req dto.RegistrarPagoCuentaRequest) (*dto.SaldoResponse, error) {
	if !authz.Can(actor, authz.CapRegisterPayment) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	metodo := model.MetodoPago(req.Metodo)
	if !metodo.IsValid() {
		return nil, apierror.ErrMetodoPagoInvalido
	}
	if !money.IsPositive(req.Monto) {
		return nil, apierror.ErrMontoInvalido
	}

	sesion, err := s.sesionOpcional(ctx, actor.UsuarioID)
	if err != nil {
		return nil, err
	}

	var cuenta *model.CuentaPaciente
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		c, err := s.repo.FindByIDForUpdateTx(ctx, tx, cuentaID)
		if err != nil {
			return err
		}
		pago, err := c.RegistrarPago(model.PagoCuenta{
			Monto:         req.Monto,
			Metodo:        metodo,
			Observaciones: req.Observaciones,
			UsuarioID:     actor.UsuarioID,
			Fecha:         s.clock(),
		})
		if err != nil {
			return err
		}
		if err := s.repo.CreatePagoTx(ctx, tx, pago); err != nil {
			return err
		}
		if err := s.repo.UpdateTotalesTx(ctx, tx, c); err != nil {
			return err
		}
		if sesion != nil {
			m := string(metodo)
			ref := pago.ID
			if err := s.caja.RegistrarMovimientoTx(ctx, tx, &model.MovimientoCaja{
				SesionCajaID: sesion.ID,
				Tipo:         model.MovimientoPagoCuenta,
				MetodoPago:   &m,
				Monto:        pago.Monto,
				Descripcion:  "Pago parcial cuenta " + c.ID.String(),
				ReferenciaID: &ref,
				UsuarioID:    actor.UsuarioID,
			}); err != nil {
				return err
			}
		}
		cuenta = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saldoToResponse(cuenta), nil
}

func (s *cuentaService) sesionOpcional(ctx context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	if s.caja == nil {
		return nil, nil
	}
	sesion, err := s.caja.SesionAbierta(ctx, usuarioID)
	if errors.Is(err, apierror.ErrSinCajaAbierta) {
		return nil, nil
	}
	return sesion, err
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cuentaService) ObtenerSaldo(ctx context.Context, cuentaID uuid.UUID) (*dto.SaldoResponse, error) {
	c, err := s.repo.FindByID(ctx, cuentaID)
	if err != nil {
		return nil, err
	}
	return saldoToResponse(c), nil
}

func (s *cuentaService) ObtenerCuenta(ctx context.Context, cuentaID uuid.UUID) (*dto.CuentaResponse, error) {
	c, err := s.repo.FindByID(ctx, cuentaID)
	if err != nil {
		return nil, err
	}
	resp := cuentaToResponse(c)
	return &resp, nil
}

// Ocupacion counts open accounts per tipo de atención. The result is cached
// in Redis; stale reads within the TTL are acceptable for the dashboard.
func (s *cuentaService) Ocupacion(ctx context.Context) (*dto.OcupacionResponse, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, ocupacionCacheKey).Bytes(); err == nil {
			var cached dto.OcupacionResponse
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("ocupacion: cache read failed")
		}
	}

	counts, err := s.repo.CountAbiertasPorTipo(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.OcupacionResponse{
		Ambulatoria:     counts[model.AtencionAmbulatoria],
		Urgencias:       counts[model.AtencionUrgencias],
		Hospitalizacion: counts[model.AtencionHospitalizacion],
		GeneradoEn:      formatFecha(s.clock()),
	}
	resp.Total = resp.Ambulatoria + resp.Urgencias + resp.Hospitalizacion

	if s.rdb != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.rdb.Set(ctx, ocupacionCacheKey, data, s.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("ocupacion: cache write failed")
			}
		}
	}
	return resp, nil
}
