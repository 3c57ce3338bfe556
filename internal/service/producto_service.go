package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const productoCacheTTL = 4 * time.Hour

// ProductoService is the chargeable catalog: the price source for product
// charges and the stock ledger that charges and returns write to.
type ProductoService interface {
	Crear(ctx context.Context, actor authz.Actor, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error)
	ObtenerPorCodigo(ctx context.Context, codigo string) (*dto.ProductoResponse, error)
	Movimientos(ctx context.Context, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error)
}

type productoService struct {
	repo        repository.ProductoRepository
	movimientos repository.MovimientoStockRepository
	rdb         *redis.Client // nil disables the código lookup cache
}

func NewProductoService(repo repository.ProductoRepository, movimientos repository.MovimientoStockRepository, rdb *redis.Client) ProductoService {
	return &productoService{repo: repo, movimientos: movimientos, rdb: rdb}
}

func (s *productoService) Crear(ctx context.Context, actor authz.Actor, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	if !authz.Can(actor, authz.CapManageCatalog) {
		return nil, apierror.ErrAutorizacionInsuficiente
	}
	if !req.PrecioVenta.IsPositive() {
		return nil, apierror.ErrMontoInvalido
	}
	codigo := strings.TrimSpace(req.Codigo)
	if _, err := s.repo.FindByCodigo(ctx, codigo); err == nil {
		return nil, apierror.ErrCodigoDuplicado
	} else if !errors.Is(err, apierror.ErrNoEncontrado) {
		return nil, err
	}

	unidad := req.UnidadMedida
	if unidad == "" {
		unidad = "unidad"
	}
	p := &model.Producto{
		ID:           uuid.New(),
		Codigo:       codigo,
		Nombre:       strings.TrimSpace(req.Nombre),
		Descripcion:  req.Descripcion,
		PrecioVenta:  req.PrecioVenta.Round(2),
		StockActual:  req.StockActual,
		StockMinimo:  req.StockMinimo,
		UnidadMedida: unidad,
		Activo:       true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("producto_id", p.ID.String()).Str("codigo", p.Codigo).Msg("producto creado")
	resp := productoToResponse(p)
	return &resp, nil
}

func (s *productoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := productoToResponse(p)
	return &resp, nil
}

// ObtenerPorCodigo is the bedside lookup used before charging a product.
// Results are cached in Redis; stock in a cached answer may lag behind.
func (s *productoService) ObtenerPorCodigo(ctx context.Context, codigo string) (*dto.ProductoResponse, error) {
	cacheKey := "producto:codigo:" + codigo
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached dto.ProductoResponse
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	p, err := s.repo.FindByCodigo(ctx, codigo)
	if err != nil {
		return nil, err
	}
	resp := productoToResponse(p)

	if s.rdb != nil {
		if b, err := json.Marshal(resp); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, b, productoCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("codigo", codigo).Msg("producto: cache write failed")
			}
		}
	}
	return &resp, nil
}

func (s *productoService) Movimientos(ctx context.Context, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error) {
	f := repository.MovimientoStockFilter{Tipo: filter.Tipo, Page: filter.Page, Limit: filter.Limit}
	if filter.ProductoID != "" {
		id, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, apierror.ErrIDInvalido.WithDetail("producto_id inválido")
		}
		f.ProductoID = &id
	}
	if filter.ReferenciaID != "" {
		id, err := uuid.Parse(filter.ReferenciaID)
		if err != nil {
			return nil, apierror.ErrIDInvalido.WithDetail("referencia_id inválido")
		}
		f.ReferenciaID = &id
	}

	movs, total, err := s.movimientos.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovimientoStockResponse, 0, len(movs))
	for _, m := range movs {
		data = append(data, movimientoStockToResponse(m))
	}
	return &dto.MovimientoStockListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:           p.ID.String(),
		Codigo:       p.Codigo,
		Nombre:       p.Nombre,
		Descripcion:  p.Descripcion,
		PrecioVenta:  p.PrecioVenta,
		StockActual:  p.StockActual,
		StockMinimo:  p.StockMinimo,
		UnidadMedida: p.UnidadMedida,
		Activo:       p.Activo,
		BajoMinimo:   p.StockActual <= p.StockMinimo,
	}
}

func movimientoStockToResponse(m model.MovimientoStock) dto.MovimientoStockResponse {
	resp := dto.MovimientoStockResponse{
		ID:            m.ID.String(),
		ProductoID:    m.ProductoID.String(),
		Tipo:          m.Tipo,
		Cantidad:      m.Cantidad,
		StockAnterior: m.StockAnterior,
		StockNuevo:    m.StockNuevo,
		Motivo:        m.Motivo,
		ReferenciaID:  uuidPtrString(m.ReferenciaID),
		Fecha:         formatFecha(m.CreatedAt),
	}
	if m.Producto != nil {
		resp.ProductoNombre = m.Producto.Nombre
	}
	return resp
}
