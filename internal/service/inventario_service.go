package service

import (
	"context"
	"fmt"

	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Tipos de MovimientoStock.
const (
	StockCargoCuenta = "cargo_cuenta"
	StockDevolucion  = "devolucion"
)

// InventarioService moves stock for product charges and returned products.
// Both operations run inside the caller's transaction.
type InventarioService interface {
	// DescontarStockTx is called within the AgregarCargo transaction.
	DescontarStockTx(ctx context.Context, tx *gorm.DB, productoID uuid.UUID, cantidad int, cuentaID uuid.UUID) error
	// ReingresarStockTx is called within the Procesar transaction for lines
	// flagged regresa_inventario.
	ReingresarStockTx(ctx context.Context, tx *gorm.DB, productoID uuid.UUID, cantidad int, devolucionID uuid.UUID) error
}

type inventarioService struct {
	repo        repository.ProductoRepository
	movimientos repository.MovimientoStockRepository
}

func NewInventarioService(repo repository.ProductoRepository, movimientos repository.MovimientoStockRepository) InventarioService {
	return &inventarioService{repo: repo, movimientos: movimientos}
}

func (s *inventarioService) DescontarStockTx(ctx context.Context, tx *gorm.DB, productoID uuid.UUID, cantidad int, cuentaID uuid.UUID) error {
	return s.mover(ctx, tx, productoID, -cantidad, StockCargoCuenta, "Cargo a cuenta de paciente", cuentaID)
}

func (s *inventarioService) ReingresarStockTx(ctx context.Context, tx *gorm.DB, productoID uuid.UUID, cantidad int, devolucionID uuid.UUID) error {
	return s.mover(ctx, tx, productoID, cantidad, StockDevolucion, "Reingreso por devolución", devolucionID)
}

func (s *inventarioService) mover(ctx context.Context, tx *gorm.DB, productoID uuid.UUID, delta int, tipo, motivo string, referenciaID uuid.UUID) error {
	p, err := s.repo.FindByIDForUpdateTx(ctx, tx, productoID)
	if err != nil {
		return err
	}
	nuevo := p.StockActual + delta
	// Clinical charges are never blocked by stock; the shortfall is logged for the pharmacy.
	if nuevo < 0 {
		log.Warn().
			Str("producto_id", productoID.String()).
			Int("stock_actual", p.StockActual).
			Int("cantidad", -delta).
			Msg("stock negativo tras cargo a cuenta")
	}
	if err := s.repo.UpdateStockTx(ctx, tx, productoID, delta); err != nil {
		return fmt.Errorf("actualizar stock: %w", err)
	}
	ref := referenciaID
	return s.movimientos.CreateTx(ctx, tx, &model.MovimientoStock{
		ProductoID:    productoID,
		Tipo:          tipo,
		Cantidad:      delta,
		StockAnterior: p.StockActual,
		StockNuevo:    nuevo,
		Motivo:        motivo,
		ReferenciaID:  &ref,
	})
}
