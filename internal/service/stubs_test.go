package service

import (
	"context"
	"sort"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repositories. Reads return copies so a failed operation never
// leaks half-applied state into the store, as a rolled back transaction would.

// ── cuentas ───────────────────────────────────────────────────────────────────

type memCuentaRepo struct {
	byID map[uuid.UUID]*model.CuentaPaciente
}

func newMemCuentaRepo() *memCuentaRepo {
	return &memCuentaRepo{byID: map[uuid.UUID]*model.CuentaPaciente{}}
}

// loadCuenta copies the header plus only the named associations, the way a
// gorm Preload would. Each finder lists what its real query preloads.
func loadCuenta(c *model.CuentaPaciente, preloads ...string) *model.CuentaPaciente {
	cp := *c
	cp.Transacciones, cp.Pagos = nil, nil
	for _, name := range preloads {
		switch name {
		case "Transacciones":
			cp.Transacciones = append([]model.TransaccionCuenta(nil), c.Transacciones...)
		case "Pagos":
			cp.Pagos = append([]model.PagoCuenta(nil), c.Pagos...)
		}
	}
	return &cp
}

func copyCuenta(c *model.CuentaPaciente) *model.CuentaPaciente {
	return loadCuenta(c, "Transacciones", "Pagos")
}

func (r *memCuentaRepo) DB() *gorm.DB { return nil }

func (r *memCuentaRepo) Create(_ context.Context, c *model.CuentaPaciente) error {
	r.byID[c.ID] = copyCuenta(c)
	return nil
}

func (r *memCuentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CuentaPaciente, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	return copyCuenta(c), nil
}

func (r *memCuentaRepo) FindByIDForUpdateTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CuentaPaciente, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	// same preloads as cuentaRepo.FindByIDForUpdateTx
	return loadCuenta(c, "Transacciones", "Pagos"), nil
}

func (r *memCuentaRepo) CreateTransaccionTx(_ context.Context, _ *gorm.DB, t *model.TransaccionCuenta) error {
	c := r.byID[t.CuentaID]
	c.Transacciones = append(c.Transacciones, *t)
	return nil
}

func (r *memCuentaRepo) CreatePagoTx(_ context.Context, _ *gorm.DB, p *model.PagoCuenta) error {
	c := r.byID[p.CuentaID]
	c.Pagos = append(c.Pagos, *p)
	return nil
}

func (r *memCuentaRepo) UpdateTotalesTx(_ context.Context, _ *gorm.DB, c *model.CuentaPaciente) error {
	stored := r.byID[c.ID]
	if stored.Version != c.Version {
		return apierror.ErrConflictoConcurrencia
	}
	stored.TotalServicios = c.TotalServicios
	stored.TotalProductos = c.TotalProductos
	stored.TotalCuenta = c.TotalCuenta
	stored.TotalPagado = c.TotalPagado
	stored.TotalDevuelto = c.TotalDevuelto
	stored.Version++
	c.Version++
	return nil
}

func (r *memCuentaRepo) CerrarTx(_ context.Context, _ *gorm.DB, c *model.CuentaPaciente) error {
	stored := r.byID[c.ID]
	if stored.Estado != model.CuentaAbierta {
		return apierror.ErrCuentaCerrada
	}
	stored.Estado = model.CuentaCerrada
	stored.SaldoCierre = c.SaldoCierre
	stored.MetodoPagoCierre = c.MetodoPagoCierre
	stored.CerradaPor = c.CerradaPor
	stored.FechaCierre = c.FechaCierre
	stored.Version++
	c.Version++
	return nil
}

func (r *memCuentaRepo) CountAbiertasPorTipo(_ context.Context) (map[model.TipoAtencion]int64, error) {
	out := map[model.TipoAtencion]int64{}
	for _, c := range r.byID {
		if c.Estado == model.CuentaAbierta {
			out[c.TipoAtencion]++
		}
	}
	return out, nil
}

var _ repository.CuentaRepository = (*memCuentaRepo)(nil)

// ── cuentas por cobrar ────────────────────────────────────────────────────────

type memCPCRepo struct {
	byID map[uuid.UUID]*model.CuentaPorCobrar
	// afterLock simulates a concurrent writer between the read and the save.
	afterLock func(stored *model.CuentaPorCobrar)
}

func newMemCPCRepo() *memCPCRepo {
	return &memCPCRepo{byID: map[uuid.UUID]*model.CuentaPorCobrar{}}
}

func loadCPC(c *model.CuentaPorCobrar, conPagos bool) *model.CuentaPorCobrar {
	cp := *c
	cp.Pagos = nil
	if conPagos {
		cp.Pagos = append([]model.PagoCPC(nil), c.Pagos...)
	}
	return &cp
}

func copyCPC(c *model.CuentaPorCobrar) *model.CuentaPorCobrar { return loadCPC(c, true) }

func (r *memCPCRepo) DB() *gorm.DB { return nil }

func (r *memCPCRepo) CreateTx(_ context.Context, _ *gorm.DB, c *model.CuentaPorCobrar) error {
	r.byID[c.ID] = copyCPC(c)
	return nil
}

func (r *memCPCRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	return copyCPC(c), nil
}

// FindByIDForUpdateTx preloads Pagos, as cpcRepo does.
func (r *memCPCRepo) FindByIDForUpdateTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CuentaPorCobrar, error) {
	stored, ok := r.byID[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	c := loadCPC(stored, true)
	if r.afterLock != nil {
		r.afterLock(stored)
	}
	return c, nil
}

func (r *memCPCRepo) SaveTx(_ context.Context, _ *gorm.DB, c *model.CuentaPorCobrar) error {
	stored := r.byID[c.ID]
	if stored.Version != c.Version {
		return apierror.ErrConflictoConcurrencia
	}
	stored.MontoPagado = c.MontoPagado
	stored.MontoPendiente = c.MontoPendiente
	stored.Estado = c.Estado
	stored.UpdatedAt = c.UpdatedAt
	stored.Version++
	c.Version++
	return nil
}

func (r *memCPCRepo) CreatePagoTx(_ context.Context, _ *gorm.DB, p *model.PagoCPC) error {
	c := r.byID[p.CPCID]
	c.Pagos = append(c.Pagos, *p)
	return nil
}

func (r *memCPCRepo) List(_ context.Context, f repository.CPCFilter) ([]model.CuentaPorCobrar, int64, error) {
	var out []model.CuentaPorCobrar
	for _, c := range r.byID {
		if f.Estado != "" && c.Estado != f.Estado {
			continue
		}
		if f.PacienteID != nil && c.PacienteID != *f.PacienteID {
			continue
		}
		out = append(out, *copyCPC(c))
	}
	return out, int64(len(out)), nil
}

func (r *memCPCRepo) ListPorPeriodo(_ context.Context, desde, hasta time.Time) ([]model.CuentaPorCobrar, error) {
	var out []model.CuentaPorCobrar
	for _, c := range r.byID {
		if !c.FechaCierreCuenta.Before(desde) && c.FechaCierreCuenta.Before(hasta) {
			out = append(out, *copyCPC(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FechaCierreCuenta.Before(out[j].FechaCierreCuenta) })
	return out, nil
}

var _ repository.CPCRepository = (*memCPCRepo)(nil)

// ── devoluciones ──────────────────────────────────────────────────────────────

type memDevolucionRepo struct {
	byID    map[uuid.UUID]*model.Devolucion
	motivos map[int]*model.MotivoDevolucion
	seq     int64
	// beforeTransicion simulates another request committing first.
	beforeTransicion func(stored *model.Devolucion)
}

func newMemDevolucionRepo() *memDevolucionRepo {
	return &memDevolucionRepo{
		byID: map[uuid.UUID]*model.Devolucion{},
		motivos: map[int]*model.MotivoDevolucion{
			1: {ID: 1, Nombre: "Medicamento no administrado", Activo: true},
			2: {ID: 2, Nombre: "Cobro duplicado", Activo: true},
			9: {ID: 9, Nombre: "Motivo retirado", Activo: false},
		},
	}
}

func copyDevolucion(d *model.Devolucion) *model.Devolucion {
	cp := *d
	cp.Productos = append([]model.ProductoDevuelto(nil), d.Productos...)
	return &cp
}

func (r *memDevolucionRepo) DB() *gorm.DB { return nil }

func (r *memDevolucionRepo) CreateTx(_ context.Context, _ *gorm.DB, d *model.Devolucion) error {
	r.byID[d.ID] = copyDevolucion(d)
	return nil
}

func (r *memDevolucionRepo) NextNumeroTx(_ context.Context, _ *gorm.DB) (string, error) {
	r.seq++
	return model.FormatNumeroDevolucion(r.seq), nil
}

func (r *memDevolucionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Devolucion, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	return copyDevolucion(d), nil
}

func (r *memDevolucionRepo) List(_ context.Context, f repository.DevolucionFilter) ([]model.Devolucion, int64, error) {
	var out []model.Devolucion
	for _, d := range r.byID {
		if f.Estado != "" && d.Estado != f.Estado {
			continue
		}
		if f.CuentaID != nil && d.CuentaID != *f.CuentaID {
			continue
		}
		out = append(out, *copyDevolucion(d))
	}
	return out, int64(len(out)), nil
}

func (r *memDevolucionRepo) ListActivasPorCuentaTx(_ context.Context, _ *gorm.DB, cuentaID uuid.UUID) ([]model.Devolucion, error) {
	var out []model.Devolucion
	for _, d := range r.byID {
		if d.CuentaID == cuentaID && d.Estado.Activa() {
			out = append(out, *copyDevolucion(d))
		}
	}
	return out, nil
}

func (r *memDevolucionRepo) TransicionTx(_ context.Context, _ *gorm.DB, d *model.Devolucion, desde model.EstadoDevolucion) error {
	stored := r.byID[d.ID]
	if r.beforeTransicion != nil {
		r.beforeTransicion(stored)
	}
	if stored.Estado != desde {
		return apierror.ErrTransicionInvalida
	}
	r.byID[d.ID] = copyDevolucion(d)
	return nil
}

func (r *memDevolucionRepo) FindMotivo(_ context.Context, id int) (*model.MotivoDevolucion, error) {
	m, ok := r.motivos[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	cp := *m
	return &cp, nil
}

func (r *memDevolucionRepo) ListMotivos(_ context.Context) ([]model.MotivoDevolucion, error) {
	var out []model.MotivoDevolucion
	for _, m := range r.motivos {
		if m.Activo {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ repository.DevolucionRepository = (*memDevolucionRepo)(nil)

// ── caja ──────────────────────────────────────────────────────────────────────

type memCajaRepo struct {
	sesiones    map[uuid.UUID]*model.SesionCaja
	movimientos []model.MovimientoCaja

	// beforeLock runs ahead of LockSesionAbiertaTx, standing in for a
	// concurrent arqueo that commits first.
	beforeLock func(*model.SesionCaja)
}

func newMemCajaRepo() *memCajaRepo {
	return &memCajaRepo{sesiones: map[uuid.UUID]*model.SesionCaja{}}
}

func (r *memCajaRepo) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

func (r *memCajaRepo) FindSesionAbiertaPorCaja(_ context.Context, numeroCaja int) (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if s.NumeroCaja == numeroCaja && s.Estado == sesionAbierta {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apierror.ErrNoEncontrado
}

func (r *memCajaRepo) FindSesionAbiertaPorUsuario(_ context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	for _, s := range r.sesiones {
		if s.UsuarioID == usuarioID && s.Estado == sesionAbierta {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apierror.ErrNoEncontrado
}

func (r *memCajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := r.sesiones[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	cp := *s
	return &cp, nil
}

func (r *memCajaRepo) DB() *gorm.DB { return nil }

func (r *memCajaRepo) LockSesionAbiertaTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := r.sesiones[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	if r.beforeLock != nil {
		r.beforeLock(s)
	}
	if s.Estado != sesionAbierta {
		return nil, apierror.ErrNoEncontrado
	}
	cp := *s
	return &cp, nil
}

func (r *memCajaRepo) UpdateSesion(_ context.Context, s *model.SesionCaja) error {
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

func (r *memCajaRepo) UpdateSesionTx(ctx context.Context, _ *gorm.DB, s *model.SesionCaja) error {
	return r.UpdateSesion(ctx, s)
}

func (r *memCajaRepo) CreateMovimiento(_ context.Context, m *model.MovimientoCaja) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *memCajaRepo) CreateMovimientoTx(ctx context.Context, _ *gorm.DB, m *model.MovimientoCaja) error {
	return r.CreateMovimiento(ctx, m)
}

func (r *memCajaRepo) ListMovimientos(_ context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	var out []model.MovimientoCaja
	for _, m := range r.movimientos {
		if m.SesionCajaID == sesionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memCajaRepo) SumMovimientosByMetodo(_ context.Context, sesionID uuid.UUID) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, m := range r.movimientos {
		if m.SesionCajaID != sesionID {
			continue
		}
		metodo := string(model.MetodoEfectivo)
		if m.MetodoPago != nil {
			metodo = *m.MetodoPago
		}
		out[metodo] = out[metodo].Add(m.Monto)
	}
	return out, nil
}

var _ repository.CajaRepository = (*memCajaRepo)(nil)

// ── productos / stock ─────────────────────────────────────────────────────────

type memProductoRepo struct {
	byID map[uuid.UUID]*model.Producto
}

func (r *memProductoRepo) DB() *gorm.DB { return nil }

func (r *memProductoRepo) Create(_ context.Context, p *model.Producto) error {
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *memProductoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, apierror.ErrNoEncontrado
	}
	cp := *p
	return &cp, nil
}

func (r *memProductoRepo) FindByCodigo(_ context.Context, codigo string) (*model.Producto, error) {
	for _, p := range r.byID {
		if p.Codigo == codigo {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apierror.ErrNoEncontrado
}

func (r *memProductoRepo) FindByIDForUpdateTx(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	return r.FindByID(ctx, id)
}

func (r *memProductoRepo) UpdateStockTx(_ context.Context, _ *gorm.DB, id uuid.UUID, delta int) error {
	r.byID[id].StockActual += delta
	return nil
}

var _ repository.ProductoRepository = (*memProductoRepo)(nil)

type memMovStockRepo struct {
	movimientos []model.MovimientoStock
}

func (r *memMovStockRepo) CreateTx(_ context.Context, _ *gorm.DB, m *model.MovimientoStock) error {
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *memMovStockRepo) List(_ context.Context, f repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	var out []model.MovimientoStock
	for _, m := range r.movimientos {
		if f.ProductoID != nil && m.ProductoID != *f.ProductoID {
			continue
		}
		if f.Tipo != "" && m.Tipo != f.Tipo {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

// ── jobs ──────────────────────────────────────────────────────────────────────

type fakeJobs struct {
	notificaciones []worker.NotificacionJobPayload
	comprobantes   []worker.ComprobanteJobPayload
}

func (f *fakeJobs) EnqueueNotificacion(_ context.Context, p worker.NotificacionJobPayload) error {
	f.notificaciones = append(f.notificaciones, p)
	return nil
}

func (f *fakeJobs) EnqueueComprobante(_ context.Context, p worker.ComprobanteJobPayload) error {
	f.comprobantes = append(f.comprobantes, p)
	return nil
}

// ── environment ───────────────────────────────────────────────────────────────

var (
	admin      = authz.Actor{UsuarioID: uuid.New(), Rol: authz.RolAdministrador}
	cajero     = authz.Actor{UsuarioID: uuid.New(), Rol: authz.RolCajero}
	otroCajero = authz.Actor{UsuarioID: uuid.New(), Rol: authz.RolCajero}
	enfermero  = authz.Actor{UsuarioID: uuid.New(), Rol: authz.RolEnfermero}
)

type testEnv struct {
	now time.Time

	cuentas   *memCuentaRepo
	cpcs      *memCPCRepo
	devs      *memDevolucionRepo
	cajaRepo  *memCajaRepo
	productos *memProductoRepo
	stock     *memMovStockRepo
	jobs      *fakeJobs

	caja       CajaService
	cuenta     CuentaService
	cierre     CierreService
	cpc        CPCService
	devolucion DevolucionService
	catalogo   ProductoService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		now:       time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		cuentas:   newMemCuentaRepo(),
		cpcs:      newMemCPCRepo(),
		devs:      newMemDevolucionRepo(),
		cajaRepo:  newMemCajaRepo(),
		productos: &memProductoRepo{byID: map[uuid.UUID]*model.Producto{}},
		stock:     &memMovStockRepo{},
		jobs:      &fakeJobs{},
	}
	clock := func() time.Time { return env.now }
	inventario := NewInventarioService(env.productos, env.stock)
	env.caja = NewCajaService(env.cajaRepo, clock)
	env.cuenta = NewCuentaService(env.cuentas, env.productos, inventario, env.caja, nil, 0, clock)
	env.cierre = NewCierreService(env.cuentas, env.cpcs, env.jobs, nil, clock)
	env.cpc = NewCPCService(env.cpcs, env.caja, nil, clock)
	env.catalogo = NewProductoService(env.productos, env.stock, nil)
	env.devolucion = NewDevolucionService(env.devs, env.cuentas, env.caja, inventario, env.jobs, nil, 24*time.Hour, clock)
	return env
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }
