package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cuentaCerrada is a paid and closed account with 1500 of services and four
// units of a 250 product: total 2500.
type cuentaCerrada struct {
	id            uuid.UUID
	productoID    uuid.UUID
	servicioTxID  string
	productoTxID  string
	stockOriginal int
}

func nuevaCuentaCerrada(t *testing.T, env *testEnv) cuentaCerrada {
	t.Helper()
	ctx := context.Background()
	id := abrirCuenta(t, env, "hospitalizacion")
	productoID := nuevoProducto(env, "250.00", 20)
	cargarServicio(t, env, id, "1500.00")
	resp := cargarProducto(t, env, id, productoID, 4)
	require.True(t, dec("2500").Equal(resp.TotalCuenta))

	_, err := env.cuenta.RegistrarPagoParcial(ctx, cajero, id, dto.RegistrarPagoCuentaRequest{Monto: dec("2500"), Metodo: "tarjeta"})
	require.NoError(t, err)
	_, err = env.cierre.Cerrar(ctx, cajero, id, dto.CerrarCuentaRequest{})
	require.NoError(t, err)

	return cuentaCerrada{
		id:            id,
		productoID:    productoID,
		servicioTxID:  resp.Transacciones[0].ID,
		productoTxID:  resp.Transacciones[1].ID,
		stockOriginal: env.productos.byID[productoID].StockActual,
	}
}

func solicitudServicio(cuentaID uuid.UUID, monto string) dto.CrearDevolucionRequest {
	return dto.CrearDevolucionRequest{
		CuentaID: cuentaID.String(),
		Tipo:     string(model.DevolucionServicio),
		MotivoID: 2,
		Monto:    decPtr(monto),
	}
}

func solicitudProducto(c cuentaCerrada, cantidad int, regresa bool) dto.CrearDevolucionRequest {
	return dto.CrearDevolucionRequest{
		CuentaID: c.id.String(),
		Tipo:     string(model.DevolucionProducto),
		MotivoID: 1,
		Productos: []dto.ProductoDevueltoRequest{{
			TransaccionID:     c.productoTxID,
			CantidadDevuelta:  cantidad,
			EstadoProducto:    "bueno",
			RegresaInventario: regresa,
		}},
	}
}

func crearDevolucion(t *testing.T, env *testEnv, req dto.CrearDevolucionRequest) uuid.UUID {
	t.Helper()
	resp, err := env.devolucion.Crear(context.Background(), cajero, req)
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

// ── Crear ─────────────────────────────────────────────────────────────────────

func TestCrearDevolucion_Servicio(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)

	resp, err := env.devolucion.Crear(context.Background(), cajero, solicitudServicio(c.id, "1200.00"))
	require.NoError(t, err)
	assert.Equal(t, "DEV-000001", resp.Numero)
	assert.Equal(t, string(model.DevolucionPendiente), resp.Estado)
	assert.True(t, dec("1200").Equal(resp.Monto))
	assert.Equal(t, cajero.UsuarioID.String(), resp.CajeroSolicita)
	assert.Equal(t, "Cobro duplicado", resp.Motivo)

	require.Len(t, env.jobs.notificaciones, 1)
	n := env.jobs.notificaciones[0]
	assert.Equal(t, worker.NotificacionDevolucionSolicitada, n.Tipo)
	assert.Equal(t, resp.ID, n.ReferenciaID)
	assert.Contains(t, n.Asunto, "DEV-000001")

	second, err := env.devolucion.Crear(context.Background(), cajero, solicitudServicio(c.id, "100.00"))
	require.NoError(t, err)
	assert.Equal(t, "DEV-000002", second.Numero)
}

func TestCrearDevolucion_AccountMustBeClosed(t *testing.T) {
	env := newTestEnv()
	id := abrirCuenta(t, env, "urgencias")
	cargarServicio(t, env, id, "500.00")

	_, err := env.devolucion.Crear(context.Background(), cajero, solicitudServicio(id, "100"))
	assert.ErrorIs(t, err, apierror.ErrCuentaNoCerrada)
}

func TestCrearDevolucion_CashierWindow(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)

	env.advance(24 * time.Hour)
	_, err := env.devolucion.Crear(context.Background(), cajero, solicitudServicio(c.id, "100"))
	require.NoError(t, err, "the window boundary itself is still inside")

	env.advance(time.Minute)
	_, err = env.devolucion.Crear(context.Background(), cajero, solicitudServicio(c.id, "100"))
	assert.ErrorIs(t, err, apierror.ErrSolicitudVencida)

	_, err = env.devolucion.Crear(context.Background(), admin, solicitudServicio(c.id, "100"))
	assert.NoError(t, err)
}

func TestCrearDevolucion_Amounts(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	for _, monto := range []string{"0", "-50"} {
		_, err := env.devolucion.Crear(ctx, cajero, solicitudServicio(c.id, monto))
		assert.ErrorIs(t, err, apierror.ErrMontoInvalido, monto)
	}

	req := solicitudServicio(c.id, "1")
	req.Monto = nil
	_, err := env.devolucion.Crear(ctx, cajero, req)
	assert.ErrorIs(t, err, apierror.ErrMontoInvalido)

	// servicio refunds are bounded by the services total
	_, err = env.devolucion.Crear(ctx, cajero, solicitudServicio(c.id, "1500.01"))
	assert.ErrorIs(t, err, apierror.ErrMontoExcedeOriginal)

	_, err = env.devolucion.Crear(ctx, cajero, dto.CrearDevolucionRequest{
		CuentaID: c.id.String(), Tipo: "total_cuenta", MotivoID: 1, Monto: decPtr("2500.01"),
	})
	assert.ErrorIs(t, err, apierror.ErrMontoExcedeOriginal)
	assert.Empty(t, env.devs.byID)
}

func TestCrearDevolucion_ActiveRefundsCountAgainstTotal(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	crearDevolucion(t, env, dto.CrearDevolucionRequest{
		CuentaID: c.id.String(), Tipo: "total_cuenta", MotivoID: 1, Monto: decPtr("2000"),
	})
	_, err := env.devolucion.Crear(ctx, cajero, solicitudServicio(c.id, "600"))
	assert.ErrorIs(t, err, apierror.ErrMontoExcedeOriginal)

	_, err = env.devolucion.Crear(ctx, cajero, solicitudServicio(c.id, "500"))
	assert.NoError(t, err)
}

func TestCrearDevolucion_RejectedRefundsFreeTheAmount(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	id := crearDevolucion(t, env, dto.CrearDevolucionRequest{
		CuentaID: c.id.String(), Tipo: "total_cuenta", MotivoID: 1, Monto: decPtr("2500"),
	})
	_, err := env.devolucion.Rechazar(ctx, admin, id, dto.MotivoRequest{Motivo: "sin soporte"})
	require.NoError(t, err)

	_, err = env.devolucion.Crear(ctx, cajero, solicitudServicio(c.id, "1500"))
	assert.NoError(t, err)
}

func TestCrearDevolucion_ProductLines(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	resp, err := env.devolucion.Crear(ctx, cajero, solicitudProducto(c, 3, true))
	require.NoError(t, err)
	assert.True(t, dec("750").Equal(resp.Monto), "defaults to the returned lines")
	require.Len(t, resp.Productos, 1)
	assert.Equal(t, 4, resp.Productos[0].CantidadOriginal)
	assert.True(t, dec("250").Equal(resp.Productos[0].PrecioUnitario))
	assert.Equal(t, c.productoID.String(), *resp.Productos[0].ProductoID)

	// 3 already requested out of 4 charged
	_, err = env.devolucion.Crear(ctx, cajero, solicitudProducto(c, 2, false))
	assert.ErrorIs(t, err, apierror.ErrCantidadInvalida)

	_, err = env.devolucion.Crear(ctx, cajero, solicitudProducto(c, 0, false))
	assert.ErrorIs(t, err, apierror.ErrCantidadInvalida)

	_, err = env.devolucion.Crear(ctx, cajero, solicitudProducto(c, 1, false))
	assert.NoError(t, err)
}

func TestCrearDevolucion_ProductLineRules(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	danado := solicitudProducto(c, 1, true)
	danado.Productos[0].EstadoProducto = "danado"
	_, err := env.devolucion.Crear(ctx, cajero, danado)
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)

	servicioComoProducto := solicitudProducto(c, 1, false)
	servicioComoProducto.Productos[0].TransaccionID = c.servicioTxID
	_, err = env.devolucion.Crear(ctx, cajero, servicioComoProducto)
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)

	ajena := solicitudProducto(c, 1, false)
	ajena.Productos[0].TransaccionID = uuid.NewString()
	_, err = env.devolucion.Crear(ctx, cajero, ajena)
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)

	sinLineas := solicitudProducto(c, 1, false)
	sinLineas.Productos = nil
	_, err = env.devolucion.Crear(ctx, cajero, sinLineas)
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)

	servicioConLineas := solicitudServicio(c.id, "100")
	servicioConLineas.Productos = solicitudProducto(c, 1, false).Productos
	_, err = env.devolucion.Crear(ctx, cajero, servicioConLineas)
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)

	// explicit amount above the referenced line's original subtotal
	excede := solicitudProducto(c, 1, false)
	excede.Monto = decPtr("1000.01")
	_, err = env.devolucion.Crear(ctx, cajero, excede)
	assert.ErrorIs(t, err, apierror.ErrMontoExcedeOriginal)
}

func TestCrearDevolucion_RestockNeedsCatalogProduct(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	// a product charge captured without a catalog link
	stored := env.cuentas.byID[c.id]
	for i := range stored.Transacciones {
		if stored.Transacciones[i].ID.String() == c.productoTxID {
			stored.Transacciones[i].ProductoID = nil
		}
	}

	_, err := env.devolucion.Crear(ctx, cajero, solicitudProducto(c, 1, true))
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)
	assert.Empty(t, env.devs.byID)

	resp, err := env.devolucion.Crear(ctx, cajero, solicitudProducto(c, 1, false))
	require.NoError(t, err)
	assert.Nil(t, resp.Productos[0].ProductoID)
}

func TestCrearDevolucion_AmountCheckedBeforeLines(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()

	// bad on both counts: negative amount and more units than charged
	req := solicitudProducto(c, 9, false)
	req.Monto = decPtr("-10")
	_, err := env.devolucion.Crear(ctx, cajero, req)
	assert.ErrorIs(t, err, apierror.ErrMontoInvalido)

	req.Monto = nil
	_, err = env.devolucion.Crear(ctx, cajero, req)
	assert.ErrorIs(t, err, apierror.ErrCantidadInvalida)

	servicio := solicitudServicio(c.id, "0")
	servicio.Productos = solicitudProducto(c, 1, false).Productos
	_, err = env.devolucion.Crear(ctx, cajero, servicio)
	assert.ErrorIs(t, err, apierror.ErrMontoInvalido)
}

func TestCrearDevolucion_Motivo(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)

	for _, motivoID := range []int{9, 42} {
		req := solicitudServicio(c.id, "100")
		req.MotivoID = motivoID
		_, err := env.devolucion.Crear(context.Background(), cajero, req)
		assert.ErrorIs(t, err, apierror.ErrMotivoInvalido)
	}
}

func TestCrearDevolucion_Forbidden(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)

	_, err := env.devolucion.Crear(context.Background(), enfermero, solicitudServicio(c.id, "100"))
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)
}

// ── Transiciones ──────────────────────────────────────────────────────────────

func TestAutorizarDevolucion(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudServicio(c.id, "300"))

	_, err := env.devolucion.Autorizar(ctx, cajero, id, dto.AutorizarDevolucionRequest{})
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)

	resp, err := env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{Observaciones: strPtr("verificado")})
	require.NoError(t, err)
	assert.Equal(t, string(model.DevolucionAutorizada), resp.Estado)
	assert.Equal(t, admin.UsuarioID.String(), *resp.Autorizador)
	require.NotNil(t, resp.FechaAutorizacion)

	_, err = env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	assert.ErrorIs(t, err, apierror.ErrTransicionInvalida)

	_, err = env.devolucion.Autorizar(ctx, admin, uuid.New(), dto.AutorizarDevolucionRequest{})
	assert.ErrorIs(t, err, apierror.ErrNoEncontrado)
}

func TestAutorizarDevolucion_LosesRace(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	id := crearDevolucion(t, env, solicitudServicio(c.id, "300"))

	env.devs.beforeTransicion = func(stored *model.Devolucion) { stored.Estado = model.DevolucionCancelada }
	_, err := env.devolucion.Autorizar(context.Background(), admin, id, dto.AutorizarDevolucionRequest{})
	assert.ErrorIs(t, err, apierror.ErrTransicionInvalida)
	assert.Equal(t, model.DevolucionCancelada, env.devs.byID[id].Estado)
}

func TestRechazarDevolucion(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudServicio(c.id, "300"))

	_, err := env.devolucion.Rechazar(ctx, admin, id, dto.MotivoRequest{Motivo: "  "})
	assert.ErrorIs(t, err, apierror.ErrMotivoRequerido)

	_, err = env.devolucion.Rechazar(ctx, cajero, id, dto.MotivoRequest{Motivo: "no procede"})
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)

	resp, err := env.devolucion.Rechazar(ctx, admin, id, dto.MotivoRequest{Motivo: "no procede"})
	require.NoError(t, err)
	assert.Equal(t, string(model.DevolucionRechazada), resp.Estado)
	assert.Equal(t, "no procede", *resp.MotivoRechazo)

	_, err = env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	assert.ErrorIs(t, err, apierror.ErrTransicionInvalida)
}

func TestCancelarDevolucion(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	propia := crearDevolucion(t, env, solicitudServicio(c.id, "100"))
	ajena := crearDevolucion(t, env, solicitudServicio(c.id, "100"))

	_, err := env.devolucion.Cancelar(ctx, cajero, propia, dto.MotivoRequest{})
	assert.ErrorIs(t, err, apierror.ErrMotivoRequerido)

	_, err = env.devolucion.Cancelar(ctx, otroCajero, propia, dto.MotivoRequest{Motivo: "error de captura"})
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)

	resp, err := env.devolucion.Cancelar(ctx, cajero, propia, dto.MotivoRequest{Motivo: "error de captura"})
	require.NoError(t, err)
	assert.Equal(t, string(model.DevolucionCancelada), resp.Estado)

	resp, err = env.devolucion.Cancelar(ctx, admin, ajena, dto.MotivoRequest{Motivo: "duplicada"})
	require.NoError(t, err)
	assert.Equal(t, string(model.DevolucionCancelada), resp.Estado)

	_, err = env.devolucion.Cancelar(ctx, cajero, propia, dto.MotivoRequest{Motivo: "otra vez"})
	assert.ErrorIs(t, err, apierror.ErrTransicionInvalida)
}

// ── Procesar ──────────────────────────────────────────────────────────────────

func TestProcesarDevolucion_RequiresAuthorizationAndRegister(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudServicio(c.id, "300"))
	req := dto.ProcesarDevolucionRequest{MetodoPago: "efectivo"}

	_, err := env.devolucion.Procesar(ctx, cajero, id, req)
	assert.ErrorIs(t, err, apierror.ErrTransicionInvalida)

	_, err = env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	require.NoError(t, err)

	_, err = env.devolucion.Procesar(ctx, cajero, id, req)
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)

	_, err = env.devolucion.Procesar(ctx, enfermero, id, req)
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)

	_, err = env.devolucion.Procesar(ctx, cajero, id, dto.ProcesarDevolucionRequest{MetodoPago: "vales"})
	assert.ErrorIs(t, err, apierror.ErrMetodoPagoInvalido)

	assert.Equal(t, model.DevolucionAutorizada, env.devs.byID[id].Estado)
	assert.Empty(t, env.cajaRepo.movimientos)
}

func TestProcesarDevolucion(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudProducto(c, 3, true))
	_, err := env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	require.NoError(t, err)
	sesion, err := env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("2000")})
	require.NoError(t, err)

	resp, err := env.devolucion.Procesar(ctx, cajero, id, dto.ProcesarDevolucionRequest{MetodoPago: "efectivo"})
	require.NoError(t, err)
	assert.Equal(t, string(model.DevolucionProcesada), resp.Devolucion.Estado)
	assert.Equal(t, sesion.SesionCajaID, resp.Egreso.SesionCajaID)
	assert.True(t, dec("750").Equal(resp.Egreso.Monto))
	require.NotNil(t, resp.Devolucion.FechaProceso)

	// egress in the cashier's session
	require.Len(t, env.cajaRepo.movimientos, 1)
	egreso := env.cajaRepo.movimientos[0]
	assert.Equal(t, model.MovimientoDevolucion, egreso.Tipo)
	assert.True(t, dec("-750").Equal(egreso.Monto))
	assert.Equal(t, id, *egreso.ReferenciaID)

	// account adjustment without touching the charge totals
	cuenta, err := env.cuentas.FindByID(ctx, c.id)
	require.NoError(t, err)
	assert.True(t, dec("750").Equal(cuenta.TotalDevuelto))
	assert.True(t, dec("2500").Equal(cuenta.TotalCuenta))
	last := cuenta.Transacciones[len(cuenta.Transacciones)-1]
	assert.Equal(t, model.TransaccionDevolucion, last.Tipo)
	assert.True(t, dec("-750").Equal(last.Subtotal))

	// stock re-entry
	assert.Equal(t, c.stockOriginal+3, env.productos.byID[c.productoID].StockActual)
	mov := env.stock.movimientos[len(env.stock.movimientos)-1]
	assert.Equal(t, StockDevolucion, mov.Tipo)
	assert.Equal(t, 3, mov.Cantidad)

	require.Len(t, env.jobs.comprobantes, 1)
	assert.Equal(t, id.String(), env.jobs.comprobantes[0].DevolucionID)

	_, err = env.devolucion.Procesar(ctx, cajero, id, dto.ProcesarDevolucionRequest{MetodoPago: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrTransicionInvalida)
}

func TestProcesarDevolucion_RegisterClosedByArqueo(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudServicio(c.id, "300"))
	_, err := env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	require.NoError(t, err)
	_, err = env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("1000")})
	require.NoError(t, err)

	// the arqueo commits after Procesar found the session open
	env.cajaRepo.beforeLock = func(s *model.SesionCaja) { s.Estado = sesionCerrada }

	_, err = env.devolucion.Procesar(ctx, cajero, id, dto.ProcesarDevolucionRequest{MetodoPago: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)
	assert.Empty(t, env.cajaRepo.movimientos)
	assert.Equal(t, model.DevolucionAutorizada, env.devs.byID[id].Estado)
	assert.Empty(t, env.jobs.comprobantes)
}

func TestProcesarDevolucion_RestockLineWithoutProduct(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudProducto(c, 2, true))
	_, err := env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	require.NoError(t, err)
	_, err = env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("1000")})
	require.NoError(t, err)

	// stored before lines without a catalog product were rejected at request time
	env.devs.byID[id].Productos[0].ProductoID = nil

	_, err = env.devolucion.Procesar(ctx, cajero, id, dto.ProcesarDevolucionRequest{MetodoPago: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrLineaInvalida)
	assert.Empty(t, env.cajaRepo.movimientos)
	assert.Equal(t, model.DevolucionAutorizada, env.devs.byID[id].Estado)
	assert.Equal(t, c.stockOriginal, env.productos.byID[c.productoID].StockActual)
}

func TestProcesarDevolucion_WithoutStockReturn(t *testing.T) {
	env := newTestEnv()
	c := nuevaCuentaCerrada(t, env)
	ctx := context.Background()
	id := crearDevolucion(t, env, solicitudProducto(c, 1, false))
	_, err := env.devolucion.Autorizar(ctx, admin, id, dto.AutorizarDevolucionRequest{})
	require.NoError(t, err)
	_, err = env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("0")})
	require.NoError(t, err)

	_, err = env.devolucion.Procesar(ctx, cajero, id, dto.ProcesarDevolucionRequest{MetodoPago: "transferencia"})
	require.NoError(t, err)
	assert.Equal(t, c.stockOriginal, env.productos.byID[c.productoID].StockActual)
}

func TestMotivos_OnlyActive(t *testing.T) {
	env := newTestEnv()
	motivos, err := env.devolucion.Motivos(context.Background())
	require.NoError(t, err)
	require.Len(t, motivos, 2)
	assert.Equal(t, 1, motivos[0].ID)
}

func TestDevolucion_MalformedCuentaID(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.devolucion.Crear(ctx, cajero, solicitudServicio(uuid.New(), "100"))
	assert.ErrorIs(t, err, apierror.ErrNoEncontrado)

	req := solicitudServicio(uuid.New(), "100")
	req.CuentaID = "no-es-uuid"
	_, err = env.devolucion.Crear(ctx, cajero, req)
	require.ErrorIs(t, err, apierror.ErrIDInvalido)
	de, ok := apierror.AsDomain(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, de.Status())

	_, err = env.devolucion.Listar(ctx, dto.DevolucionFilter{CuentaID: "no-es-uuid", Page: 1, Limit: 20})
	assert.ErrorIs(t, err, apierror.ErrIDInvalido)
}
