package service

import (
	"context"
	"testing"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cajaConCobro opens a register with 1000 of float and receives a 300 cash
// payment on an account: 1300 expected in cash.
func cajaConCobro(t *testing.T, env *testEnv) string {
	t.Helper()
	ctx := context.Background()
	sesion, err := env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("1000")})
	require.NoError(t, err)

	cuentaID := abrirCuenta(t, env, "ambulatoria")
	cargarServicio(t, env, cuentaID, "300.00")
	_, err = env.cuenta.RegistrarPagoParcial(ctx, cajero, cuentaID, dto.RegistrarPagoCuentaRequest{Monto: dec("300"), Metodo: "efectivo"})
	require.NoError(t, err)
	return sesion.SesionCajaID
}

func TestAbrirCaja_Duplicates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("-1")})
	assert.ErrorIs(t, err, apierror.ErrMontoInvalido)

	_, err = env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("500")})
	require.NoError(t, err)

	_, err = env.caja.Abrir(ctx, otroCajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("500")})
	assert.ErrorIs(t, err, apierror.ErrCajaYaAbierta, "same register")

	_, err = env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 2, MontoInicial: dec("500")})
	assert.ErrorIs(t, err, apierror.ErrCajaYaAbierta, "same user")
}

func TestSesionAbierta_None(t *testing.T) {
	env := newTestEnv()
	_, err := env.caja.SesionAbierta(context.Background(), cajero.UsuarioID)
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)

	_, err = env.caja.GetActiva(context.Background(), cajero.UsuarioID)
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)
}

func TestMovimientoManual(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sesionID := cajaConCobro(t, env)

	err := env.caja.RegistrarMovimiento(ctx, cajero.UsuarioID, dto.MovimientoManualRequest{
		SesionCajaID: sesionID,
		Tipo:         model.MovimientoEgresoManual,
		MetodoPago:   "efectivo",
		Monto:        dec("100"),
		Descripcion:  "Compra de insumos de limpieza",
	})
	require.NoError(t, err)

	reporte, err := env.caja.ObtenerReporte(ctx, cajero, uuid.MustParse(sesionID))
	require.NoError(t, err)
	assert.True(t, dec("1200").Equal(reporte.MontoEsperado.Efectivo))
	assert.Len(t, reporte.Movimientos, 2)
	assert.True(t, dec("-100").Equal(reporte.Movimientos[1].Monto))

	// without sesion_caja_id the caller's open session is used
	require.NoError(t, env.caja.RegistrarMovimiento(ctx, cajero.UsuarioID, dto.MovimientoManualRequest{
		Tipo: model.MovimientoIngresoManual, MetodoPago: "efectivo", Monto: dec("50"), Descripcion: "Fondo adicional",
	}))

	err = env.caja.RegistrarMovimiento(ctx, otroCajero.UsuarioID, dto.MovimientoManualRequest{
		SesionCajaID: sesionID, Tipo: model.MovimientoEgresoManual, MetodoPago: "efectivo",
		Monto: dec("10"), Descripcion: "Egreso ajeno",
	})
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)
}

func TestObtenerReporte_OwnerOrAuditor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sesionID := uuid.MustParse(cajaConCobro(t, env))

	_, err := env.caja.ObtenerReporte(ctx, otroCajero, sesionID)
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)

	reporte, err := env.caja.ObtenerReporte(ctx, admin, sesionID)
	require.NoError(t, err)
	assert.Equal(t, 1, reporte.NumeroCaja)
}

func TestAbrirCaja_RequiresNumero(t *testing.T) {
	env := newTestEnv()
	_, err := env.caja.Abrir(context.Background(), cajero.UsuarioID, dto.AbrirCajaRequest{MontoInicial: dec("100")})
	assert.ErrorIs(t, err, apierror.ErrNumeroCajaRequerido)
}

func TestArqueo_Classification(t *testing.T) {
	cases := []struct {
		name      string
		declarado string
		want      string
	}{
		{"exacto", "1300", "normal"},
		{"sobrante chico", "1310", "normal"},
		{"faltante moderado", "1280", "advertencia"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			cajaConCobro(t, env)

			resp, err := env.caja.Arqueo(context.Background(), cajero.UsuarioID, dto.ArqueoRequest{
				Declaracion: dto.DeclaracionArqueo{Efectivo: dec(tc.declarado)},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Desvio.Clasificacion)
			assert.True(t, dec("1300").Equal(resp.MontoEsperado.Total))
			assert.Equal(t, "cerrada", resp.Estado)
		})
	}
}

func TestArqueo_CriticalNeedsObservations(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sesionID := cajaConCobro(t, env)
	req := dto.ArqueoRequest{Declaracion: dto.DeclaracionArqueo{Efectivo: dec("1000")}}

	_, err := env.caja.Arqueo(ctx, cajero.UsuarioID, req)
	assert.ErrorIs(t, err, apierror.ErrMotivoRequerido)

	req.Observaciones = strPtr("faltante reportado al supervisor")
	resp, err := env.caja.Arqueo(ctx, cajero.UsuarioID, req)
	require.NoError(t, err)
	assert.Equal(t, "critico", resp.Desvio.Clasificacion)
	assert.True(t, dec("-300").Equal(resp.Desvio.Monto))

	// the session is closed; a second count is refused
	req.SesionCajaID = sesionID
	_, err = env.caja.Arqueo(ctx, cajero.UsuarioID, req)
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)
}

func TestArqueo_SessionClosedMeanwhile(t *testing.T) {
	env := newTestEnv()
	cajaConCobro(t, env)

	// another arqueo on the same session committed first
	env.cajaRepo.beforeLock = func(s *model.SesionCaja) { s.Estado = sesionCerrada }

	_, err := env.caja.Arqueo(context.Background(), cajero.UsuarioID, dto.ArqueoRequest{
		Declaracion: dto.DeclaracionArqueo{Efectivo: dec("1300")},
	})
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)
}

func TestRegistrarMovimientoTx_RequiresOpenSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sesion, err := env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 1, MontoInicial: dec("0")})
	require.NoError(t, err)
	sesionID := uuid.MustParse(sesion.SesionCajaID)

	_, err = env.caja.Arqueo(ctx, cajero.UsuarioID, dto.ArqueoRequest{})
	require.NoError(t, err)

	err = env.caja.RegistrarMovimientoTx(ctx, nil, &model.MovimientoCaja{
		SesionCajaID: sesionID,
		Tipo:         model.MovimientoDevolucion,
		Monto:        dec("-100"),
		UsuarioID:    cajero.UsuarioID,
	})
	assert.ErrorIs(t, err, apierror.ErrSinCajaAbierta)
	assert.Empty(t, env.cajaRepo.movimientos)
}

func TestArqueo_MalformedSesionID(t *testing.T) {
	env := newTestEnv()
	cajaConCobro(t, env)

	_, err := env.caja.Arqueo(context.Background(), cajero.UsuarioID, dto.ArqueoRequest{SesionCajaID: "caja-1"})
	assert.ErrorIs(t, err, apierror.ErrIDInvalido)
}
