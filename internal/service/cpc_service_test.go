package service

import (
	"context"
	"testing"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCPC(env *testEnv, pacienteID uuid.UUID, nombre, original string, cierre time.Time) *model.CuentaPorCobrar {
	cuenta := &model.CuentaPaciente{ID: uuid.New(), PacienteID: pacienteID, PacienteNombre: nombre}
	c := model.NuevaCPC(cuenta, dec(original), "convenio", admin.UsuarioID, cierre)
	env.cpcs.byID[c.ID] = c
	return c
}

func TestCPCPago_PartialThenTotal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cpc := seedCPC(env, uuid.New(), "Jorge Ruiz", "2000.00", env.now)

	resp, err := env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("500"), Metodo: "efectivo"})
	require.NoError(t, err)
	assert.Equal(t, string(model.CPCPagadoParcial), resp.Estado)
	assert.True(t, dec("1500").Equal(resp.MontoPendiente))

	_, err = env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("1500.01"), Metodo: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrSobrepago)

	resp, err = env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("1500"), Metodo: "tarjeta"})
	require.NoError(t, err)
	assert.Equal(t, string(model.CPCPagadoTotal), resp.Estado)
	assert.True(t, resp.MontoPendiente.IsZero())
	assert.True(t, dec("2000").Equal(resp.MontoPagado))
	assert.Len(t, resp.Pagos, 2)

	_, err = env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("0.01"), Metodo: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrSobrepago)
}

func TestCPCPago_ResponseCarriesHistory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cpc := seedCPC(env, uuid.New(), "Marta Gil", "2500.00", env.now)

	_, err := env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("2000"), Metodo: "efectivo"})
	require.NoError(t, err)
	env.advance(time.Hour)
	resp, err := env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("500"), Metodo: "transferencia"})
	require.NoError(t, err)

	assert.Equal(t, string(model.CPCPagadoTotal), resp.Estado)
	assert.True(t, resp.MontoPendiente.IsZero())
	require.Len(t, resp.Pagos, 2)
	assert.True(t, dec("2000").Equal(resp.Pagos[0].Monto))
	assert.True(t, dec("500").Equal(resp.Pagos[1].Monto))
	assert.Len(t, env.cpcs.byID[cpc.ID].Pagos, 2)
}

func TestCPCPago_CentsDoNotDrift(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cpc := seedCPC(env, uuid.New(), "Ana", "0.30", env.now)

	for i := 0; i < 3; i++ {
		_, err := env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("0.10"), Metodo: "efectivo"})
		require.NoError(t, err)
	}
	stored := env.cpcs.byID[cpc.ID]
	assert.Equal(t, model.CPCPagadoTotal, stored.Estado)
	assert.True(t, stored.MontoPendiente.Equal(decimal.Zero))
}

func TestCPCPago_Rejections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cpc := seedCPC(env, uuid.New(), "Ana", "100.00", env.now)

	_, err := env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("-5"), Metodo: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrMontoInvalido)

	_, err = env.cpc.RegistrarPago(ctx, enfermero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("5"), Metodo: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrAutorizacionInsuficiente)

	_, err = env.cpc.RegistrarPago(ctx, cajero, uuid.New(), dto.RegistrarPagoCPCRequest{Monto: dec("5"), Metodo: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrNoEncontrado)
}

func TestCPCPago_ConcurrentWriterLoses(t *testing.T) {
	env := newTestEnv()
	cpc := seedCPC(env, uuid.New(), "Ana", "100.00", env.now)
	env.cpcs.afterLock = func(stored *model.CuentaPorCobrar) { stored.Version++ }

	_, err := env.cpc.RegistrarPago(context.Background(), cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("10"), Metodo: "efectivo"})
	assert.ErrorIs(t, err, apierror.ErrConflictoConcurrencia)
	assert.True(t, env.cpcs.byID[cpc.ID].MontoPagado.IsZero())
}

func TestCPCPago_RecordedInOpenRegister(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.caja.Abrir(ctx, cajero.UsuarioID, dto.AbrirCajaRequest{NumeroCaja: 2, MontoInicial: dec("0")})
	require.NoError(t, err)
	cpc := seedCPC(env, uuid.New(), "Ana", "100.00", env.now)

	_, err = env.cpc.RegistrarPago(ctx, cajero, cpc.ID, dto.RegistrarPagoCPCRequest{Monto: dec("40"), Metodo: "transferencia"})
	require.NoError(t, err)
	require.Len(t, env.cajaRepo.movimientos, 1)
	assert.Equal(t, model.MovimientoPagoCPC, env.cajaRepo.movimientos[0].Tipo)
}

func TestEstadisticas(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	dia := func(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC) }

	ana, beto, carla := uuid.New(), uuid.New(), uuid.New()
	seedCPC(env, ana, "Ana", "1000.00", dia(2))
	seedCPC(env, ana, "Ana", "500.00", dia(5))
	pagada := seedCPC(env, beto, "Beto", "1500.00", dia(1))
	seedCPC(env, carla, "Carla", "1500.00", dia(3))
	seedCPC(env, uuid.New(), "Fuera de periodo", "9999.00", time.Date(2025, 2, 27, 12, 0, 0, 0, time.UTC))

	_, err := env.cpc.RegistrarPago(ctx, cajero, pagada.ID, dto.RegistrarPagoCPCRequest{Monto: dec("1500"), Metodo: "efectivo"})
	require.NoError(t, err)

	resp, err := env.cpc.Estadisticas(ctx, dto.EstadisticasFilter{Desde: "2025-03-01", Hasta: "2025-03-10"})
	require.NoError(t, err)

	assert.Equal(t, 4, resp.TotalCPC)
	assert.True(t, dec("3000").Equal(resp.MontoPendiente))
	assert.True(t, dec("1500").Equal(resp.MontoRecuperado))
	assert.True(t, dec("0.3333").Equal(resp.TasaRecuperacion))
	assert.Equal(t, 3, resp.PorEstado["pendiente"])
	assert.Equal(t, 1, resp.PorEstado["pagado_total"])
	assert.Equal(t, 0, resp.PorEstado["pagado_parcial"])

	// Ana and Carla both owe 1500; Ana's earliest close (day 2) wins the tie
	require.Len(t, resp.PrincipalesDeudores, 2)
	assert.Equal(t, ana.String(), resp.PrincipalesDeudores[0].PacienteID)
	assert.Equal(t, 2, resp.PrincipalesDeudores[0].Cuentas)
	assert.Equal(t, carla.String(), resp.PrincipalesDeudores[1].PacienteID)
}

func TestEstadisticas_HastaIsInclusive(t *testing.T) {
	env := newTestEnv()
	seedCPC(env, uuid.New(), "Ana", "10.00", time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC))

	resp, err := env.cpc.Estadisticas(context.Background(), dto.EstadisticasFilter{Desde: "2025-03-10", Hasta: "2025-03-10"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalCPC)
}

func TestEstadisticas_EmptyPeriod(t *testing.T) {
	env := newTestEnv()
	resp, err := env.cpc.Estadisticas(context.Background(), dto.EstadisticasFilter{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", resp.Desde)
	assert.Equal(t, "2025-03-10", resp.Hasta)
	assert.True(t, resp.TasaRecuperacion.IsZero())
	assert.Empty(t, resp.PrincipalesDeudores)
}

func TestEstadisticas_InvalidPeriod(t *testing.T) {
	env := newTestEnv()
	_, err := env.cpc.Estadisticas(context.Background(), dto.EstadisticasFilter{Desde: "2025-03-10", Hasta: "2025-03-01"})
	assert.ErrorIs(t, err, apierror.ErrPeriodoInvalido)
}

func TestCPCListar_MalformedPacienteID(t *testing.T) {
	env := newTestEnv()
	_, err := env.cpc.Listar(context.Background(), dto.CPCFilter{PacienteID: "no-es-uuid", Page: 1, Limit: 50})
	assert.ErrorIs(t, err, apierror.ErrIDInvalido)
}
