package model

import (
	"errors"
	"testing"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstadoDevolucion_Siguiente(t *testing.T) {
	allowed := map[EstadoDevolucion]map[AccionDevolucion]EstadoDevolucion{
		DevolucionPendiente: {
			AccionAutorizar: DevolucionAutorizada,
			AccionRechazar:  DevolucionRechazada,
			AccionCancelar:  DevolucionCancelada,
		},
		DevolucionAutorizada: {AccionProcesar: DevolucionProcesada},
	}
	estados := []EstadoDevolucion{DevolucionPendiente, DevolucionAutorizada, DevolucionProcesada, DevolucionRechazada, DevolucionCancelada}
	acciones := []AccionDevolucion{AccionAutorizar, AccionRechazar, AccionCancelar, AccionProcesar}

	for _, e := range estados {
		for _, a := range acciones {
			next, err := e.Siguiente(a)
			if want, ok := allowed[e][a]; ok {
				require.NoError(t, err, "%s --%s-->", e, a)
				assert.Equal(t, want, next)
			} else {
				assert.True(t, errors.Is(err, apierror.ErrTransicionInvalida), "%s --%s--> should fail", e, a)
				assert.Equal(t, e, next)
			}
		}
	}
}

func TestEstadoDevolucion_Terminales(t *testing.T) {
	assert.True(t, DevolucionProcesada.EsTerminal())
	assert.True(t, DevolucionRechazada.EsTerminal())
	assert.True(t, DevolucionCancelada.EsTerminal())
	assert.False(t, DevolucionPendiente.EsTerminal())
	assert.False(t, DevolucionAutorizada.EsTerminal())

	assert.True(t, DevolucionProcesada.Activa())
	assert.False(t, DevolucionRechazada.Activa())
}

func TestDevolucion_FlujoCompleto(t *testing.T) {
	d := &Devolucion{ID: uuid.New(), Estado: DevolucionPendiente}
	admin := uuid.New()

	require.NoError(t, d.Autorizar(admin, nil, time.Now()))
	assert.Equal(t, DevolucionAutorizada, d.Estado)
	assert.Equal(t, admin, *d.Autorizador)

	err := d.Rechazar(admin, "tarde", time.Now())
	assert.True(t, errors.Is(err, apierror.ErrTransicionInvalida))

	sesion := uuid.New()
	require.NoError(t, d.Procesar(uuid.New(), MetodoEfectivo, sesion, time.Now()))
	assert.Equal(t, DevolucionProcesada, d.Estado)
	assert.Equal(t, sesion, *d.SesionCajaID)
	assert.NotNil(t, d.FechaProceso)

	err = d.Cancelar("ya no", time.Now())
	assert.True(t, errors.Is(err, apierror.ErrTransicionInvalida))
}

func TestFormatNumeroDevolucion(t *testing.T) {
	assert.Equal(t, "DEV-000001", FormatNumeroDevolucion(1))
	assert.Equal(t, "DEV-123456", FormatNumeroDevolucion(123456))
}
