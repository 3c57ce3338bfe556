package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCajaRepo_SumMovimientosByMetodo(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewCajaRepository(db)

	rows := sqlmock.NewRows([]string{"metodo_pago", "total"}).
		AddRow("efectivo", "800.00").
		AddRow("tarjeta", "1500.50")
	mock.ExpectQuery(`SELECT COALESCE\(metodo_pago, 'efectivo'\) AS metodo_pago, SUM\(monto\) AS total FROM "movimientos_caja"`).
		WillReturnRows(rows)

	sums, err := repo.SumMovimientosByMetodo(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, sums["efectivo"].Equal(decimal.NewFromInt(800)))
	assert.True(t, sums["tarjeta"].Equal(decimal.RequireFromString("1500.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCajaRepo_FindSesionAbiertaPorUsuario_SinCaja(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewCajaRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "sesiones_caja" WHERE usuario_id = \$1 AND estado = 'abierta'`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindSesionAbiertaPorUsuario(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apierror.ErrNoEncontrado))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCajaRepo_LockSesionAbiertaTx(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewCajaRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "sesiones_caja" WHERE id = \$1 AND estado = 'abierta' .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "numero_caja", "monto_inicial", "estado"}).
			AddRow(id.String(), 1, "1000.00", "abierta"))

	s, err := repo.LockSesionAbiertaTx(context.Background(), db, id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCajaRepo_LockSesionAbiertaTx_Cerrada(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewCajaRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "sesiones_caja" WHERE id = \$1 AND estado = 'abierta' .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.LockSesionAbiertaTx(context.Background(), db, uuid.New())
	assert.True(t, errors.Is(err, apierror.ErrNoEncontrado))
	assert.NoError(t, mock.ExpectationsWereMet())
}
