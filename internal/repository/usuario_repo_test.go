package repository

import (
	"context"
	"testing"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUsuarioRepo_ExistsUsername(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewUsuarioRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "usuarios" WHERE username = \$1`).
		WithArgs("caja1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.ExistsUsername(context.Background(), "caja1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsuarioRepo_FindByUsername_NotFound(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewUsuarioRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "usuarios" WHERE \(username = \$1 OR LOWER\(email::text\) = LOWER\(\$2\)\) AND activo = true`).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindByUsername(context.Background(), "nadie")
	assert.ErrorIs(t, err, apierror.ErrNoEncontrado)
}
