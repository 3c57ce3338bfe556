package repository

import (
	"errors"
	"strings"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"

	"gorm.io/gorm"
)

// notFound turns gorm.ErrRecordNotFound into apierror.ErrNoEncontrado so the
// service layer never imports gorm's sentinel.
func notFound(err error, recurso string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.ErrNoEncontrado.WithDetail("No se encontró " + strings.ToLower(recurso))
	}
	return err
}
