package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

type usuarioFlags struct {
	username, password, nombre, email, rol string
	numeroCaja                             int
	migrate                                bool
}

func (f usuarioFlags) validate() error {
	if !authz.IsKnownRole(f.rol) {
		return fmt.Errorf("rol desconocido: %s", f.rol)
	}
	if len(f.password) < 8 {
		return errors.New("la contraseña debe tener al menos 8 caracteres")
	}
	if f.numeroCaja < 0 {
		return errors.New("--caja debe ser positivo")
	}
	if f.numeroCaja > 0 && !authz.HasCapability(f.rol, authz.CapOperateCaja) {
		return fmt.Errorf("el rol %s no opera caja", f.rol)
	}
	return nil
}

// upsertUsuario creates the user or resets password, role and register of an
// existing one, reactivating it.
const upsertUsuario = `
INSERT INTO usuarios (username, nombre, email, password_hash, rol, numero_caja)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (username) DO UPDATE
SET password_hash = EXCLUDED.password_hash,
    nombre        = EXCLUDED.nombre,
    email         = EXCLUDED.email,
    rol           = EXCLUDED.rol,
    numero_caja   = EXCLUDED.numero_caja,
    activo        = true,
    updated_at    = now()`

func newUsuarioCommand() *cobra.Command {
	var f usuarioFlags
	cmd := &cobra.Command{
		Use:   "usuario",
		Short: "Crea o actualiza un usuario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if f.migrate {
				if err := infra.RunMigrations(db); err != nil {
					return fmt.Errorf("migraciones: %w", err)
				}
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(f.password), bcryptCost)
			if err != nil {
				return fmt.Errorf("bcrypt: %w", err)
			}
			var email, caja any
			if f.email != "" {
				email = f.email
			}
			if f.numeroCaja > 0 {
				caja = f.numeroCaja
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := db.WithContext(ctx).Exec(upsertUsuario, f.username, f.nombre, email, string(hash), f.rol, caja).Error; err != nil {
				return fmt.Errorf("guardar usuario: %w", err)
			}
			log.Info().Str("username", f.username).Str("rol", f.rol).Msg("usuario creado o actualizado")
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.username, "username", "admin@hospital.local", "nombre de usuario")
	fl.StringVar(&f.password, "password", "", "contraseña en claro (mínimo 8 caracteres)")
	fl.StringVar(&f.nombre, "nombre", "Administrador", "nombre para mostrar")
	fl.StringVar(&f.email, "email", "", "correo para avisos de devoluciones")
	fl.StringVar(&f.rol, "rol", authz.RolAdministrador, "administrador | cajero | enfermero | medico")
	fl.IntVar(&f.numeroCaja, "caja", 0, "número de caja asignada (solo roles que operan caja)")
	fl.BoolVar(&f.migrate, "migrate", false, "aplicar migraciones antes de guardar")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
