package service

import (
	"context"
	"errors"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/config"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// AuthService is the identity collaborator: it issues the JWT whose rol
// claim the capability table is keyed on.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	CrearUsuario(ctx context.Context, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error)
}

type authService struct {
	repo  repository.UsuarioRepository
	cfg   *config.Config
	clock Clock
}

func NewAuthService(repo repository.UsuarioRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg, clock: clockOrDefault(nil)}
}

// ── Sesión ────────────────────────────────────────────────────────────────────

// Login accepts username or email. Unknown user, inactive user and wrong
// password all answer the same error.
func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if errors.Is(err, apierror.ErrNoEncontrado) {
		return nil, apierror.ErrCredencialesInvalidas
	}
	if err != nil {
		return nil, err
	}
	if !user.Activo || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, apierror.ErrCredencialesInvalidas
	}
	log.Info().Str("usuario", user.Username).Str("rol", user.Rol).Msg("login")
	return s.issue(user)
}

// Refresh trades a refresh token for a new pair. The user is re-read so a
// deactivation or role change takes effect at the next refresh.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims := &middleware.JWTClaims{}
	_, err := jwt.ParseWithClaims(refreshToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apierror.ErrCredencialesInvalidas.WithDetail("Refresh token inválido o expirado")
	}
	if claims.Typ != middleware.TokenRefresh {
		return nil, apierror.ErrCredencialesInvalidas.WithDetail("Se esperaba un refresh token")
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apierror.ErrCredencialesInvalidas.WithDetail("Token mal formado")
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, apierror.ErrCredencialesInvalidas.WithDetail("Usuario no encontrado o inactivo")
	}
	return s.issue(user)
}

func (s *authService) issue(user *model.Usuario) (*dto.LoginResponse, error) {
	access, err := s.sign(user, middleware.TokenAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, middleware.TokenRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	caps := authz.Capabilities(user.Rol)
	capacidades := make([]string, len(caps))
	for i, c := range caps {
		capacidades[i] = string(c)
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         usuarioToResponse(user),
		Capacidades:  capacidades,
	}, nil
}

func (s *authService) sign(user *model.Usuario, typ string, ttl time.Duration) (string, error) {
	now := s.clock()
	claims := middleware.JWTClaims{
		UserID:     user.ID.String(),
		Username:   user.Username,
		Rol:        user.Rol,
		NumeroCaja: user.NumeroCaja,
		Typ:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// ── Usuarios ──────────────────────────────────────────────────────────────────

func (s *authService) CrearUsuario(ctx context.Context, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error) {
	if !authz.IsKnownRole(req.Rol) {
		return nil, apierror.ErrRolInvalido.WithDetail("Rol desconocido: " + req.Rol)
	}
	// only people who operate a register can be bound to one
	if req.NumeroCaja != nil && !authz.HasCapability(req.Rol, authz.CapOperateCaja) {
		return nil, apierror.ErrRolInvalido.WithDetail("El rol " + req.Rol + " no opera caja")
	}
	existe, err := s.repo.ExistsUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existe {
		return nil, apierror.ErrUsuarioDuplicado
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		ID:           uuid.New(),
		Username:     req.Username,
		Nombre:       req.Nombre,
		Email:        req.Email,
		PasswordHash: string(hash),
		Rol:          req.Rol,
		NumeroCaja:   req.NumeroCaja,
		Activo:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("usuario", user.Username).Str("rol", user.Rol).Msg("usuario creado")
	resp := usuarioToResponse(user)
	return &resp, nil
}

func usuarioToResponse(u *model.Usuario) dto.UsuarioResponse {
	return dto.UsuarioResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Nombre:     u.Nombre,
		Email:      u.Email,
		Rol:        u.Rol,
		NumeroCaja: u.NumeroCaja,
		Activo:     u.Activo,
	}
}
