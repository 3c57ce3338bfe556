package middleware

import (
	"net/http"
	"strings"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"

	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// JWTClaims are the custom claims embedded in every token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	// NumeroCaja is the register the user is bound to, if any.
	NumeroCaja *int `json:"numero_caja,omitempty"`
	// Typ is "access" or "refresh"; refresh tokens are rejected on API routes.
	Typ string `json:"typ"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity the services authorize against.
func (c *JWTClaims) Actor() (authz.Actor, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return authz.Actor{}, err
	}
	return authz.Actor{UsuarioID: id, Rol: c.Rol}, nil
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid || claims.Typ == TokenRefresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}
		if _, err := uuid.Parse(claims.UserID); err != nil || !authz.IsKnownRole(claims.Rol) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token mal formado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireCapability rejects requests whose role lacks the capability.
func RequireCapability(capability authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !authz.HasCapability(claims.Rol, capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.FromDomain(apierror.ErrAutorizacionInsuficiente))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// GetActor returns the authenticated actor. JWTAuth has already checked the user id.
func GetActor(c *gin.Context) authz.Actor {
	actor, _ := GetClaims(c).Actor()
	return actor
}
