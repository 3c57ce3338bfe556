package handler

import (
	"fmt"
	"net/http"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/service"

	"github.com/gin-gonic/gin"
)

// CajaHandler serves the cash register sessions that account payments and
// devolución refunds are booked against.
type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// cajaAsignada applies the register bound to the user at creation, if any.
func cajaAsignada(claims *middleware.JWTClaims, pedida int) (int, error) {
	if claims == nil || claims.NumeroCaja == nil {
		return pedida, nil
	}
	asignada := *claims.NumeroCaja
	if pedida != 0 && pedida != asignada {
		return 0, apierror.ErrAutorizacionInsuficiente.WithDetail(fmt.Sprintf("El usuario opera solo la caja %d", asignada))
	}
	return asignada, nil
}

// Abrir godoc
// @Summary Abre un turno de caja
// @Description Un usuario con caja asignada puede omitir numero_caja.
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Caja y fondo inicial"
// @Success 201 {object} dto.ReporteCajaResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	numero, err := cajaAsignada(middleware.GetClaims(c), req.NumeroCaja)
	if err != nil {
		respondError(c, err)
		return
	}
	req.NumeroCaja = numero

	resp, err := h.svc.Abrir(c.Request.Context(), middleware.GetActor(c).UsuarioID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Arqueo godoc
// @Summary Arqueo ciego y cierre del turno
// @Description El esperado se calcula después de recibir lo declarado. Sin sesion_caja_id se usa la sesión abierta del usuario.
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ArqueoRequest true "Montos contados"
// @Success 200 {object} dto.ArqueoResponse
// @Failure 412 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/arqueo [post]
func (h *CajaHandler) Arqueo(c *gin.Context) {
	var req dto.ArqueoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Arqueo(c.Request.Context(), middleware.GetActor(c).UsuarioID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerReporte godoc
// @Summary Reporte de un turno con sus movimientos
// @Description Solo el titular del turno o un auditor de cajas.
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesión"
// @Success 200 {object} dto.ReporteCajaResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/reporte [get]
func (h *CajaHandler) ObtenerReporte(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerReporte(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarMovimiento godoc
// @Summary Ingreso o egreso manual en el turno propio
// @Tags caja
// @Accept json
// @Security BearerAuth
// @Param body body dto.MovimientoManualRequest true "Movimiento"
// @Success 204
// @Failure 403 {object} apierror.APIError
// @Failure 412 {object} apierror.APIError
// @Router /v1/caja/movimiento [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoManualRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.RegistrarMovimiento(c.Request.Context(), middleware.GetActor(c).UsuarioID, req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetActiva godoc
// @Summary Turno abierto del usuario
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ReporteCajaResponse
// @Failure 412 {object} apierror.APIError
// @Router /v1/caja/activa [get]
func (h *CajaHandler) GetActiva(c *gin.Context) {
	resp, err := h.svc.GetActiva(c.Request.Context(), middleware.GetActor(c).UsuarioID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
