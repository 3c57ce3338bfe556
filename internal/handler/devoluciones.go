package handler

import (
	"net/http"

	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/service"

	"github.com/gin-gonic/gin"
)

type DevolucionesHandler struct{ svc service.DevolucionService }

func NewDevolucionesHandler(svc service.DevolucionService) *DevolucionesHandler {
	return &DevolucionesHandler{svc: svc}
}

// Crear godoc
// @Summary Solicita una devolución sobre una cuenta cerrada
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearDevolucionRequest true "Solicitud"
// @Success 201 {object} dto.DevolucionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/devoluciones [post]
func (h *DevolucionesHandler) Crear(c *gin.Context) {
	var req dto.CrearDevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), middleware.GetActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary Lista devoluciones
// @Tags devoluciones
// @Produce json
// @Security BearerAuth
// @Param estado query string false "Estado"
// @Param cuenta_id query string false "Cuenta"
// @Param page query int false "Página"
// @Param limit query int false "Tamaño de página"
// @Success 200 {object} dto.DevolucionListResponse
// @Router /v1/devoluciones [get]
func (h *DevolucionesHandler) Listar(c *gin.Context) {
	var filter dto.DevolucionFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Obtener godoc
// @Summary Detalle de una devolución
// @Tags devoluciones
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de devolución"
// @Success 200 {object} dto.DevolucionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/devoluciones/{id} [get]
func (h *DevolucionesHandler) Obtener(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Motivos godoc
// @Summary Catálogo de motivos de devolución activos
// @Tags devoluciones
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.MotivoDevolucionResponse
// @Router /v1/devoluciones/motivos [get]
func (h *DevolucionesHandler) Motivos(c *gin.Context) {
	resp, err := h.svc.Motivos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Autorizar godoc
// @Summary Autoriza una devolución pendiente
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de devolución"
// @Param body body dto.AutorizarDevolucionRequest false "Observaciones"
// @Success 200 {object} dto.DevolucionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/devoluciones/{id}/autorizar [post]
func (h *DevolucionesHandler) Autorizar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	// the body is optional
	var req dto.AutorizarDevolucionRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Autorizar(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Rechazar godoc
// @Summary Rechaza una devolución pendiente
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de devolución"
// @Param body body dto.MotivoRequest true "Motivo del rechazo"
// @Success 200 {object} dto.DevolucionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/devoluciones/{id}/rechazar [post]
func (h *DevolucionesHandler) Rechazar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Rechazar(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancelar godoc
// @Summary Cancela una devolución pendiente
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de devolución"
// @Param body body dto.MotivoRequest true "Motivo de la cancelación"
// @Success 200 {object} dto.DevolucionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/devoluciones/{id}/cancelar [post]
func (h *DevolucionesHandler) Cancelar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cancelar(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Procesar godoc
// @Summary Procesa una devolución autorizada
// @Description Emite el egreso en la caja abierta del usuario, ajusta la cuenta y reingresa inventario.
// @Tags devoluciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de devolución"
// @Param body body dto.ProcesarDevolucionRequest true "Método de pago"
// @Success 200 {object} dto.ProcesarDevolucionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 412 {object} apierror.APIError
// @Router /v1/devoluciones/{id}/procesar [post]
func (h *DevolucionesHandler) Procesar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ProcesarDevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Procesar(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
