package handler

import (
	"net/http"

	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/service"

	"github.com/gin-gonic/gin"
)

type CPCHandler struct{ svc service.CPCService }

func NewCPCHandler(svc service.CPCService) *CPCHandler { return &CPCHandler{svc: svc} }

// Listar godoc
// @Summary Lista cuentas por cobrar
// @Tags cpc
// @Produce json
// @Security BearerAuth
// @Param estado query string false "pendiente | pagado_parcial | pagado_total"
// @Param paciente_id query string false "Paciente"
// @Param page query int false "Página"
// @Param limit query int false "Tamaño de página"
// @Success 200 {object} dto.CPCListResponse
// @Router /v1/cpc [get]
func (h *CPCHandler) Listar(c *gin.Context) {
	var filter dto.CPCFilter
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
// @Summary Detalle de una cuenta por cobrar
// @Tags cpc
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de CPC"
// @Success 200 {object} dto.CPCResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cpc/{id} [get]
func (h *CPCHandler) Obtener(c *gin.Context) {
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

// RegistrarPago godoc
// @Summary Registra un pago sobre una cuenta por cobrar
// @Tags cpc
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de CPC"
// @Param body body dto.RegistrarPagoCPCRequest true "Pago"
// @Success 201 {object} dto.CPCResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cpc/{id}/pagos [post]
func (h *CPCHandler) RegistrarPago(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarPagoCPCRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPago(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Estadisticas godoc
// @Summary Estadísticas de recuperación de cuentas por cobrar
// @Tags cpc
// @Produce json
// @Security BearerAuth
// @Param desde query string false "YYYY-MM-DD, por defecto el primer día del mes"
// @Param hasta query string false "YYYY-MM-DD inclusive, por defecto hoy"
// @Success 200 {object} dto.EstadisticasCPCResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/cpc/estadisticas [get]
func (h *CPCHandler) Estadisticas(c *gin.Context) {
	var filter dto.EstadisticasFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Estadisticas(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
