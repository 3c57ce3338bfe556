package handler

import (
	"net/http"

	"github.com/agntsupport/hospitalsystem-sub004/internal/dto"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/service"

	"github.com/gin-gonic/gin"
)

// CuentasHandler serves the patient account ledger and its closing.
type CuentasHandler struct {
	svc    service.CuentaService
	cierre service.CierreService
}

func NewCuentasHandler(svc service.CuentaService, cierre service.CierreService) *CuentasHandler {
	return &CuentasHandler{svc: svc, cierre: cierre}
}

// Abrir godoc
// @Summary Abre la cuenta de un paciente
// @Tags cuentas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCuentaRequest true "Paciente y tipo de atención"
// @Success 201 {object} dto.CuentaResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/cuentas [post]
func (h *CuentasHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), middleware.GetActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener godoc
// @Summary Detalle de una cuenta con sus cargos y pagos
// @Tags cuentas
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de cuenta"
// @Success 200 {object} dto.CuentaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cuentas/{id} [get]
func (h *CuentasHandler) Obtener(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerCuenta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AgregarCargo godoc
// @Summary Agrega un cargo de servicio o producto
// @Tags cuentas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de cuenta"
// @Param body body dto.AgregarCargoRequest true "Cargo"
// @Success 201 {object} dto.CuentaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cuentas/{id}/cargos [post]
func (h *CuentasHandler) AgregarCargo(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AgregarCargoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AgregarCargo(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarPago godoc
// @Summary Registra un pago parcial sobre una cuenta abierta
// @Tags cuentas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de cuenta"
// @Param body body dto.RegistrarPagoCuentaRequest true "Pago"
// @Success 201 {object} dto.SaldoResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cuentas/{id}/pagos [post]
func (h *CuentasHandler) RegistrarPago(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarPagoCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPagoParcial(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Saldo godoc
// @Summary Saldo actual de la cuenta
// @Tags cuentas
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de cuenta"
// @Success 200 {object} dto.SaldoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cuentas/{id}/saldo [get]
func (h *CuentasHandler) Saldo(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerSaldo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cerrar godoc
// @Summary Cierra la cuenta
// @Description Con saldo pendiente se requiere cuenta_por_cobrar=true, un motivo y rol autorizado; se crea la cuenta por cobrar.
// @Tags cuentas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de cuenta"
// @Param body body dto.CerrarCuentaRequest true "Cierre"
// @Success 200 {object} dto.CierreCuentaResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cuentas/{id}/cerrar [post]
func (h *CuentasHandler) Cerrar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.cierre.Cerrar(c.Request.Context(), middleware.GetActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ocupacion godoc
// @Summary Cuentas abiertas por tipo de atención
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.OcupacionResponse
// @Router /v1/dashboard/ocupacion [get]
func (h *CuentasHandler) Ocupacion(c *gin.Context) {
	resp, err := h.svc.Ocupacion(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
