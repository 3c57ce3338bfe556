package handler

import (
	"context"
	"net/http"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/gin-gonic/gin"
)

// DeadLetterStore is the part of worker.DeadLetters the admin endpoints use.
type DeadLetterStore interface {
	Lengths(ctx context.Context) (map[string]int64, error)
	Requeue(ctx context.Context, queue string, limit int) (int, error)
}

type JobsHandler struct{ dlq DeadLetterStore }

func NewJobsHandler(dlq DeadLetterStore) *JobsHandler {
	return &JobsHandler{dlq: dlq}
}

type reintentarQuery struct {
	Max int `form:"max,default=50" validate:"min=1,max=500"`
}

// DeadLetters godoc
// @Summary Trabajos fallidos por cola
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /v1/jobs/dlq [get]
func (h *JobsHandler) DeadLetters(c *gin.Context) {
	lengths, err := h.dlq.Lengths(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lengths)
}

// Reintentar godoc
// @Summary Reencolar trabajos fallidos
// @Description Devuelve hasta max trabajos de la cola de fallidos a su cola original.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Cola (jobs:notificacion | jobs:comprobante)"
// @Param max query int false "Máximo a reencolar (default 50)"
// @Success 200 {object} map[string]int
// @Failure 404 {object} apierror.APIError
// @Router /v1/jobs/dlq/{queue}/reintentar [post]
func (h *JobsHandler) Reintentar(c *gin.Context) {
	queue := c.Param("queue")
	if !worker.IsKnownQueue(queue) {
		c.JSON(http.StatusNotFound, apierror.New("Cola desconocida: "+queue))
		return
	}
	var q reintentarQuery
	if !bindQuery(c, &q) {
		return
	}
	moved, err := h.dlq.Requeue(c.Request.Context(), queue, q.Max)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reencolados": moved})
}
