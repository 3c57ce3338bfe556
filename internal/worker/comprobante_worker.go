package worker

// Processes QueueComprobante: issues the nota de crédito of a processed
// devolución. The job is idempotent: the comprobante row is keyed by
// devolucion_id and an already emitido one is left untouched.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agntsupport/hospitalsystem-sub004/internal/apierror"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/model"
	"github.com/agntsupport/hospitalsystem-sub004/internal/money"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ComprobanteJobPayload is the job envelope sent to QueueComprobante.
type ComprobanteJobPayload struct {
	DevolucionID string `json:"devolucion_id"`
}

type ComprobanteWorker struct {
	devoluciones   repository.DevolucionRepository
	cuentas        repository.CuentaRepository
	comprobantes   repository.ComprobanteRepository
	notificar      func(ctx context.Context, p NotificacionJobPayload) error
	pdfStoragePath string
	notifyEmail    string

	render func(nc infra.NotaCredito, storagePath string) (string, error)
}

// NewComprobanteWorker wires the worker. notificar may be nil to skip the
// email with the PDF attached.
func NewComprobanteWorker(
	devoluciones repository.DevolucionRepository,
	cuentas repository.CuentaRepository,
	comprobantes repository.ComprobanteRepository,
	notificar func(ctx context.Context, p NotificacionJobPayload) error,
	pdfStoragePath string,
	notifyEmail string,
) *ComprobanteWorker {
	return &ComprobanteWorker{
		devoluciones:   devoluciones,
		cuentas:        cuentas,
		comprobantes:   comprobantes,
		notificar:      notificar,
		pdfStoragePath: pdfStoragePath,
		notifyEmail:    notifyEmail,
		render:         infra.GenerateNotaCreditoPDF,
	}
}

// Process handles a single comprobante job:
//  1. Load the devolución (must be procesada) and its account
//  2. Upsert the Comprobante (estado=pendiente) keyed by devolucion_id
//  3. Render the PDF and mark it emitido
//  4. Optionally enqueue the email with the PDF attached
func (w *ComprobanteWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ComprobanteJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("comprobante_worker: invalid payload")
		return nil
	}
	devID, err := uuid.Parse(payload.DevolucionID)
	if err != nil {
		log.Error().Str("devolucion_id", payload.DevolucionID).Msg("comprobante_worker: invalid devolucion_id")
		return nil
	}

	dev, err := w.devoluciones.FindByID(ctx, devID)
	if err != nil {
		if errors.Is(err, apierror.ErrNoEncontrado) {
			log.Error().Str("devolucion_id", payload.DevolucionID).Msg("comprobante_worker: devolución not found")
			return nil
		}
		return err
	}
	if dev.Estado != model.DevolucionProcesada {
		log.Warn().Str("devolucion_id", payload.DevolucionID).Str("estado", string(dev.Estado)).
			Msg("comprobante_worker: devolución not procesada, skipping")
		return nil
	}
	cuenta, err := w.cuentas.FindByID(ctx, dev.CuentaID)
	if err != nil {
		return err
	}

	comp := &model.Comprobante{
		ID:             uuid.New(),
		DevolucionID:   dev.ID,
		Tipo:           "nota_credito",
		Numero:         NumeroNotaCredito(dev.Numero),
		ReceptorNombre: cuenta.PacienteNombre,
		MontoTotal:     dev.Monto,
		Estado:         model.ComprobantePendiente,
	}
	if err := w.comprobantes.Upsert(ctx, comp); err != nil {
		return fmt.Errorf("comprobante_worker: upsert: %w", err)
	}
	if comp.Estado == model.ComprobanteEmitido {
		log.Info().Str("numero", comp.Numero).Msg("comprobante_worker: already emitido")
		return nil
	}

	fileName, err := w.render(buildNotaCredito(comp, dev, cuenta), w.pdfStoragePath)
	if err != nil {
		msg := err.Error()
		comp.Estado = model.ComprobanteError
		comp.LastError = &msg
		if uErr := w.comprobantes.Update(ctx, comp); uErr != nil {
			log.Error().Err(uErr).Str("numero", comp.Numero).Msg("comprobante_worker: failed to record error")
		}
		return fmt.Errorf("comprobante_worker: render: %w", err)
	}

	comp.Estado = model.ComprobanteEmitido
	comp.PDFPath = &fileName
	comp.LastError = nil
	if err := w.comprobantes.Update(ctx, comp); err != nil {
		return err
	}
	log.Info().Str("numero", comp.Numero).Str("devolucion", dev.Numero).Str("pdf", fileName).
		Msg("comprobante_worker: nota de crédito emitida")

	if w.notificar == nil || w.notifyEmail == "" {
		return nil
	}
	job := NotificacionJobPayload{
		Tipo:          NotificacionComprobanteEmitido,
		Asunto:        fmt.Sprintf("Nota de crédito %s (%s)", comp.Numero, dev.Numero),
		Cuerpo:        fmt.Sprintf("Se emitió la nota de crédito %s por %s a nombre de %s.", comp.Numero, money.Format(dev.Monto), cuenta.PacienteNombre),
		Destinatarios: []string{w.notifyEmail},
		PDFPath:       filepath.Join(w.pdfStoragePath, fileName),
		ReferenciaID:  dev.ID.String(),
	}
	if err := w.notificar(ctx, job); err != nil {
		log.Warn().Err(err).Str("numero", comp.Numero).Msg("comprobante_worker: failed to enqueue email")
		return nil
	}
	comp.EmailEnviado = true
	if err := w.comprobantes.Update(ctx, comp); err != nil {
		log.Warn().Err(err).Str("numero", comp.Numero).Msg("comprobante_worker: failed to flag email")
	}
	return nil
}

// NumeroNotaCredito derives "NC-000012" from "DEV-000012".
func NumeroNotaCredito(devNumero string) string {
	return "NC-" + strings.TrimPrefix(devNumero, "DEV-")
}

func buildNotaCredito(comp *model.Comprobante, dev *model.Devolucion, cuenta *model.CuentaPaciente) infra.NotaCredito {
	nc := infra.NotaCredito{
		Numero:           comp.Numero,
		DevolucionNumero: dev.Numero,
		Paciente:         cuenta.PacienteNombre,
		CuentaID:         cuenta.ID.String(),
		Total:            dev.Monto,
	}
	if dev.Motivo != nil {
		nc.Motivo = dev.Motivo.Nombre
	}
	if dev.MetodoPagoDevolucion != nil {
		nc.MetodoPago = string(*dev.MetodoPagoDevolucion)
	}
	if dev.FechaProceso != nil {
		nc.Fecha = *dev.FechaProceso
	}

	for _, p := range dev.Productos {
		concepto := "Línea " + p.TransaccionID.String()
		if t, ok := cuenta.FindTransaccion(p.TransaccionID); ok {
			concepto = t.Concepto
		}
		nc.Lineas = append(nc.Lineas, infra.NotaCreditoLinea{
			Concepto: concepto,
			Cantidad: p.CantidadDevuelta,
			Subtotal: p.Subtotal,
		})
	}
	if len(nc.Lineas) == 0 {
		nc.Lineas = []infra.NotaCreditoLinea{{
			Concepto: "Devolución de " + strings.ReplaceAll(string(dev.Tipo), "_", " "),
			Cantidad: 1,
			Subtotal: dev.Monto,
		}}
	}
	return nc
}
