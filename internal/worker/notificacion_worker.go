package worker

// Processes QueueNotificacion: plain-text emails to the administrators
// (devolución awaiting authorization, cuenta por cobrar created at close)
// and nota de crédito deliveries.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"

	"github.com/rs/zerolog/log"
)

// Tipos de notificación.
const (
	NotificacionDevolucionSolicitada = "devolucion_solicitada"
	NotificacionComprobanteEmitido   = "comprobante_emitido"
	NotificacionCPCCreada            = "cpc_creada"
)

// NotificacionJobPayload is the job envelope sent to QueueNotificacion.
// Empty Destinatarios means "the administrators".
type NotificacionJobPayload struct {
	Tipo          string   `json:"tipo"`
	Asunto        string   `json:"asunto"`
	Cuerpo        string   `json:"cuerpo"`
	Destinatarios []string `json:"destinatarios,omitempty"`
	// PDFPath is an absolute path to attach, if any
	PDFPath      string `json:"pdf_path,omitempty"`
	ReferenciaID string `json:"referencia_id,omitempty"`
}

// Sender is satisfied by *infra.Mailer.
type Sender interface {
	Enabled() bool
	Send(to []string, subject, body, attachmentPath string) error
}

type NotificacionWorker struct {
	mailer      Sender
	usuarios    repository.UsuarioRepository
	notifyEmail string
}

func NewNotificacionWorker(mailer Sender, usuarios repository.UsuarioRepository, notifyEmail string) *NotificacionWorker {
	return &NotificacionWorker{mailer: mailer, usuarios: usuarios, notifyEmail: notifyEmail}
}

func (w *NotificacionWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload NotificacionJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("notificacion_worker: invalid payload")
		return nil // not retryable
	}
	if !w.mailer.Enabled() {
		log.Debug().Str("tipo", payload.Tipo).Msg("notificacion_worker: SMTP disabled, skipping")
		return nil
	}

	to := payload.Destinatarios
	if len(to) == 0 {
		var err error
		to, err = w.administradores(ctx)
		if err != nil {
			return fmt.Errorf("notificacion_worker: resolve recipients: %w", err)
		}
	}
	if len(to) == 0 {
		log.Warn().Str("tipo", payload.Tipo).Msg("notificacion_worker: no recipients, skipping")
		return nil
	}

	if err := w.mailer.Send(to, payload.Asunto, payload.Cuerpo, payload.PDFPath); err != nil {
		return fmt.Errorf("notificacion_worker: send: %w", err)
	}
	log.Info().Str("tipo", payload.Tipo).Strs("to", to).Str("referencia_id", payload.ReferenciaID).
		Msg("notificacion_worker: email sent")
	return nil
}

// administradores returns NOTIFY_EMAIL plus every active administrator with an email.
func (w *NotificacionWorker) administradores(ctx context.Context) ([]string, error) {
	var to []string
	seen := map[string]bool{}
	add := func(addr string) {
		if addr != "" && !seen[addr] {
			seen[addr] = true
			to = append(to, addr)
		}
	}
	add(w.notifyEmail)

	if w.usuarios == nil {
		return to, nil
	}
	admins, err := w.usuarios.ListByRol(ctx, authz.RolAdministrador)
	if err != nil {
		if len(to) > 0 {
			log.Warn().Err(err).Msg("notificacion_worker: admin lookup failed, using NOTIFY_EMAIL only")
			return to, nil
		}
		return nil, err
	}
	for _, u := range admins {
		if u.Email != nil {
			add(*u.Email)
		}
	}
	return to, nil
}
