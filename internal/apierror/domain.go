package apierror

import (
	"errors"
	"net/http"
)

// Kind classifies a DomainError by how the caller recovers from it.
type Kind string

const (
	// KindValidation: correct the input and retry.
	KindValidation Kind = "validacion"
	// KindState: the client acted on stale data; re-fetch and decide.
	KindState Kind = "estado"
	// KindAuthorization: not retryable by the same actor.
	KindAuthorization Kind = "autorizacion"
	// KindPrecondition: an external precondition must be resolved first.
	KindPrecondition Kind = "precondicion"
	KindNotFound     Kind = "no_encontrado"
	// KindAuthentication: the caller must log in again.
	KindAuthentication Kind = "autenticacion"
)

// DomainError is a ledger rule violation. Two DomainErrors match under
// errors.Is when their codes are equal, so detailed copies still match the
// sentinels below.
type DomainError struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithDetail returns a copy of e with a more specific message.
func (e *DomainError) WithDetail(msg string) *DomainError {
	return &DomainError{Code: e.Code, Kind: e.Kind, Message: msg}
}

// Status maps the kind to its HTTP status code.
func (e *DomainError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindState:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindPrecondition:
		return http.StatusPreconditionFailed
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func newDomain(code string, kind Kind, msg string) *DomainError {
	return &DomainError{Code: code, Kind: kind, Message: msg}
}

// Validation errors.
var (
	ErrMontoInvalido       = newDomain("MONTO_INVALIDO", KindValidation, "El monto debe ser mayor a cero")
	ErrCantidadInvalida    = newDomain("CANTIDAD_INVALIDA", KindValidation, "La cantidad devuelta excede la cantidad original")
	ErrMotivoRequerido     = newDomain("MOTIVO_REQUERIDO", KindValidation, "Se requiere un motivo")
	ErrMotivoInvalido      = newDomain("MOTIVO_INVALIDO", KindValidation, "Motivo de devolución inexistente o inactivo")
	ErrMontoExcedeOriginal = newDomain("MONTO_EXCEDE_ORIGINAL", KindValidation, "El monto de devolución excede el total original")
	ErrLineaInvalida       = newDomain("LINEA_INVALIDA", KindValidation, "La línea indicada no pertenece a la cuenta")
	ErrMetodoPagoInvalido  = newDomain("METODO_PAGO_INVALIDO", KindValidation, "Método de pago inválido")
	ErrPeriodoInvalido     = newDomain("PERIODO_INVALIDO", KindValidation, "El periodo indicado no es válido")
	ErrNumeroCajaRequerido = newDomain("NUMERO_CAJA_REQUERIDO", KindValidation, "Indique el número de caja")
	ErrRolInvalido         = newDomain("ROL_INVALIDO", KindValidation, "Rol inválido para la operación")
	ErrIDInvalido          = newDomain("ID_INVALIDO", KindValidation, "Identificador con formato inválido")
)

// State errors.
var (
	ErrCuentaCerrada         = newDomain("CUENTA_CERRADA", KindState, "La cuenta ya está cerrada")
	ErrCuentaNoCerrada       = newDomain("CUENTA_NO_CERRADA", KindState, "La cuenta no está cerrada")
	ErrTransicionInvalida    = newDomain("TRANSICION_INVALIDA", KindState, "La devolución no admite esta operación en su estado actual")
	ErrConflictoConcurrencia = newDomain("CONFLICTO_CONCURRENCIA", KindState, "El registro fue modificado por otra operación")
	ErrCajaYaAbierta         = newDomain("CAJA_YA_ABIERTA", KindState, "Ya existe una sesión abierta en esa caja")
	ErrCodigoDuplicado       = newDomain("CODIGO_DUPLICADO", KindState, "Ya existe un producto con ese código")
	ErrUsuarioDuplicado      = newDomain("USUARIO_DUPLICADO", KindState, "El nombre de usuario ya está en uso")
)

// Authorization errors.
var (
	ErrAutorizacionInsuficiente = newDomain("AUTORIZACION_INSUFICIENTE", KindAuthorization, "Permisos insuficientes para esta operación")
	ErrSolicitudVencida         = newDomain("SOLICITUD_VENCIDA", KindAuthorization, "La cuenta se cerró fuera de la ventana permitida para cajeros")
)

// Resource-precondition errors.
var (
	ErrSinCajaAbierta = newDomain("SIN_CAJA_ABIERTA", KindPrecondition, "No hay sesion de caja abierta")
	ErrSobrepago      = newDomain("SOBREPAGO", KindPrecondition, "El pago excede el saldo pendiente")
)

var ErrNoEncontrado = newDomain("NO_ENCONTRADO", KindNotFound, "Recurso no encontrado")

var ErrCredencialesInvalidas = newDomain("CREDENCIALES_INVALIDAS", KindAuthentication, "Credenciales inválidas")

// AsDomain unwraps err into a DomainError when possible.
func AsDomain(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
