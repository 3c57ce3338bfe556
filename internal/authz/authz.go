// Package authz is the single role→capability table. Handlers and services ask
// Can(actor, capability) instead of comparing role names.
package authz

import "github.com/google/uuid"

// Roles carried in the JWT "rol" claim.
const (
	RolAdministrador = "administrador"
	RolCajero        = "cajero"
	RolEnfermero     = "enfermero"
	RolMedico        = "medico"
)

// Capability names an action guarded by role.
type Capability string

const (
	CapOpenAccount         Capability = "open_account"
	CapAddCharge           Capability = "add_charge"
	CapRegisterPayment     Capability = "register_payment"
	CapCloseAccount        Capability = "close_account"
	CapAuthorizeCPC        Capability = "authorize_cpc"
	CapRegisterCPCPayment  Capability = "register_cpc_payment"
	CapViewCPCStatistics   Capability = "view_cpc_statistics"
	CapRequestDevolucion   Capability = "request_devolucion"
	CapAuthorizeDevolucion Capability = "authorize_devolucion"
	CapRejectDevolucion    Capability = "reject_devolucion"
	CapProcessDevolucion   Capability = "process_devolucion"
	CapCancelAnyDevolucion Capability = "cancel_any_devolucion"
	CapBypassCashierWindow Capability = "bypass_cashier_window"
	CapOperateCaja         Capability = "operate_caja"
	CapViewDashboard       Capability = "view_dashboard"
	CapManageCatalog       Capability = "manage_catalog"
	CapManageUsers         Capability = "manage_users"
	CapManageJobs          Capability = "manage_jobs"
	CapAuditCaja           Capability = "audit_caja"
)

// Actor is the identity supplied by the session layer.
type Actor struct {
	UsuarioID uuid.UUID
	Rol       string
}

var table = map[string]map[Capability]bool{
	RolAdministrador: set(
		CapOpenAccount, CapAddCharge, CapRegisterPayment, CapCloseAccount,
		CapAuthorizeCPC, CapRegisterCPCPayment, CapViewCPCStatistics,
		CapRequestDevolucion, CapAuthorizeDevolucion, CapRejectDevolucion,
		CapProcessDevolucion, CapCancelAnyDevolucion, CapBypassCashierWindow,
		CapOperateCaja, CapViewDashboard, CapManageCatalog, CapManageUsers, CapManageJobs, CapAuditCaja,
	),
	RolCajero: set(
		CapOpenAccount, CapAddCharge, CapRegisterPayment, CapCloseAccount,
		CapRegisterCPCPayment, CapRequestDevolucion, CapProcessDevolucion,
		CapOperateCaja, CapViewDashboard,
	),
	RolEnfermero: set(CapOpenAccount, CapAddCharge, CapViewDashboard),
	RolMedico:    set(CapOpenAccount, CapAddCharge, CapViewDashboard),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Can reports whether the actor's role holds the capability. Unknown roles hold nothing.
func Can(actor Actor, c Capability) bool {
	return HasCapability(actor.Rol, c)
}

// HasCapability is Can keyed by role name.
func HasCapability(rol string, c Capability) bool {
	return table[rol][c]
}

// Capabilities lists the capabilities of a role (used by the login response).
func Capabilities(rol string) []Capability {
	caps := make([]Capability, 0, len(table[rol]))
	for _, c := range allCapabilities {
		if table[rol][c] {
			caps = append(caps, c)
		}
	}
	return caps
}

// IsKnownRole reports whether rol appears in the table.
func IsKnownRole(rol string) bool {
	_, ok := table[rol]
	return ok
}

var allCapabilities = []Capability{
	CapOpenAccount, CapAddCharge, CapRegisterPayment, CapCloseAccount,
	CapAuthorizeCPC, CapRegisterCPCPayment, CapViewCPCStatistics,
	CapRequestDevolucion, CapAuthorizeDevolucion, CapRejectDevolucion,
	CapProcessDevolucion, CapCancelAnyDevolucion, CapBypassCashierWindow,
	CapOperateCaja, CapViewDashboard, CapManageCatalog, CapManageUsers, CapManageJobs, CapAuditCaja,
}
