package models

type GoalType string

const (
	GoalTypeIndividual GoalType = "individual"
	GoalTypeTeam       GoalType = "team"
)

type GoalPeriod string

const (
	GoalPeriodWeekly  GoalPeriod = "weekly"
	GoalPeriodMonthly GoalPeriod = "monthly"
)

type UserRole string

const (
	UserRoleVendedor UserRole = "vendedor"
	UserRoleGerente  UserRole = "gerente"
	UserRoleCaixa    UserRole = "caixa"
	UserRoleAdmin    UserRole = "admin"
)

// Normalized payment method vocabulary. Raw upstream labels are mapped onto
// these by substring matching at the sync boundary.
const (
	PaymentMethodPix           = "pix"
	PaymentMethodDinheiro      = "dinheiro"
	PaymentMethodDebito        = "debito"
	PaymentMethodCredito       = "credito"
	PaymentMethodBoleto        = "boleto"
	PaymentMethodCrediario     = "crediario"
	PaymentMethodTransferencia = "transferencia"
)

var PaymentMethods = []string{
	PaymentMethodPix,
	PaymentMethodDinheiro,
	PaymentMethodDebito,
	PaymentMethodCredito,
	PaymentMethodBoleto,
	PaymentMethodCrediario,
	PaymentMethodTransferencia,
}

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncModeReplace  = "replace"
	SyncModeAdditive = "additive"
)

const (
	SyncTriggeredManual    = "manual"
	SyncTriggeredScheduled = "scheduled"
)
