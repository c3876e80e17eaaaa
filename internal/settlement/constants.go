package settlement

import "time"

// Outcome cache sizing. Terminal outcomes are kept briefly so status polls
// right after finalization don't hit the journal.
const (
	OutcomeCacheSize = 1024
	OutcomeCacheTTL  = 5 * time.Minute
)

// Reconcile retry policy. The remote call already happened; only the local
// journal write is being retried.
const (
	ReconcileMaxAttempts  = 3
	ReconcileRetryDelay   = 250 * time.Millisecond
	RecoverPendingLegsCap = 1000
)

// Log Messages
const (
	LogMsgSettlementDispatched    = "Settlement dispatched"
	LogMsgSettlementFinalized     = "Settlement finalized"
	LogMsgLegFailed               = "Settlement leg failed, compensating"
	LogMsgCompensationStranded    = "Compensation could not be recorded"
	LogMsgRecoveredPendingLegs    = "Re-dispatched pending settlement legs"
	LogMsgVaultDeleted            = "Vault removed after clean close"
	LogMsgUnknownRegistry         = "no registry configured"
)
