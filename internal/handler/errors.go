package handler

// Generic HTTP error messages for client responses.
// These messages intentionally do not expose internal error details for security reasons.
// Both handlers and tests should reference these constants to maintain consistency.
const (
	// HTTP status messages
	ErrMsgMethodNotAllowed      = "Method not allowed"
	ErrMsgInvalidRequest        = "Invalid request body"
	ErrMsgInvalidRequestSummary = "Invalid request"

	// Query parameter error messages
	ErrMsgMissingQueryParam = "Missing %s query parameter"

	// Settlement lookup error messages
	ErrMsgInvalidSettlementID = "Invalid settlement id"

	// Admin parameter error messages
	ErrMsgInvalidTimestamp = "Invalid RFC 3339 timestamp"
)

// Success messages for API responses
const (
	MsgRewardFunded       = "Reward deposit recorded"
	MsgSetupFinalized     = "Farm setup finalized, staking is open"
	MsgFarmPaused         = "Farm paused"
	MsgFarmResumed        = "Farm resumed"
	MsgWindowUpdated      = "Farming window updated"
)
