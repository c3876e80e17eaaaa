package farm

// MaxCloseItems caps how many staked items a single close may reserve. A
// close dispatches one return leg per item; past this size the caller must
// unstake in batches first.
const MaxCloseItems = 64

// Log Messages
const (
	LogMsgStakeCalled             = "Stake called"
	LogMsgUnstakeCalled           = "Unstake called"
	LogMsgHarvestCalled           = "Harvest called"
	LogMsgCloseCalled             = "Close called"
	LogMsgWithdrawRecoveredCalled = "WithdrawRecovered called"
	LogMsgVaultRegistered         = "Vault registered"
	LogMsgSetupFinalized          = "Farm setup finalized"
	LogMsgWindowChanged           = "Farming window changed"
	LogMsgFarmPaused              = "Farm paused"
	LogMsgFarmResumed             = "Farm resumed"
	LogMsgRewardFunded            = "Reward deposit recorded"
)

// Messages returned to callers
const (
	MsgNothingAccrued = "nothing accrued yet, keep farming"
)
