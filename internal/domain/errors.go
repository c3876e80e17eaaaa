package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Account/vault errors
	ErrMsgVaultNotFound = "account not registered in this farm"

	// Lifecycle errors
	ErrMsgFarmNotFinalized   = "farm setup is not finalized"
	ErrMsgFarmPaused         = "farm is paused"
	ErrMsgFarmWindowClosed   = "farming window is closed"
	ErrMsgFarmNotStarted     = "farming window has not opened"
	ErrMsgAlreadyFinalized   = "farm setup is already finalized"
	ErrMsgDepositMismatch    = "reward deposit does not match the configured supply"
	ErrMsgWindowImmutable    = "farming window cannot change after setup is finalized"

	// Stake errors
	ErrMsgInsufficientStake  = "not enough staked tokens"
	ErrMsgZeroAmount         = "amount must be positive"
	ErrMsgInvalidAmount      = "amount is not a valid decimal"
	ErrMsgInvalidWindow      = "farming window end must be after start"
	ErrMsgUnknownItem        = "item is not staked in this vault"
	ErrMsgUnknownCollection  = "collection is not accepted by this farm"
	ErrMsgUnknownToken       = "token is not distributed by this farm"
	ErrMsgItemAlreadyStaked  = "item is already staked"
	ErrMsgBoostAlreadySet    = "vault already holds a boost item"
	ErrMsgNoBoostItem        = "vault holds no boost item"
	ErrMsgTooManyStakedItems = "too many staked items for a single close"
	ErrMsgWrongFarmMode      = "operation not supported by this farm mode"

	// Settlement errors
	ErrMsgNothingToWithdraw   = "nothing to withdraw"
	ErrMsgSettlementNotFound  = "settlement not found"
	ErrMsgRemoteCallFailed    = "remote registry call failed"
	ErrMsgSettlementUnderway  = "a settlement for this vault is still reconciling"

	// Infrastructure errors
	ErrMsgTxClosed = "tx is closed"
)

// Common domain errors
// These errors should be used consistently across all layers of the application.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	// Account/vault errors
	ErrVaultNotFound = errors.New(ErrMsgVaultNotFound)

	// Lifecycle errors
	ErrFarmNotFinalized = errors.New(ErrMsgFarmNotFinalized)
	ErrFarmPaused       = errors.New(ErrMsgFarmPaused)
	ErrFarmWindowClosed = errors.New(ErrMsgFarmWindowClosed)
	ErrFarmNotStarted   = errors.New(ErrMsgFarmNotStarted)
	ErrAlreadyFinalized = errors.New(ErrMsgAlreadyFinalized)
	ErrDepositMismatch  = errors.New(ErrMsgDepositMismatch)
	ErrWindowImmutable  = errors.New(ErrMsgWindowImmutable)

	// Stake errors
	ErrInsufficientStake  = errors.New(ErrMsgInsufficientStake)
	ErrZeroAmount         = errors.New(ErrMsgZeroAmount)
	ErrInvalidAmount      = errors.New(ErrMsgInvalidAmount)
	ErrInvalidWindow      = errors.New(ErrMsgInvalidWindow)
	ErrUnknownItem        = errors.New(ErrMsgUnknownItem)
	ErrUnknownCollection  = errors.New(ErrMsgUnknownCollection)
	ErrUnknownToken       = errors.New(ErrMsgUnknownToken)
	ErrItemAlreadyStaked  = errors.New(ErrMsgItemAlreadyStaked)
	ErrBoostAlreadySet    = errors.New(ErrMsgBoostAlreadySet)
	ErrNoBoostItem        = errors.New(ErrMsgNoBoostItem)
	ErrTooManyStakedItems = errors.New(ErrMsgTooManyStakedItems)
	ErrWrongFarmMode      = errors.New(ErrMsgWrongFarmMode)

	// Settlement errors
	ErrNothingToWithdraw  = errors.New(ErrMsgNothingToWithdraw)
	ErrSettlementNotFound = errors.New(ErrMsgSettlementNotFound)
	ErrRemoteCallFailed   = errors.New(ErrMsgRemoteCallFailed)
)
