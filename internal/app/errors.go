package app

import errorsmod "cosmossdk.io/errors"

const errCodespace = "lottery"

// Sentinel errors for the tx surface. deliverTx maps these onto
// ExecTxResult codes via errors.ABCIInfo, so clients get a stable
// (codespace, code) pair per failure kind.
var (
	ErrInvalidRequest      = errorsmod.Register(errCodespace, 2, "invalid request")
	ErrUnauthorized        = errorsmod.Register(errCodespace, 3, "unauthorized")
	ErrPotNotFound         = errorsmod.Register(errCodespace, 4, "pot not found")
	ErrPotFull             = errorsmod.Register(errCodespace, 5, "lottery pot is already full")
	ErrInvalidFeeRecipient = errorsmod.Register(errCodespace, 6, "invalid fee recipient")
	ErrTransferFailed      = errorsmod.Register(errCodespace, 7, "transfer failed")
	ErrArithmeticOverflow  = errorsmod.Register(errCodespace, 8, "arithmetic overflow")
)
