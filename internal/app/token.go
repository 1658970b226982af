package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/codec"
)

func (a *OCLApp) tokenCreateAccount(msg codec.TokenCreateAccountTx) (*abci.ExecTxResult, error) {
	if err := a.st.CreateTokenAccount(msg.Address, msg.Owner, msg.Mint); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}
	return okEvent("TokenAccountCreated", map[string]string{
		"address": msg.Address,
		"owner":   msg.Owner,
		"mint":    msg.Mint,
	}), nil
}

// token/mint is a devnet faucet and stays unsigned, like bank/mint.
func (a *OCLApp) tokenMint(msg codec.TokenMintTx) (*abci.ExecTxResult, error) {
	if msg.Address == "" || msg.Amount == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing address/amount")
	}
	acct := a.st.Token(msg.Address)
	if acct == nil {
		return nil, errorsmod.Wrapf(ErrTransferFailed, "token account %q not found", msg.Address)
	}
	if acct.Balance > ^uint64(0)-msg.Amount {
		return nil, errorsmod.Wrapf(ErrTransferFailed, "token balance overflow: have=%d add=%d", acct.Balance, msg.Amount)
	}
	acct.Balance += msg.Amount
	return okEvent("TokenMinted", map[string]string{
		"address": msg.Address,
		"amount":  fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func (a *OCLApp) tokenSend(msg codec.TokenSendTx) (*abci.ExecTxResult, error) {
	if msg.From == "" || msg.To == "" || msg.Amount == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing from/to/amount")
	}
	if err := a.st.TokenTransfer(msg.From, msg.To, msg.Amount); err != nil {
		return nil, errorsmod.Wrap(ErrTransferFailed, err.Error())
	}
	return okEvent("TokenSent", map[string]string{
		"from":   msg.From,
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}
