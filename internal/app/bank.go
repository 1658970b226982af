package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/codec"
)

// bank/mint is a devnet faucet and stays unsigned, like the rest of the
// v0 localnet tooling.
func (a *OCLApp) bankMint(msg codec.BankMintTx) (*abci.ExecTxResult, error) {
	if msg.To == "" || msg.Amount == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing to/amount")
	}
	if err := a.st.Credit(msg.To, msg.Amount); err != nil {
		return nil, errorsmod.Wrap(ErrTransferFailed, err.Error())
	}
	return okEvent("BankMinted", map[string]string{
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func (a *OCLApp) bankSend(msg codec.BankSendTx) (*abci.ExecTxResult, error) {
	if msg.From == "" || msg.To == "" || msg.Amount == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing from/to/amount")
	}
	if err := a.st.Transfer(msg.From, msg.To, msg.Amount); err != nil {
		return nil, errorsmod.Wrap(ErrTransferFailed, err.Error())
	}
	return okEvent("BankSent", map[string]string{
		"from":   msg.From,
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func (a *OCLApp) authRegisterAccount(msg codec.AuthRegisterAccountTx) (*abci.ExecTxResult, error) {
	existing := a.st.AccountKeys[msg.Account]
	if len(existing) != 0 {
		// Idempotent re-registration with the same key is fine for scripts;
		// key rotation is not.
		if string(existing) != string(msg.PubKey) {
			return nil, errorsmod.Wrapf(ErrUnauthorized, "account %q already registered with a different key", msg.Account)
		}
		return okEvent("AccountRegistered", map[string]string{
			"account":  msg.Account,
			"existing": "true",
		}), nil
	}
	a.st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
	return okEvent("AccountRegistered", map[string]string{
		"account": msg.Account,
	}), nil
}
