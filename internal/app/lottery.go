package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/codec"
	"onchainlottery/internal/state"
)

// Pot lifecycle:
//
//	create_pot -> (buy_ticket)* -> fulfill -> (buy_ticket)* -> fulfill -> ...
//
// Fulfillment resets the sold counter, so the same pot record cycles
// through rounds with its original price, capacity and authority.

func (a *OCLApp) lotteryCreatePot(msg codec.LotteryCreatePotTx) (*abci.ExecTxResult, error) {
	if msg.TicketPrice == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "ticketPrice must be > 0")
	}
	if msg.TicketCapacity == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "ticketCapacity must be > 0")
	}
	if msg.DeveloperWallet != a.cfg.DeveloperWallet {
		return nil, errorsmod.Wrapf(ErrInvalidFeeRecipient, "got %q", msg.DeveloperWallet)
	}

	vault := a.st.Token(msg.Vault)
	if vault == nil {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "vault token account %q not found", msg.Vault)
	}
	if vault.Mint != msg.Mint {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "vault mint %q does not match pot mint %q", vault.Mint, msg.Mint)
	}
	if vault.Owner != msg.Authority {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "vault %q is not owned by the pot authority", msg.Vault)
	}

	id := a.st.NextPotID
	if id+1 < id {
		return nil, errorsmod.Wrap(ErrArithmeticOverflow, "nextPotId overflow")
	}

	// The flat platform fee is paid before the pot exists; if the
	// authority cannot cover it, nothing is persisted.
	if err := a.st.Transfer(msg.Authority, a.cfg.DeveloperWallet, a.cfg.PotCreationFee); err != nil {
		return nil, errorsmod.Wrapf(ErrTransferFailed, "creation fee: %s", err.Error())
	}

	a.st.NextPotID = id + 1
	a.st.Pots[id] = &state.Pot{
		ID:             id,
		Authority:      msg.Authority,
		TicketPrice:    msg.TicketPrice,
		TicketCapacity: msg.TicketCapacity,
		TicketsSold:    0,
		Mint:           msg.Mint,
		Vault:          msg.Vault,
	}

	a.logger.Info("pot created",
		"potId", id,
		"authority", msg.Authority,
		"ticketPrice", msg.TicketPrice,
		"ticketCapacity", msg.TicketCapacity,
	)
	return okEvent("PotCreated", map[string]string{
		"potId":          fmt.Sprintf("%d", id),
		"authority":      msg.Authority,
		"ticketPrice":    fmt.Sprintf("%d", msg.TicketPrice),
		"ticketCapacity": fmt.Sprintf("%d", msg.TicketCapacity),
		"mint":           msg.Mint,
		"vault":          msg.Vault,
	}), nil
}

func (a *OCLApp) lotteryBuyTicket(msg codec.LotteryBuyTicketTx) (*abci.ExecTxResult, error) {
	pot := a.st.Pots[msg.PotID]
	if pot == nil {
		return nil, errorsmod.Wrapf(ErrPotNotFound, "pot %d", msg.PotID)
	}
	if pot.TicketsSold >= pot.TicketCapacity {
		return nil, errorsmod.Wrapf(ErrPotFull, "sold=%d capacity=%d", pot.TicketsSold, pot.TicketCapacity)
	}

	acct := a.st.Token(msg.BuyerTokenAccount)
	if acct == nil {
		return nil, errorsmod.Wrapf(ErrTransferFailed, "token account %q not found", msg.BuyerTokenAccount)
	}
	if acct.Owner != msg.Buyer {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "token account %q is not owned by buyer %q", msg.BuyerTokenAccount, msg.Buyer)
	}

	if err := a.st.TokenTransfer(msg.BuyerTokenAccount, pot.Vault, pot.TicketPrice); err != nil {
		return nil, errorsmod.Wrap(ErrTransferFailed, err.Error())
	}

	// Incremented only after the payment landed in the vault, so the
	// counter always reflects funds actually escrowed.
	pot.TicketsSold++

	return okEvent("TicketBought", map[string]string{
		"potId":          fmt.Sprintf("%d", pot.ID),
		"buyer":          msg.Buyer,
		"ticketsSold":    fmt.Sprintf("%d", pot.TicketsSold),
		"ticketCapacity": fmt.Sprintf("%d", pot.TicketCapacity),
	}), nil
}

// lotteryFulfill settles a round. The winner token account is supplied by
// the authority's off-chain selection process and is paid as given; the
// randomness and winner fields are recorded in the event but not used to
// re-derive or verify the winner on-chain.
//
// There is no tickets_sold == capacity gate either: the authority may
// settle a partially filled pot. The payout is computed from capacity, so
// settling early fails on the vault transfer unless the vault can cover
// the winner's share.
func (a *OCLApp) lotteryFulfill(pot *state.Pot, msg codec.LotteryFulfillTx) (*abci.ExecTxResult, error) {
	winnerAcct := a.st.Token(msg.WinnerTokenAccount)
	if winnerAcct == nil {
		return nil, errorsmod.Wrapf(ErrTransferFailed, "token account %q not found", msg.WinnerTokenAccount)
	}

	total, err := mulU64Checked(pot.TicketPrice, pot.TicketCapacity, "pool total")
	if err != nil {
		return nil, err
	}
	winnerAmount, remainder := payoutSplit(total)

	if err := a.st.TokenTransfer(pot.Vault, msg.WinnerTokenAccount, winnerAmount); err != nil {
		return nil, errorsmod.Wrap(ErrTransferFailed, err.Error())
	}

	// The 5% remainder stays in the vault for the authority to manage.
	pot.TicketsSold = 0

	a.logger.Info("payout fulfilled",
		"potId", pot.ID,
		"winner", winnerAcct.Owner,
		"amount", winnerAmount,
		"remainder", remainder,
	)
	attrs := map[string]string{
		"potId":     fmt.Sprintf("%d", pot.ID),
		"winner":    winnerAcct.Owner,
		"amount":    fmt.Sprintf("%d", winnerAmount),
		"remainder": fmt.Sprintf("%d", remainder),
	}
	if msg.Randomness != "" {
		attrs["randomness"] = msg.Randomness
	}
	return okEvent("PayoutFulfilled", attrs), nil
}
