package app

import (
	"testing"
)

// Every handler validates before it mutates; a rejected tx must leave the
// state byte-identical to the state before delivery.

func TestAtomicity_FailedBuyLeavesStateUntouched(t *testing.T) {
	const height = int64(2)
	a, potID := setupPot(t, 100, 10)

	// Drain the buyer below one ticket price.
	bal := a.st.Token("alice-tickets").Balance
	registerTestAccount(t, a, height, "bob")
	createTokenAccount(t, a, height, "b-acct", "bob", testMint)
	mustOk(t, a.deliverTx(txBytesSigned(t, "token/send", map[string]any{
		"from":   "alice-tickets",
		"to":     "b-acct",
		"amount": bal - 99,
	}, "alice"), height))

	before := a.st.AppHash()
	res := buyTicket(t, a, height, potID, "alice", "alice-tickets")
	if res.Code != ErrTransferFailed.ABCICode() {
		t.Fatalf("expected transfer failure, got code=%d log=%q", res.Code, res.Log)
	}
	if string(a.st.AppHash()) != string(before) {
		t.Fatalf("state mutated by rejected buy")
	}
}

func TestAtomicity_UnfundedAuthorityCannotCreatePot(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "backend")
	createTokenAccount(t, a, height, "vault-1", "backend", testMint)
	// No native mint: the authority cannot cover the creation fee.

	before := a.st.AppHash()
	res := a.deliverTx(txBytesSigned(t, "lottery/create_pot", map[string]any{
		"authority":       "backend",
		"ticketPrice":     uint64(100),
		"ticketCapacity":  uint64(10),
		"mint":            testMint,
		"vault":           "vault-1",
		"developerWallet": testDevWallet,
	}, "backend"), height)
	if res.Code != ErrTransferFailed.ABCICode() {
		t.Fatalf("expected transfer failure, got code=%d log=%q", res.Code, res.Log)
	}
	if len(a.st.Pots) != 0 || a.st.NextPotID != 1 {
		t.Fatalf("pot state mutated: pots=%d next=%d", len(a.st.Pots), a.st.NextPotID)
	}
	if string(a.st.AppHash()) != string(before) {
		t.Fatalf("state mutated by rejected creation")
	}
}

func TestAtomicity_FailedFulfillLeavesStateUntouched(t *testing.T) {
	const height = int64(3)
	a, potID := setupPot(t, 100, 10)

	mustOk(t, buyTicket(t, a, height, potID, "alice", "alice-tickets"))

	before := a.st.AppHash()
	res := fulfillPot(t, a, height, potID, "alice-tickets")
	if res.Code != ErrTransferFailed.ABCICode() {
		t.Fatalf("expected transfer failure, got code=%d log=%q", res.Code, res.Log)
	}
	if string(a.st.AppHash()) != string(before) {
		t.Fatalf("state mutated by rejected settlement")
	}
}

func TestAtomicity_FulfillToMissingWinnerAccount(t *testing.T) {
	const height = int64(3)
	a, potID := setupPot(t, 100, 10)

	for i := 0; i < 10; i++ {
		mustOk(t, buyTicket(t, a, height, potID, "alice", "alice-tickets"))
	}

	before := a.st.AppHash()
	res := fulfillPot(t, a, height, potID, "no-such-account")
	if res.Code != ErrTransferFailed.ABCICode() {
		t.Fatalf("expected transfer failure, got code=%d log=%q", res.Code, res.Log)
	}
	if string(a.st.AppHash()) != string(before) {
		t.Fatalf("state mutated by rejected settlement")
	}
}
