package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/config"
)

const (
	testDevWallet = "platform"
	testMint      = "tickets"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DeveloperWallet = testDevWallet
	return cfg
}

func newTestApp(t *testing.T) *OCLApp {
	t.Helper()
	a, err := New(t.TempDir(), testConfig(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func txBytes(t *testing.T, typ string, value any) []byte {
	t.Helper()
	return mustMarshal(t, map[string]any{
		"type":  typ,
		"value": value,
	})
}

// testEd25519Key derives a deterministic keypair per logical id.
func testEd25519Key(id string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("ocl/test/" + id))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

var testNonce uint64

func nextTestNonce() string {
	return strconv.FormatUint(atomic.AddUint64(&testNonce, 1), 10)
}

func txBytesSigned(t *testing.T, typ string, value any, signer string) []byte {
	t.Helper()
	valueB := mustMarshal(t, value)
	nonce := nextTestNonce()
	_, priv := testEd25519Key(signer)
	sig := ed25519.Sign(priv, txAuthSignBytesV0(typ, valueB, nonce, signer))
	return mustMarshal(t, map[string]any{
		"type":   typ,
		"value":  json.RawMessage(valueB),
		"nonce":  nonce,
		"signer": signer,
		"sig":    sig,
	})
}

func registerTestAccount(t *testing.T, a *OCLApp, height int64, account string) {
	t.Helper()
	pub, _ := testEd25519Key(account)
	mustOk(t, a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": account,
		"pubKey":  []byte(pub),
	}, account), height))
}

func mintNative(t *testing.T, a *OCLApp, height int64, to string, amount uint64) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytes(t, "bank/mint", map[string]any{"to": to, "amount": amount}), height))
}

func mintTokens(t *testing.T, a *OCLApp, height int64, addr string, amount uint64) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytes(t, "token/mint", map[string]any{"address": addr, "amount": amount}), height))
}

func createTokenAccount(t *testing.T, a *OCLApp, height int64, addr, owner, mint string) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytesSigned(t, "token/create_account", map[string]any{
		"address": addr,
		"owner":   owner,
		"mint":    mint,
	}, owner), height))
}

func mustOk(t *testing.T, res *abci.ExecTxResult) *abci.ExecTxResult {
	t.Helper()
	if res.Code != 0 {
		t.Fatalf("expected ok, got code=%d log=%q", res.Code, res.Log)
	}
	return res
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func parseU64(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("parse uint64 %q: %v", s, err)
	}
	return n
}

// setupPot creates a funded backend authority, its vault, a registered
// buyer "alice" with a funded token account, and one pot.
func setupPot(t *testing.T, price, capacity uint64) (a *OCLApp, potID uint64) {
	t.Helper()

	const height = int64(1)
	a = newTestApp(t)

	registerTestAccount(t, a, height, "backend")
	registerTestAccount(t, a, height, "alice")
	mintNative(t, a, height, "backend", 1_000_000_000)

	createTokenAccount(t, a, height, "vault-1", "backend", testMint)
	createTokenAccount(t, a, height, "alice-tickets", "alice", testMint)
	mintTokens(t, a, height, "alice-tickets", price*capacity*2)

	createRes := mustOk(t, a.deliverTx(txBytesSigned(t, "lottery/create_pot", map[string]any{
		"authority":       "backend",
		"ticketPrice":     price,
		"ticketCapacity":  capacity,
		"mint":            testMint,
		"vault":           "vault-1",
		"developerWallet": testDevWallet,
	}, "backend"), height))
	potID = parseU64(t, attr(findEvent(createRes.Events, "PotCreated"), "potId"))
	return a, potID
}

func buyTicket(t *testing.T, a *OCLApp, height int64, potID uint64, buyer, buyerAcct string) *abci.ExecTxResult {
	t.Helper()
	return a.deliverTx(txBytesSigned(t, "lottery/buy_ticket", map[string]any{
		"buyer":             buyer,
		"potId":             potID,
		"buyerTokenAccount": buyerAcct,
	}, buyer), height)
}

func fulfillPot(t *testing.T, a *OCLApp, height int64, potID uint64, winnerAcct string) *abci.ExecTxResult {
	t.Helper()
	return a.deliverTx(txBytesSigned(t, "lottery/fulfill", map[string]any{
		"potId":              potID,
		"randomness":         "42",
		"winner":             "alice",
		"winnerTokenAccount": winnerAcct,
	}, "backend"), height)
}

// ---- bank / auth / token ----

func TestBankMintAndSend(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")
	mintNative(t, a, height, "alice", 1000)

	res := mustOk(t, a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from":   "alice",
		"to":     "bob",
		"amount": uint64(300),
	}, "alice"), height))
	if findEvent(res.Events, "BankSent") == nil {
		t.Fatalf("expected BankSent event")
	}
	if a.st.Balance("alice") != 700 || a.st.Balance("bob") != 300 {
		t.Fatalf("unexpected balances: alice=%d bob=%d", a.st.Balance("alice"), a.st.Balance("bob"))
	}
}

func TestBankSend_RequiresSignature(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")
	mintNative(t, a, height, "alice", 1000)

	res := a.deliverTx(txBytes(t, "bank/send", map[string]any{
		"from":   "alice",
		"to":     "bob",
		"amount": uint64(300),
	}), height)
	if res.Code == 0 {
		t.Fatalf("expected unsigned bank/send to fail")
	}
	if a.st.Balance("alice") != 1000 {
		t.Fatalf("balance mutated on rejected send: %d", a.st.Balance("alice"))
	}
}

func TestBankSend_WrongSignerRejected(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")
	registerTestAccount(t, a, height, "mallory")
	mintNative(t, a, height, "alice", 1000)

	res := a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from":   "alice",
		"to":     "mallory",
		"amount": uint64(300),
	}, "mallory"), height)
	if res.Code == 0 {
		t.Fatalf("expected send signed by non-owner to fail")
	}
	if a.st.Balance("alice") != 1000 || a.st.Balance("mallory") != 0 {
		t.Fatalf("balances mutated: alice=%d mallory=%d", a.st.Balance("alice"), a.st.Balance("mallory"))
	}
}

func TestRegisterAccount_RejectsKeyRotation(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")

	otherPub, otherPriv := testEd25519Key("other")
	valueB := mustMarshal(t, map[string]any{"account": "alice", "pubKey": []byte(otherPub)})
	nonce := nextTestNonce()
	sig := ed25519.Sign(otherPriv, txAuthSignBytesV0("auth/register_account", valueB, nonce, "alice"))
	res := a.deliverTx(mustMarshal(t, map[string]any{
		"type":   "auth/register_account",
		"value":  json.RawMessage(valueB),
		"nonce":  nonce,
		"signer": "alice",
		"sig":    sig,
	}), height)
	if res.Code == 0 {
		t.Fatalf("expected re-registration with a different key to fail")
	}
}

func TestTokenSend_MovesTokensBetweenAccounts(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")
	registerTestAccount(t, a, height, "bob")
	createTokenAccount(t, a, height, "a-acct", "alice", testMint)
	createTokenAccount(t, a, height, "b-acct", "bob", testMint)
	mintTokens(t, a, height, "a-acct", 100)

	mustOk(t, a.deliverTx(txBytesSigned(t, "token/send", map[string]any{
		"from":   "a-acct",
		"to":     "b-acct",
		"amount": uint64(40),
	}, "alice"), height))

	if a.st.Token("a-acct").Balance != 60 || a.st.Token("b-acct").Balance != 40 {
		t.Fatalf("unexpected token balances: a=%d b=%d", a.st.Token("a-acct").Balance, a.st.Token("b-acct").Balance)
	}
}

func TestTokenSend_OnlyOwnerMaySpend(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")
	registerTestAccount(t, a, height, "mallory")
	createTokenAccount(t, a, height, "a-acct", "alice", testMint)
	createTokenAccount(t, a, height, "m-acct", "mallory", testMint)
	mintTokens(t, a, height, "a-acct", 100)

	res := a.deliverTx(txBytesSigned(t, "token/send", map[string]any{
		"from":   "a-acct",
		"to":     "m-acct",
		"amount": uint64(40),
	}, "mallory"), height)
	if res.Code == 0 {
		t.Fatalf("expected token send signed by non-owner to fail")
	}
	if a.st.Token("a-acct").Balance != 100 {
		t.Fatalf("balance mutated on rejected token send: %d", a.st.Token("a-acct").Balance)
	}
}

func TestUnknownTxTypeRejected(t *testing.T) {
	a := newTestApp(t)
	res := a.deliverTx(txBytes(t, "lottery/does_not_exist", map[string]any{}), 1)
	if res.Code == 0 {
		t.Fatalf("expected unknown tx type to fail")
	}
}

// ---- queries ----

func TestQuery_PotAndAccounts(t *testing.T) {
	a, potID := setupPot(t, 100, 10)

	res, err := a.Query(nil, &abci.QueryRequest{Path: fmt.Sprintf("/pot/%d", potID)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Code != 0 {
		t.Fatalf("query pot failed: %s", res.Log)
	}
	var pot map[string]any
	if err := json.Unmarshal(res.Value, &pot); err != nil {
		t.Fatalf("unmarshal pot: %v", err)
	}
	if pot["ticketPrice"].(float64) != 100 {
		t.Fatalf("unexpected pot payload: %v", pot)
	}

	res, err = a.Query(nil, &abci.QueryRequest{Path: "/pots"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var ids []uint64
	if err := json.Unmarshal(res.Value, &ids); err != nil {
		t.Fatalf("unmarshal ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != potID {
		t.Fatalf("unexpected pot ids: %v", ids)
	}

	res, err = a.Query(nil, &abci.QueryRequest{Path: "/token/vault-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Code != 0 {
		t.Fatalf("query vault failed: %s", res.Log)
	}

	res, err = a.Query(nil, &abci.QueryRequest{Path: "/pot/999"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Code == 0 {
		t.Fatalf("expected missing pot query to fail")
	}
}

// ---- block plumbing ----

func TestFinalizeBlock_AppliesTxsAndHashes(t *testing.T) {
	a := newTestApp(t)

	resp, err := a.FinalizeBlock(nil, &abci.FinalizeBlockRequest{
		Height: 1,
		Txs: [][]byte{
			txBytes(t, "bank/mint", map[string]any{"to": "alice", "amount": 10}),
			[]byte("{not json"),
		},
	})
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if len(resp.TxResults) != 2 {
		t.Fatalf("expected 2 tx results, got %d", len(resp.TxResults))
	}
	if resp.TxResults[0].Code != 0 {
		t.Fatalf("mint failed: %s", resp.TxResults[0].Log)
	}
	if resp.TxResults[1].Code == 0 {
		t.Fatalf("expected malformed tx to fail")
	}
	if len(resp.AppHash) == 0 {
		t.Fatalf("missing app hash")
	}
	if a.st.Height != 1 {
		t.Fatalf("height not advanced: %d", a.st.Height)
	}
}

func TestCommit_PersistsStateAcrossRestart(t *testing.T) {
	home := t.TempDir()
	a, err := New(home, testConfig(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mintNative(t, a, 1, "alice", 123)
	if _, err := a.Commit(nil, &abci.CommitRequest{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	b, err := New(home, testConfig(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New after restart: %v", err)
	}
	if b.st.Balance("alice") != 123 {
		t.Fatalf("state not persisted: %d", b.st.Balance("alice"))
	}
}
