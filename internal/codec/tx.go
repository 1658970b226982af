package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth (optional):
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (account address for account-signed txs).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth (v0) ----

// v0: account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Token ----

type TokenCreateAccountTx struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
}

type TokenMintTx struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type TokenSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Lottery ----

type LotteryCreatePotTx struct {
	Authority      string `json:"authority"`
	TicketPrice    uint64 `json:"ticketPrice"`
	TicketCapacity uint64 `json:"ticketCapacity"`
	Mint           string `json:"mint"`
	Vault          string `json:"vault"`
	// DeveloperWallet is the candidate fee recipient; it must match the
	// platform wallet the node was configured with.
	DeveloperWallet string `json:"developerWallet"`
}

type LotteryBuyTicketTx struct {
	Buyer             string `json:"buyer"`
	PotID             uint64 `json:"potId"`
	BuyerTokenAccount string `json:"buyerTokenAccount"`
}

// LotteryFulfillTx settles a round. Randomness and Winner are supplied by
// the off-chain selection process and recorded as-is; the chain pays the
// given winner token account without re-deriving the winner from them.
type LotteryFulfillTx struct {
	PotID              uint64 `json:"potId"`
	Randomness         string `json:"randomness,omitempty"`
	Winner             string `json:"winner,omitempty"`
	WinnerTokenAccount string `json:"winnerTokenAccount"`
}
