package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type State struct {
	Height int64 `json:"height"`

	NextPotID   uint64            `json:"nextPotId"`
	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection

	TokenAccounts map[string]*TokenAccount `json:"tokenAccounts"`
	Pots          map[uint64]*Pot          `json:"pots"`
}

// TokenAccount is a holding account for a single token mint. The lottery
// vault is an ordinary token account owned by the pot's authority.
type TokenAccount struct {
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance uint64 `json:"balance"`
}

// Pot is one lottery round: fixed price and capacity, a running sold
// counter, and the custodial vault that accumulates ticket payments.
// Fulfillment resets TicketsSold to 0 and the same record is reused for
// the next round.
type Pot struct {
	ID             uint64 `json:"id"`
	Authority      string `json:"authority"`
	TicketPrice    uint64 `json:"ticketPrice"`
	TicketCapacity uint64 `json:"ticketCapacity"`
	TicketsSold    uint64 `json:"ticketsSold"`
	Mint           string `json:"mint"`
	Vault          string `json:"vault"`
}

func NewState() *State {
	return &State{
		Height:        0,
		NextPotID:     1,
		Accounts:      map[string]uint64{},
		AccountKeys:   map[string][]byte{},
		NonceMax:      map[string]uint64{},
		TokenAccounts: map[string]*TokenAccount{},
		Pots:          map[uint64]*Pot{},
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if st.Accounts == nil {
		st.Accounts = map[string]uint64{}
	}
	if st.AccountKeys == nil {
		st.AccountKeys = map[string][]byte{}
	}
	if st.NonceMax == nil {
		st.NonceMax = map[string]uint64{}
	}
	if st.TokenAccounts == nil {
		st.TokenAccounts = map[string]*TokenAccount{}
	}
	if st.Pots == nil {
		st.Pots = map[uint64]*Pot{}
	}
	if st.NextPotID == 0 {
		st.NextPotID = 1
	}
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type tokenKV struct {
		Addr    string        `json:"addr"`
		Account *TokenAccount `json:"account"`
	}
	type potKV struct {
		ID  uint64 `json:"id"`
		Pot *Pot   `json:"pot"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	tokens := make([]tokenKV, 0, len(s.TokenAccounts))
	for k, v := range s.TokenAccounts {
		tokens = append(tokens, tokenKV{Addr: k, Account: v})
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Addr < tokens[j].Addr })

	pots := make([]potKV, 0, len(s.Pots))
	for id, p := range s.Pots {
		pots = append(pots, potKV{ID: id, Pot: p})
	}
	sort.Slice(pots, func(i, j int) bool { return pots[i].ID < pots[j].ID })

	normalized := struct {
		Height      int64          `json:"height"`
		NextPotID   uint64         `json:"nextPotId"`
		Accounts    []accountKV    `json:"accounts"`
		AccountKeys []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax    []nonceKV      `json:"nonceMax,omitempty"`
		Tokens      []tokenKV      `json:"tokenAccounts"`
		Pots        []potKV        `json:"pots"`
	}{
		Height:      s.Height,
		NextPotID:   s.NextPotID,
		Accounts:    accounts,
		AccountKeys: accountKeys,
		NonceMax:    nonces,
		Tokens:      tokens,
		Pots:        pots,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Native bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// Transfer moves native currency between two accounts. Both sides are
// checked before either is mutated, so a failure leaves no partial write.
func (s *State) Transfer(from, to string, amount uint64) error {
	if s.Accounts[from] < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", s.Accounts[from], amount)
	}
	if from == to {
		return nil
	}
	if s.Accounts[to] > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", s.Accounts[to], amount)
	}
	s.Accounts[from] -= amount
	s.Accounts[to] += amount
	return nil
}

// ---- Token ledger ----

func (s *State) Token(addr string) *TokenAccount {
	return s.TokenAccounts[addr]
}

func (s *State) CreateTokenAccount(addr, owner, mint string) error {
	if addr == "" || owner == "" || mint == "" {
		return fmt.Errorf("token account needs address, owner and mint")
	}
	if s.TokenAccounts[addr] != nil {
		return fmt.Errorf("token account %q already exists", addr)
	}
	s.TokenAccounts[addr] = &TokenAccount{Owner: owner, Mint: mint}
	return nil
}

// TokenTransfer moves token balance between two accounts of the same mint.
// Both sides are checked before either is mutated.
func (s *State) TokenTransfer(from, to string, amount uint64) error {
	src := s.TokenAccounts[from]
	if src == nil {
		return fmt.Errorf("token account %q not found", from)
	}
	dst := s.TokenAccounts[to]
	if dst == nil {
		return fmt.Errorf("token account %q not found", to)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("mint mismatch: %q vs %q", src.Mint, dst.Mint)
	}
	if src.Balance < amount {
		return fmt.Errorf("insufficient token balance: have=%d need=%d", src.Balance, amount)
	}
	if from == to {
		return nil
	}
	if dst.Balance > ^uint64(0)-amount {
		return fmt.Errorf("token balance overflow: have=%d add=%d", dst.Balance, amount)
	}
	src.Balance -= amount
	dst.Balance += amount
	return nil
}
