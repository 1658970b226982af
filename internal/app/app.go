package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/codec"
	"onchainlottery/internal/config"
	"onchainlottery/internal/state"
)

const (
	AppVersion uint64 = 1
)

type OCLApp struct {
	*abci.BaseApplication

	home   string
	cfg    config.Config
	logger log.Logger

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string, cfg config.Config, logger log.Logger) (*OCLApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &OCLApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		cfg:             cfg,
		logger:          logger.With("module", "ocl/app"),
		st:              st,
		lastHash:        st.AppHash(),
	}
	a.logger.Info("state loaded", "height", st.Height, "pots", len(st.Pots))
	return a, nil
}

func (a *OCLApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "OCL (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *OCLApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// v0: only structural validation; signatures/auth are enforced in deliverTx.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *OCLApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// v0: no special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *OCLApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *OCLApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *OCLApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /pots
	// - /pot/<id>
	// - /account/<addr>
	// - /token/<addr>
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/pots":
		ids := make([]uint64, 0, len(a.st.Pots))
		for id := range a.st.Pots {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/pot/"):
		raw := strings.TrimPrefix(path, "/pot/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid pot id", Height: a.st.Height}, nil
		}
		p, ok := a.st.Pots[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "pot not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(p)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		bal := a.st.Balance(addr)
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": bal})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/token/"):
		addr := strings.TrimPrefix(path, "/token/")
		acct := a.st.Token(addr)
		if acct == nil {
			return &abci.QueryResponse{Code: 1, Log: "token account not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(acct)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func (a *OCLApp) deliverTx(txBytes []byte, height int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return errResult(errorsmod.Wrap(ErrInvalidRequest, err.Error()))
	}

	res, err := a.routeTx(env, height)
	if err != nil {
		a.logger.Debug("tx rejected", "type", env.Type, "height", height, "err", err)
		return errResult(err)
	}
	// The nonce is consumed only when the whole operation succeeded, so a
	// rejected tx can be resubmitted unchanged.
	bumpNonce(a.st, env)
	return res
}

func (a *OCLApp) routeTx(env codec.TxEnvelope, height int64) (*abci.ExecTxResult, error) {
	switch env.Type {
	case "bank/mint":
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad bank/mint value")
		}
		return a.bankMint(msg)

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad bank/send value")
		}
		if err := requireAccountAuth(a.st, env, msg.From); err != nil {
			return nil, err
		}
		return a.bankSend(msg)

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad auth/register_account value")
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return nil, err
		}
		return a.authRegisterAccount(msg)

	case "token/create_account":
		var msg codec.TokenCreateAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad token/create_account value")
		}
		if err := requireAccountAuth(a.st, env, msg.Owner); err != nil {
			return nil, err
		}
		return a.tokenCreateAccount(msg)

	case "token/mint":
		var msg codec.TokenMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad token/mint value")
		}
		return a.tokenMint(msg)

	case "token/send":
		var msg codec.TokenSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad token/send value")
		}
		src := a.st.Token(msg.From)
		if src == nil {
			return nil, errorsmod.Wrapf(ErrTransferFailed, "token account %q not found", msg.From)
		}
		if err := requireAccountAuth(a.st, env, src.Owner); err != nil {
			return nil, err
		}
		return a.tokenSend(msg)

	case "lottery/create_pot":
		var msg codec.LotteryCreatePotTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad lottery/create_pot value")
		}
		if err := requireAccountAuth(a.st, env, msg.Authority); err != nil {
			return nil, err
		}
		return a.lotteryCreatePot(msg)

	case "lottery/buy_ticket":
		var msg codec.LotteryBuyTicketTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad lottery/buy_ticket value")
		}
		if err := requireAccountAuth(a.st, env, msg.Buyer); err != nil {
			return nil, err
		}
		return a.lotteryBuyTicket(msg)

	case "lottery/fulfill":
		var msg codec.LotteryFulfillTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad lottery/fulfill value")
		}
		pot := a.st.Pots[msg.PotID]
		if pot == nil {
			return nil, errorsmod.Wrapf(ErrPotNotFound, "pot %d", msg.PotID)
		}
		// Settlement is gated on the pot's operating authority.
		if err := requireAccountAuth(a.st, env, pot.Authority); err != nil {
			return nil, err
		}
		return a.lotteryFulfill(pot, msg)

	default:
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "unknown tx type: %s", env.Type)
	}
}

func errResult(err error) *abci.ExecTxResult {
	codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Code: code, Codespace: codespace, Log: logMsg}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
