package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"

	"onchainlottery/internal/codec"
	"onchainlottery/internal/state"
)

const txAuthDomainV0 = "ocl/tx/v0"

func txAuthSignBytesV0(typ string, value []byte, nonce string, signer string) []byte {
	// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return fmt.Errorf("missing tx.nonce")
	}
	if env.Signer == "" {
		return fmt.Errorf("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return fmt.Errorf("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// checkNonce enforces strictly increasing nonces per signer. The nonce is
// consumed by bumpNonce only after the whole tx succeeds, so a rejected
// operation can be resubmitted as-is.
func checkNonce(st *state.State, env codec.TxEnvelope) error {
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tx.nonce %q: %w", env.Nonce, err)
	}
	if n <= st.NonceMax[env.Signer] {
		return fmt.Errorf("stale nonce %d for signer %q (last accepted %d)", n, env.Signer, st.NonceMax[env.Signer])
	}
	return nil
}

func bumpNonce(st *state.State, env codec.TxEnvelope) {
	if env.Signer == "" || env.Nonce == "" {
		return
	}
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return
	}
	if n > st.NonceMax[env.Signer] {
		st.NonceMax[env.Signer] = n
	}
}

func requireRegisterAccountAuth(env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "missing account")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(ErrInvalidRequest, "pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return errorsmod.Wrap(ErrUnauthorized, err.Error())
	}
	if env.Signer != msg.Account {
		return errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	pub := ed25519.PublicKey(msg.PubKey)
	msgBytes := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(pub, msgBytes, env.Sig) {
		return errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}
	return nil
}

// requireAccountAuth verifies that the tx was signed by the given account
// with its registered key, and that its nonce is fresh.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if account == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return errorsmod.Wrap(ErrUnauthorized, err.Error())
	}
	if env.Signer != account {
		return errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(ErrUnauthorized, "account %q missing pubKey (auth/register_account required)", account)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}
	if err := checkNonce(st, env); err != nil {
		return errorsmod.Wrap(ErrUnauthorized, err.Error())
	}
	return nil
}
