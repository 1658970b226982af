package app

import (
	"math/bits"

	errorsmod "cosmossdk.io/errors"
)

const (
	payoutNumerator   uint64 = 95
	payoutDenominator uint64 = 100
)

func mulU64Checked(a, b uint64, what string) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errorsmod.Wrapf(ErrArithmeticOverflow, "%s: %d * %d overflows uint64", what, a, b)
	}
	return lo, nil
}

// payoutSplit divides the pool total into the winner's share and the
// remainder. winner = floor(total * 95 / 100); the two always sum to
// total exactly. The 128-bit intermediate never overflows.
func payoutSplit(total uint64) (winner, remainder uint64) {
	hi, lo := bits.Mul64(total, payoutNumerator)
	winner, _ = bits.Div64(hi, lo, payoutDenominator)
	return winner, total - winner
}
