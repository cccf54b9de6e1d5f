package nodepool

import (
	"crypto/rand"
	"math/big"
)

// Selector is the strategy used to pick one node among the currently
// available candidates. Callers guarantee the candidate list is not empty.
type Selector interface {
	Pick(candidates []string) string
}

// RandomSelector picks a candidate uniformly at random.
type RandomSelector struct{}

// NewRandomSelector returns the default selection strategy.
func NewRandomSelector() Selector {
	return RandomSelector{}
}

// Pick implements the Selector interface.
func (RandomSelector) Pick(candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		// crypto/rand is never expected to fail, fall back to the first
		// candidate instead of propagating an error through every caller.
		return candidates[0]
	}
	return candidates[n.Int64()]
}
