package wallet

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath is the internal representation of a hierarchical
// deterministic wallet account
type DerivationPath []uint32

// DefaultBaseDerivationPath is the BIP-44 template paths are derived from:
// m/purpose'/coin'/account'/change/index with the address index substituted
// per derived account.
const DefaultBaseDerivationPath = "m/44'/118'/0'/0/0"

// MaxHardenedValue is the max value for hardened indexes of BIP32
// derivation paths
const MaxHardenedValue = math.MaxUint32 - hdkeychain.HardenedKeyStart

// ParseDerivationPath converts a derivation path string to the
// internal binary representation
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strPath == "":
		return nil, ErrNullDerivationPath

	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath

	case len(elems) > 1:
		if strings.TrimSpace(elems[0]) == "m" {
			elems = elems[1:]
		}
	}

	// all remaining elems are relative, append one by one
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		// use big int for convertion
		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("invalid elem '%s' in path", elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("elem %v must be in range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("elem %v must be in hardened range [0, %d]", bigval, max)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// String converts a binary derivation path to its canonical representation
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	result := "m"
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		result = fmt.Sprintf("%s/%d", result, component)
		if hardened {
			result += "'"
		}
	}
	return result
}

// DerivePathOpts is the struct given to the DerivePath function.
type DerivePathOpts struct {
	// BaseDerivationPath defaults to DefaultBaseDerivationPath.
	BaseDerivationPath string
	// AccountIndex replaces the address index of the template. It must be
	// the count of accounts already derived for the base identity, so the
	// same index is never handed out twice for the same seed.
	AccountIndex int
}

func (o DerivePathOpts) validate() error {
	if o.AccountIndex < 0 {
		return ErrNegativeAccountIndex
	}
	template := o.BaseDerivationPath
	if template == "" {
		template = DefaultBaseDerivationPath
	}
	path, err := ParseDerivationPath(template)
	if err != nil {
		return err
	}
	return checkDerivationPath(path)
}

// DerivePath returns the derivation path of the account identified by the
// given index under the given BIP-44 template. Pure and deterministic: the
// same (template, index) pair always yields the same path.
func DerivePath(opts DerivePathOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	template := opts.BaseDerivationPath
	if template == "" {
		template = DefaultBaseDerivationPath
	}
	path, _ := ParseDerivationPath(template)
	path[len(path)-1] = uint32(opts.AccountIndex)
	return path.String(), nil
}

func checkDerivationPath(path DerivationPath) error {
	if len(path) != 5 {
		return ErrInvalidDerivationPathLength
	}
	// purpose, coin and account must be hardened per BIP-44
	for _, component := range path[:3] {
		if component < hdkeychain.HardenedKeyStart {
			return ErrInvalidDerivationPathAccount
		}
	}
	return nil
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
