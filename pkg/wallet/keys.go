package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Account is one keypair derived from the wallet seed, identified by its
// derivation path and bech32 address. The private key never leaves the
// wallet boundary except as a signature.
type Account struct {
	Address        string
	PubKey         []byte
	DerivationPath string

	privateKey *btcec.PrivateKey
}

// DeriveAccountOpts is the struct given to the DeriveAccount method.
type DeriveAccountOpts struct {
	DerivationPath string
}

func (o DeriveAccountOpts) validate() error {
	path, err := ParseDerivationPath(o.DerivationPath)
	if err != nil {
		return err
	}
	return checkDerivationPath(path)
}

// DeriveAccount derives the keypair at the given path and registers the
// resulting account on the wallet. The same (seed, path) pair always yields
// the same keypair and address.
func (w *Wallet) DeriveAccount(opts DeriveAccountOpts) (*Account, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	hdNode, err := hdkeychain.NewMaster(w.seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	path, _ := ParseDerivationPath(opts.DerivationPath)
	for _, step := range path {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, err
		}
	}

	privateKey, err := hdNode.ECPrivKey()
	if err != nil {
		return nil, err
	}
	publicKey, err := hdNode.ECPubKey()
	if err != nil {
		return nil, err
	}

	address, err := addressFromPubKey(w.hrp, publicKey)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Address:        address,
		PubKey:         publicKey.SerializeCompressed(),
		DerivationPath: opts.DerivationPath,
		privateKey:     privateKey,
	}
	w.accounts[address] = account
	return account, nil
}
