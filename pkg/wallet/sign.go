package wallet

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Coin is a denominated amount. Amount stays a string end to end so values
// wider than a machine word survive signing and serialization untouched.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// TransferDoc is the canonical document signed for one transfer.
type TransferDoc struct {
	ChainID       string `json:"chain_id"`
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	Amount        []Coin `json:"amount"`
	Fee           []Coin `json:"fee"`
	Gas           string `json:"gas"`
	Memo          string `json:"memo"`
}

// SignedTx is the outcome of one SignDirect call.
type SignedTx struct {
	DocBytes  []byte
	Signature []byte
	PubKey    []byte
}

// SignDirectOpts is the struct given to the SignDirect method.
type SignDirectOpts struct {
	SignerAddress string
	Doc           TransferDoc
}

func (o SignDirectOpts) validate() error {
	if len(o.SignerAddress) <= 0 {
		return ErrAddressNotFound
	}
	return nil
}

// SignDirect computes the canonical signing bytes of the given transfer doc
// and signs their sha256 digest with the derived account matching the signer
// address.
func (w *Wallet) SignDirect(opts SignDirectOpts) (*SignedTx, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	account, err := w.Account(opts.SignerAddress)
	if err != nil {
		return nil, err
	}

	docBytes, err := canonicalJSON(opts.Doc)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(docBytes)
	signature := ecdsa.Sign(account.privateKey, digest[:])

	return &SignedTx{
		DocBytes:  docBytes,
		Signature: signature.Serialize(),
		PubKey:    account.PubKey,
	}, nil
}

// canonicalJSON marshals v with object keys sorted, so the signing bytes of
// a doc never depend on struct field order.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	// maps marshal with sorted keys
	return json.Marshal(tree)
}
