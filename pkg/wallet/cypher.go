package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultPBKDF2Iterations is the key-stretching round count used when
	// the caller does not provide one.
	DefaultPBKDF2Iterations = 100000
	// EncryptionKeyLength is the AES-256 key length in bytes.
	EncryptionKeyLength = 32
	// IdentitySaltLength is the length of the random tail of a salt.
	IdentitySaltLength = 32
)

// EncryptionKeyOpts is the struct given to the EncryptionKey function.
type EncryptionKeyOpts struct {
	Password string
	Salt     []byte
	// Iterations defaults to DefaultPBKDF2Iterations.
	Iterations int
}

func (o EncryptionKeyOpts) validate() error {
	if len(o.Password) <= 0 {
		return ErrNullPassword
	}
	if len(o.Salt) <= 0 {
		return ErrNullSalt
	}
	return nil
}

// EncryptionKey derives the symmetric key protecting a mnemonic at rest with
// PBKDF2-SHA512 over the password and the account-bound salt.
func EncryptionKey(opts EncryptionKeyOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}

	return pbkdf2.Key(
		[]byte(opts.Password), opts.Salt,
		iterations, EncryptionKeyLength, sha512.New,
	), nil
}

// NewSaltOpts is the struct given to the NewSalt function.
type NewSaltOpts struct {
	Email    string
	Username string
}

// NewSalt returns hash(email+username) followed by 32 random bytes. Binding
// the salt to the account identity prevents cross-account key reuse even
// when two users picked the same password.
func NewSalt(opts NewSaltOpts) ([]byte, error) {
	identity := sha256.Sum256([]byte(opts.Email + opts.Username))

	random := make([]byte, IdentitySaltLength)
	if _, err := rand.Read(random); err != nil {
		return nil, err
	}

	return append(identity[:], random...), nil
}

// CypherRecord is the outcome of one Encrypt call. The iv is not secret and
// is stored alongside the ciphertext.
type CypherRecord struct {
	CypherText string
	IV         []byte
}

// EncryptOpts is the struct given to the Encrypt method
type EncryptOpts struct {
	PlainText string
	Key       []byte
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Key) != EncryptionKeyLength {
		return ErrNullEncryptionKey
	}
	return nil
}

// Encrypt encrypts a plaintext with AES-256-CBC under the provided key and a
// freshly random iv.
func Encrypt(opts EncryptOpts) (*CypherRecord, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	blockCipher, err := aes.NewCipher(opts.Key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	plaintext := pkcs7Pad([]byte(opts.PlainText), aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(blockCipher, iv).CryptBlocks(ciphertext, plaintext)

	return &CypherRecord{
		CypherText: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         iv,
	}, nil
}

// DecryptOpts is the struct given to the Decrypt method
type DecryptOpts struct {
	CypherText string
	Key        []byte
	IV         []byte
}

func (o DecryptOpts) validate() ([]byte, error) {
	if len(o.CypherText) <= 0 {
		return nil, ErrNullCypherText
	}
	data, err := base64.StdEncoding.DecodeString(o.CypherText)
	if err != nil {
		return nil, ErrInvalidCypherText
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, ErrInvalidCypherText
	}
	if len(o.Key) != EncryptionKeyLength {
		return nil, ErrNullEncryptionKey
	}
	if len(o.IV) != aes.BlockSize {
		return nil, ErrInvalidIV
	}
	return data, nil
}

// Decrypt decrypts a cyphertext with the provided key and iv. A mismatched
// key or iv fails closed with ErrBadDecrypt instead of returning garbage.
func Decrypt(opts DecryptOpts) (string, error) {
	data, err := opts.validate()
	if err != nil {
		return "", err
	}

	blockCipher, err := aes.NewCipher(opts.Key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(data))
	cipher.NewCBCDecrypter(blockCipher, opts.IV).CryptBlocks(plaintext, data)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadDecrypt
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, ErrBadDecrypt
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrBadDecrypt
		}
	}
	return data[:len(data)-padding], nil
}
