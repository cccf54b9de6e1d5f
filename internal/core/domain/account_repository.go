package domain

import "context"

// AccountRepository gives access to user account rows and their wallet
// secrets in encrypted form.
type AccountRepository interface {
	// CountDerivedAccounts returns how many accounts were already derived
	// for the given user. The count is the next account index: deriving at
	// it never reuses an address.
	CountDerivedAccounts(ctx context.Context, userID string) (int, error)
	// GetEncryptedMnemonic returns the user's encrypted wallet secret.
	GetEncryptedMnemonic(ctx context.Context, userID string) (*EncryptedMnemonic, error)
	// GetPasswordHash returns the stored password hash of the user.
	GetPasswordHash(ctx context.Context, userID string) (string, error)
}
