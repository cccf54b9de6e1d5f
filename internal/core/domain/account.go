package domain

// Account is a ledger address known to the store. Receiver accounts may be
// anonymous: rows created on first sight of an address, not tied to a user.
type Account struct {
	Address   string
	UserID    string
	Anonymous bool
}

// EncryptedMnemonic is the at-rest form of a user's wallet secret. The iv
// and salt are not secret and are stored alongside the ciphertext; the
// ciphertext is only as trustworthy as the password-derived key, since the
// cipher mode does not authenticate.
type EncryptedMnemonic struct {
	CypherText string
	IV         []byte
	Salt       []byte
}
