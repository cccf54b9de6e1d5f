package postgresdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/transferd-network/transferd/internal/core/domain"
)

const (
	countDerivedAccountsQuery = `
		SELECT count(*) FROM derived_accounts WHERE user_id = $1`
	getEncryptedMnemonicQuery = `
		SELECT cypher_text, iv, salt FROM wallets WHERE user_id = $1`
	getPasswordHashQuery = `
		SELECT password_hash FROM users WHERE id = $1`
)

type accountRepositoryImpl struct {
	pgxPool *pgxpool.Pool
}

func NewAccountRepositoryImpl(pgxPool *pgxpool.Pool) domain.AccountRepository {
	return &accountRepositoryImpl{pgxPool}
}

func (a *accountRepositoryImpl) CountDerivedAccounts(
	ctx context.Context, userID string,
) (int, error) {
	var count int
	if err := a.pgxPool.QueryRow(
		ctx, countDerivedAccountsQuery, userID,
	).Scan(&count); err != nil {
		return -1, err
	}
	return count, nil
}

func (a *accountRepositoryImpl) GetEncryptedMnemonic(
	ctx context.Context, userID string,
) (*domain.EncryptedMnemonic, error) {
	encrypted := &domain.EncryptedMnemonic{}
	if err := a.pgxPool.QueryRow(
		ctx, getEncryptedMnemonicQuery, userID,
	).Scan(&encrypted.CypherText, &encrypted.IV, &encrypted.Salt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return encrypted, nil
}

func (a *accountRepositoryImpl) GetPasswordHash(
	ctx context.Context, userID string,
) (string, error) {
	var hash string
	if err := a.pgxPool.QueryRow(
		ctx, getPasswordHashQuery, userID,
	).Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrAccountNotFound
		}
		return "", err
	}
	return hash, nil
}
