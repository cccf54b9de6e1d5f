package application

import (
	"context"
	"sync"

	"github.com/transferd-network/transferd/internal/core/domain"
)

type mockAccountRepository struct {
	passwordHash      string
	encryptedMnemonic *domain.EncryptedMnemonic
	derivedCount      int
}

func (m *mockAccountRepository) CountDerivedAccounts(
	_ context.Context, _ string,
) (int, error) {
	return m.derivedCount, nil
}

func (m *mockAccountRepository) GetEncryptedMnemonic(
	_ context.Context, _ string,
) (*domain.EncryptedMnemonic, error) {
	if m.encryptedMnemonic == nil {
		return nil, domain.ErrAccountNotFound
	}
	return m.encryptedMnemonic, nil
}

func (m *mockAccountRepository) GetPasswordHash(
	_ context.Context, _ string,
) (string, error) {
	return m.passwordHash, nil
}

type mockRepoManager struct {
	accounts     *mockAccountRepository
	transactions domain.TransactionRepository
}

func (m *mockRepoManager) TransactionRepository() domain.TransactionRepository {
	return m.transactions
}

func (m *mockRepoManager) AccountRepository() domain.AccountRepository {
	return m.accounts
}

func (m *mockRepoManager) Close() {}

type mockQueue struct {
	mtx      sync.Mutex
	outcomes []*domain.TransferOutcome
}

func (m *mockQueue) PushToStream(
	_ context.Context, outcome *domain.TransferOutcome,
) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func (m *mockQueue) pushed() []*domain.TransferOutcome {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.outcomes
}

type mockAuthorizer struct {
	admin bool
}

func (m mockAuthorizer) IsAdmin(_ context.Context) (bool, error) {
	return m.admin, nil
}
