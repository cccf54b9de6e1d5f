package ports

import (
	"context"

	"github.com/transferd-network/transferd/internal/core/domain"
)

// RepoManager gives access to every repository of the storage layer and
// guarantees they all work against the same store.
type RepoManager interface {
	TransactionRepository() domain.TransactionRepository
	AccountRepository() domain.AccountRepository
	Close()
}

// QueueService is the producer side of the durable outcome stream.
type QueueService interface {
	// PushToStream serializes, compresses and appends the outcome to the
	// stream. Entries are delivered at least once to the consumer.
	PushToStream(ctx context.Context, outcome *domain.TransferOutcome) error
}

// AdminAuthorizer gates node management operations behind an administrative
// role check. Credential issuance itself lives outside this daemon.
type AdminAuthorizer interface {
	IsAdmin(ctx context.Context) (bool, error)
}

// SecurityPolicy is notified of every upstream origin the browser-facing
// API must be allowed to reach.
type SecurityPolicy interface {
	AllowOrigin(origin string)
}
