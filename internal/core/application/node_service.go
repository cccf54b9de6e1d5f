package application

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/transferd-network/transferd/internal/core/ports"
	"github.com/transferd-network/transferd/pkg/nodepool"
)

// ProtocolFamily identifies one of the node registries managed by the
// daemon.
type ProtocolFamily string

const (
	// FamilyLedgerHTTP are ledger-query REST nodes.
	FamilyLedgerHTTP ProtocolFamily = "ledger-http"
	// FamilyAppHTTP are application REST nodes.
	FamilyAppHTTP ProtocolFamily = "app-http"
	// FamilyLedgerWS are ledger event-subscription websocket nodes.
	FamilyLedgerWS ProtocolFamily = "ledger-ws"
)

// NodeServiceOpts is the struct given to the NewNodeService factory.
type NodeServiceOpts struct {
	LedgerHTTP *nodepool.Registry
	AppHTTP    *nodepool.Registry
	LedgerWS   *nodepool.WSPool
	Authorizer ports.AdminAuthorizer
}

// NodeService exposes the administrative node management operations. Every
// mutation is gated by the administrative role check.
type NodeService struct {
	ledgerHTTP *nodepool.Registry
	appHTTP    *nodepool.Registry
	ledgerWS   *nodepool.WSPool
	authorizer ports.AdminAuthorizer
}

// NewNodeService returns a node management service over the given pools.
func NewNodeService(opts NodeServiceOpts) *NodeService {
	return &NodeService{
		ledgerHTTP: opts.LedgerHTTP,
		appHTTP:    opts.AppHTTP,
		ledgerWS:   opts.LedgerWS,
		authorizer: opts.Authorizer,
	}
}

func (s *NodeService) authorize(ctx context.Context) error {
	ok, err := s.authorizer.IsAdmin(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// RegisterNode adds an endpoint to the registry of the given family.
func (s *NodeService) RegisterNode(
	ctx context.Context, family ProtocolFamily, endpoint string,
) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}

	var err error
	switch family {
	case FamilyLedgerHTTP:
		err = s.ledgerHTTP.Register(endpoint)
	case FamilyAppHTTP:
		err = s.appHTTP.Register(endpoint)
	case FamilyLedgerWS:
		err = s.ledgerWS.Register(endpoint)
	default:
		return ErrUnknownProtocolFamily
	}
	if err != nil {
		return err
	}

	log.Debugf("registered %s node %s", family, endpoint)
	return nil
}

// RemoveNode deletes an endpoint from the registry of the given family.
func (s *NodeService) RemoveNode(
	ctx context.Context, family ProtocolFamily, endpoint string,
) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}

	var err error
	switch family {
	case FamilyLedgerHTTP:
		err = s.ledgerHTTP.Remove(endpoint)
	case FamilyAppHTTP:
		err = s.appHTTP.Remove(endpoint)
	case FamilyLedgerWS:
		err = s.ledgerWS.Remove(endpoint)
	default:
		return ErrUnknownProtocolFamily
	}
	if err != nil {
		return err
	}

	log.Debugf("removed %s node %s", family, endpoint)
	return nil
}

// ListNodes returns the endpoints registered for the given family.
func (s *NodeService) ListNodes(
	ctx context.Context, family ProtocolFamily,
) ([]string, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	switch family {
	case FamilyLedgerHTTP:
		return s.ledgerHTTP.List(), nil
	case FamilyAppHTTP:
		return s.appHTTP.List(), nil
	case FamilyLedgerWS:
		return s.ledgerWS.List(), nil
	default:
		return nil, ErrUnknownProtocolFamily
	}
}
