package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd-network/transferd/pkg/nodepool"
)

func newTestNodeService(t *testing.T, admin bool) *NodeService {
	t.Helper()

	ledgerHTTP, err := nodepool.NewRegistry(nodepool.RegistryOpts{
		MinCount:  1,
		MaxCount:  3,
		Endpoints: []string{"http://ledger1:1317"},
	})
	require.NoError(t, err)
	appHTTP, err := nodepool.NewRegistry(nodepool.RegistryOpts{
		MinCount:  1,
		MaxCount:  3,
		Endpoints: []string{"http://app1:1317"},
	})
	require.NoError(t, err)
	ledgerWS, err := nodepool.NewWSPool(nodepool.WSPoolOpts{
		MinCount:  1,
		MaxCount:  3,
		Endpoints: []string{"ws://ledger1:26657"},
	})
	require.NoError(t, err)

	return NewNodeService(NodeServiceOpts{
		LedgerHTTP: ledgerHTTP,
		AppHTTP:    appHTTP,
		LedgerWS:   ledgerWS,
		Authorizer: mockAuthorizer{admin: admin},
	})
}

func TestNodeServiceRegisterAndRemove(t *testing.T) {
	svc := newTestNodeService(t, true)
	ctx := context.Background()

	require.NoError(t, svc.RegisterNode(ctx, FamilyLedgerHTTP, "http://ledger2:1317"))
	nodes, err := svc.ListNodes(ctx, FamilyLedgerHTTP)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://ledger1:1317", "http://ledger2:1317"}, nodes)

	err = svc.RegisterNode(ctx, FamilyLedgerHTTP, "http://ledger2:1317")
	assert.Equal(t, nodepool.ErrAlreadyRegistered, err)

	require.NoError(t, svc.RemoveNode(ctx, FamilyLedgerHTTP, "http://ledger2:1317"))
	err = svc.RemoveNode(ctx, FamilyLedgerHTTP, "http://ledger1:1317")
	assert.Equal(t, nodepool.ErrMinReached, err)

	require.NoError(t, svc.RegisterNode(ctx, FamilyLedgerWS, "ws://ledger2:26657"))
	nodes, err = svc.ListNodes(ctx, FamilyLedgerWS)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestNodeServiceRequiresAdmin(t *testing.T) {
	svc := newTestNodeService(t, false)
	ctx := context.Background()

	err := svc.RegisterNode(ctx, FamilyLedgerHTTP, "http://ledger2:1317")
	assert.Equal(t, ErrUnauthorized, err)
	err = svc.RemoveNode(ctx, FamilyLedgerHTTP, "http://ledger1:1317")
	assert.Equal(t, ErrUnauthorized, err)
	_, err = svc.ListNodes(ctx, FamilyLedgerHTTP)
	assert.Equal(t, ErrUnauthorized, err)
}

func TestNodeServiceUnknownFamily(t *testing.T) {
	svc := newTestNodeService(t, true)
	ctx := context.Background()

	err := svc.RegisterNode(ctx, ProtocolFamily("smoke-signals"), "http://x:1")
	assert.Equal(t, ErrUnknownProtocolFamily, err)
}
