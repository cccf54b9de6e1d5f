package nodepool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBounds(t *testing.T) {
	registry, err := NewRegistry(RegistryOpts{
		MinCount: 1,
		MaxCount: 3,
		Endpoints: []string{
			"http://node1:26657",
			"http://node2:26657",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, registry.Count())

	err = registry.Register("http://node3:26657")
	require.NoError(t, err)
	assert.Equal(t, 3, registry.Count())

	err = registry.Register("http://node4:26657")
	assert.Equal(t, ErrMaxReached, err)
	assert.Equal(t, 3, registry.Count())

	err = registry.Register("http://node3:26657")
	assert.Equal(t, ErrAlreadyRegistered, err)
	assert.Equal(t, 3, registry.Count())

	require.NoError(t, registry.Remove("http://node3:26657"))
	require.NoError(t, registry.Remove("http://node2:26657"))
	assert.Equal(t, 1, registry.Count())

	err = registry.Remove("http://node1:26657")
	assert.Equal(t, ErrMinReached, err)
	assert.Equal(t, 1, registry.Count())

	err = registry.Remove("http://unknown:26657")
	assert.Equal(t, ErrNotRegistered, err)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistryInvalidInput(t *testing.T) {
	tests := []struct {
		opts RegistryOpts
		err  error
	}{
		{
			opts: RegistryOpts{MinCount: 0, MaxCount: 3, Endpoints: []string{"http://node1:26657"}},
			err:  ErrInvalidBounds,
		},
		{
			opts: RegistryOpts{MinCount: 3, MaxCount: 1, Endpoints: []string{"http://node1:26657"}},
			err:  ErrInvalidBounds,
		},
		{
			opts: RegistryOpts{MinCount: 1, MaxCount: 3, Endpoints: nil},
			err:  ErrInvalidBounds,
		},
		{
			opts: RegistryOpts{MinCount: 1, MaxCount: 3, Endpoints: []string{""}},
			err:  ErrInvalidURL,
		},
		{
			opts: RegistryOpts{MinCount: 1, MaxCount: 3, Endpoints: []string{"not a url"}},
			err:  ErrInvalidURL,
		},
	}
	for _, tt := range tests {
		_, err := NewRegistry(tt.opts)
		assert.Equal(t, tt.err, err)
	}
}

func TestRegistryGet(t *testing.T) {
	endpoints := []string{
		"http://node1:26657",
		"http://node2:26657",
		"http://node3:26657",
	}
	registry, err := NewRegistry(RegistryOpts{
		MinCount:  1,
		MaxCount:  5,
		Endpoints: endpoints,
	})
	require.NoError(t, err)

	selector := NewRandomSelector()
	for i := 0; i < 20; i++ {
		endpoint, err := registry.Get(selector)
		require.NoError(t, err)
		assert.Contains(t, endpoints, endpoint)
	}
}

func TestRegistryOnRegister(t *testing.T) {
	seen := make([]string, 0)
	registry, err := NewRegistry(RegistryOpts{
		MinCount:   1,
		MaxCount:   5,
		Endpoints:  []string{"http://node1:1317"},
		OnRegister: func(endpoint string) { seen = append(seen, endpoint) },
	})
	require.NoError(t, err)

	require.NoError(t, registry.Register("http://node2:1317"))
	assert.Equal(t, []string{"http://node1:1317", "http://node2:1317"}, seen)
}

func TestRandomSelectorPicksAmongCandidates(t *testing.T) {
	candidates := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		candidates = append(candidates, fmt.Sprintf("http://node%d:26657", i))
	}

	selector := NewRandomSelector()
	picked := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		c := selector.Pick(candidates)
		assert.Contains(t, candidates, c)
		picked[c] = struct{}{}
	}
	// 200 uniform draws over 5 candidates miss one with negligible probability
	assert.Greater(t, len(picked), 1)
}
