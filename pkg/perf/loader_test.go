package perf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_CachesResult(t *testing.T) {
	loader := NewLoader(NewMonitor(), NewCache())

	var loads int
	load := func() (interface{}, error) {
		loads++
		return "payload", nil
	}

	value, err := loader.Load("k", load, LoadOptions{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, "payload", value)

	value, err = loader.Load("k", load, LoadOptions{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, "payload", value)
	assert.Equal(t, 1, loads, "second load should be served from cache")
}

func TestLoader_BypassesCacheWhenDisabled(t *testing.T) {
	loader := NewLoader(NewMonitor(), NewCache())

	var loads int
	load := func() (interface{}, error) {
		loads++
		return loads, nil
	}

	_, err := loader.Load("k", load, LoadOptions{})
	require.NoError(t, err)
	_, err = loader.Load("k", load, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestLoader_ErrorIsNotCached(t *testing.T) {
	monitor := NewMonitor()
	loader := NewLoader(monitor, NewCache())

	wantErr := errors.New("backend down")
	_, err := loader.Load("k", func() (interface{}, error) { return nil, wantErr }, LoadOptions{UseCache: true})
	assert.Equal(t, wantErr, err)

	var loads int
	value, err := loader.Load("k", func() (interface{}, error) {
		loads++
		return "recovered", nil
	}, LoadOptions{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, 1, loads)

	stats := monitor.GetStatistics()
	assert.Equal(t, 1, stats["failed_operations"])
}
