package shipper_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/tournevent/storefront/pkg/shipper/mock"
)

func TestRegistry_Register(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("usps-legacy"))

	got, err := registry.Get("usps-legacy")
	require.NoError(t, err, "carrier should be registered")
	assert.Equal(t, "usps-legacy", got.Name())
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("usps-v3"))
	assert.Equal(t, 1, registry.Count())

	registry.Register(mock.New("usps-v3"))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := shipper.NewRegistry()

	_, err := registry.Get("fedex")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrCarrierNotFound))
}

func TestRegistry_Names(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("usps-v3"))
	registry.Register(mock.New("usps-legacy"))

	assert.Equal(t, []string{"usps-legacy", "usps-v3"}, registry.Names())
}

func TestRegistry_Count(t *testing.T) {
	registry := shipper.NewRegistry()
	assert.Equal(t, 0, registry.Count())

	registry.Register(mock.New("usps-legacy"))
	assert.Equal(t, 1, registry.Count())

	registry.Register(mock.New("usps-v3"))
	assert.Equal(t, 2, registry.Count())
}
