package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleConfig = Config{
	GasolinePrice:      6,
	VehicleConsumption: 12,
	MaintenancePerKm:   0.3,
	CostPerMinute:      0.5,
	BaseFee:            3,
	ProfitMarginPct:    20,
	MinimumPrice:       15,
}

func TestSimple(t *testing.T) {
	assert.Equal(t, 25.0, Simple(10, SimpleRates{BasePrice: 5, PricePerKm: 2}))
	assert.Equal(t, 25.0, Simple(10, DefaultSimpleRates))
	assert.Equal(t, 5.0, Simple(0, DefaultSimpleRates))
}

func TestDetailed(t *testing.T) {
	// cost/km = 6/12 + 0.3 = 0.8; base = 3 + 10*0.8 + 20*0.5 = 21; *1.2
	got := Detailed(10, 20, sampleConfig)
	assert.InDelta(t, 25.2, got, 1e-9)
}

func TestDetailedNeverBelowMinimum(t *testing.T) {
	for _, tc := range []struct{ km, min float64 }{
		{0, 0},
		{0.1, 1},
		{1, 0},
		{0, 30},
	} {
		price := Detailed(tc.km, tc.min, sampleConfig)
		assert.GreaterOrEqual(t, price, sampleConfig.MinimumPrice, "km=%v min=%v", tc.km, tc.min)
	}

	b := DetailedBreakdown(0, 0, sampleConfig)
	assert.True(t, b.FloorApplied)
	assert.Equal(t, sampleConfig.MinimumPrice, b.Price)
}

func TestDetailedIsReproducible(t *testing.T) {
	a := Detailed(13.37, 27.9, sampleConfig)
	b := Detailed(13.37, 27.9, sampleConfig)
	assert.Equal(t, math.Float64bits(a), math.Float64bits(b))
}

func TestBreakdownTerms(t *testing.T) {
	b := DetailedBreakdown(10, 20, sampleConfig)
	assert.InDelta(t, 0.8, b.CostPerKm, 1e-12)
	assert.InDelta(t, 8, b.DistanceCost, 1e-12)
	assert.InDelta(t, 10, b.TimeCost, 1e-12)
	assert.InDelta(t, 21, b.BaseCost, 1e-12)
	assert.False(t, b.FloorApplied)
	assert.Equal(t, b.WithMargin, b.Price)
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleConfig.Validate())

	bad := sampleConfig
	bad.VehicleConsumption = 0
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidConfig))

	bad = sampleConfig
	bad.MinimumPrice = -1
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidConfig))

	bad = sampleConfig
	bad.CostPerMinute = math.Inf(1)
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidConfig))
}
