package pricing

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidConfig = errors.New("pricing: invalid config")

// SimpleRates drive the linear fallback used when no detailed config exists.
type SimpleRates struct {
	BasePrice  float64 `json:"base_price"`
	PricePerKm float64 `json:"price_per_km"`
}

var DefaultSimpleRates = SimpleRates{BasePrice: 5, PricePerKm: 2}

// Config is the detailed cost model. ProfitMarginPct is a percentage
// (15 means +15%), VehicleConsumption is km per unit of fuel.
type Config struct {
	GasolinePrice      float64 `json:"gasoline_price"`
	VehicleConsumption float64 `json:"vehicle_consumption"`
	MaintenancePerKm   float64 `json:"maintenance_per_km"`
	CostPerMinute      float64 `json:"cost_per_minute"`
	BaseFee            float64 `json:"base_fee"`
	ProfitMarginPct    float64 `json:"profit_margin_pct"`
	MinimumPrice       float64 `json:"minimum_price"`
}

func (c Config) Validate() error {
	if c.VehicleConsumption <= 0 || math.IsNaN(c.VehicleConsumption) {
		return fmt.Errorf("%w: vehicle_consumption must be positive", ErrInvalidConfig)
	}
	fields := map[string]float64{
		"gasoline_price":     c.GasolinePrice,
		"maintenance_per_km": c.MaintenancePerKm,
		"cost_per_minute":    c.CostPerMinute,
		"base_fee":           c.BaseFee,
		"profit_margin_pct":  c.ProfitMarginPct,
		"minimum_price":      c.MinimumPrice,
	}
	for name, v := range fields {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidConfig, name)
		}
	}
	return nil
}

func Simple(distanceKm float64, r SimpleRates) float64 {
	return r.BasePrice + distanceKm*r.PricePerKm
}

// Breakdown exposes the intermediate terms of the detailed model.
type Breakdown struct {
	CostPerKm    float64 `json:"cost_per_km"`
	DistanceCost float64 `json:"distance_cost"`
	TimeCost     float64 `json:"time_cost"`
	BaseCost     float64 `json:"base_cost"`
	WithMargin   float64 `json:"with_margin"`
	Price        float64 `json:"price"`
	FloorApplied bool    `json:"floor_applied"`
}

func Detailed(distanceKm, durationMin float64, c Config) float64 {
	return DetailedBreakdown(distanceKm, durationMin, c).Price
}

// DetailedBreakdown evaluates the model left to right with no intermediate
// rounding, so identical inputs always give identical bits.
func DetailedBreakdown(distanceKm, durationMin float64, c Config) Breakdown {
	costPerKm := c.GasolinePrice/c.VehicleConsumption + c.MaintenancePerKm
	distanceCost := distanceKm * costPerKm
	timeCost := durationMin * c.CostPerMinute
	baseCost := c.BaseFee + distanceCost + timeCost
	withMargin := baseCost * (1 + c.ProfitMarginPct/100)

	b := Breakdown{
		CostPerKm:    costPerKm,
		DistanceCost: distanceCost,
		TimeCost:     timeCost,
		BaseCost:     baseCost,
		WithMargin:   withMargin,
		Price:        withMargin,
	}
	if withMargin < c.MinimumPrice {
		b.Price = c.MinimumPrice
		b.FloorApplied = true
	}
	return b
}
