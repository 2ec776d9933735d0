package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		supply     int
		demand     int
		basePrice  int
		wantPrice  int
		wantMult   float64
		wantCapped bool
	}{
		{"critical shortage", 100, 150, 10000, 11500, 1.15, false},
		{"shortage", 100, 120, 10000, 10800, 1.08, false},
		{"balanced upper bound", 100, 110, 10000, 10000, 1.0, false},
		{"balanced lower bound", 100, 80, 10000, 10000, 1.0, false},
		{"surplus", 100, 50, 10000, 9000, 0.90, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.supply, tt.demand, tt.basePrice, DefaultSeasonFactor)
			assert.Equal(t, tt.wantPrice, got.SuggestedPrice)
			assert.Equal(t, tt.wantMult, got.Multiplier)
			assert.Equal(t, tt.wantCapped, got.IsCapped)
			require.NotNil(t, got.Ratio)
		})
	}
}

func TestCalculate_SeasonFactorCaps(t *testing.T) {
	// 1.15 × 2.0 = 2.30 would blow past the +50% limit.
	got := Calculate(100, 150, 10000, 2.0)
	assert.Equal(t, 15000, got.SuggestedPrice)
	assert.True(t, got.IsCapped)
	assert.Contains(t, got.Reason, "CAPPED at +50%")

	// 0.90 × 0.5 = 0.45 falls below the -30% floor.
	got = Calculate(100, 50, 10000, 0.5)
	assert.Equal(t, 7000, got.SuggestedPrice)
	assert.True(t, got.IsCapped)
	assert.Contains(t, got.Reason, "FLOORED at -30%")
}

func TestCalculate_NoSupply(t *testing.T) {
	got := Calculate(0, 0, 5000, DefaultSeasonFactor)
	assert.Equal(t, 5000, got.SuggestedPrice)
	assert.Nil(t, got.Ratio)
	assert.Equal(t, "No supply available - using base price", got.Reason)
	assert.False(t, got.IsCapped)
}

func TestCalculate_Deterministic(t *testing.T) {
	a := Calculate(137, 191, 10500, 1.1)
	b := Calculate(137, 191, 10500, 1.1)
	assert.Equal(t, a, b)
}

func TestRatio_Tiers(t *testing.T) {
	tests := []struct {
		name   string
		supply int
		demand int
		want   Tier
	}{
		{"critical", 100, 131, TierCriticalShortage},
		{"shortage", 100, 111, TierShortage},
		{"balanced", 100, 100, TierBalanced},
		{"surplus", 100, 79, TierSurplus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.supply, tt.demand)
			assert.Equal(t, tt.want, got.Tier)
			require.NotNil(t, got.Ratio)
		})
	}
}

func TestRatio_NoSupply(t *testing.T) {
	got := Ratio(0, 10)
	assert.Equal(t, TierError, got.Tier)
	assert.Nil(t, got.Ratio)
}

func TestValidateInputs(t *testing.T) {
	tests := []struct {
		name      string
		supply    int
		demand    int
		basePrice int
		wantErr   error
	}{
		{"valid", 100, 100, 10000, nil},
		{"zero base price", 100, 100, 0, ErrBasePriceNotPositive},
		{"negative supply", -1, 100, 10000, ErrNegativeSupply},
		{"negative demand", 100, -1, 10000, ErrNegativeDemand},
		{"demand without supply", 0, 10, 10000, ErrDemandWithoutSupply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputs(tt.supply, tt.demand, tt.basePrice)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateSeasonFactor(t *testing.T) {
	assert.NoError(t, ValidateSeasonFactor(1.0))
	assert.NoError(t, ValidateSeasonFactor(0.5))
	assert.NoError(t, ValidateSeasonFactor(2.0))
	assert.ErrorIs(t, ValidateSeasonFactor(0.4), ErrSeasonFactorRange)
	assert.ErrorIs(t, ValidateSeasonFactor(2.1), ErrSeasonFactorRange)
}

func TestRules_Complete(t *testing.T) {
	doc := Rules()
	assert.Len(t, doc.SupplyDemandTiers, 4)
	assert.False(t, doc.AIUsed)
	assert.Equal(t, "+50%", doc.Safeguards["max_price_increase"])
	assert.Equal(t, "-30%", doc.Safeguards["max_price_decrease"])
}
