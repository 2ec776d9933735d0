package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DowngradesToMockWithoutContracts(t *testing.T) {
	c := New(Config{Mode: ModeReal})
	assert.Equal(t, ModeMock, c.Mode())

	h := c.Health()
	assert.False(t, h.Ready)
	assert.False(t, h.ContractsDeployed)
	assert.Equal(t, "NOT_SET", h.PricingContract)
	assert.Equal(t, DefaultRPCURL, h.RPCURL)
}

func TestNew_RealModeWithContracts(t *testing.T) {
	c := New(Config{
		Mode:           ModeReal,
		PricingAddress: "0xc92fd01c122821Eb2C911d16468B20b07E25abC0",
		RegionAddress:  "0x5836cdDE4D05B0aBDB97AE556a0b9E3971a16143",
	})
	assert.Equal(t, ModeReal, c.Mode())
	assert.True(t, c.Health().Ready)
}

func TestCalculatePrice_MockTiers(t *testing.T) {
	c := New(Config{Mode: ModeMock})
	ctx := context.Background()

	tests := []struct {
		name      string
		supply    int
		demand    int
		wantPrice int
	}{
		{"critical shortage", 100, 150, 11500},
		{"shortage", 100, 120, 10800},
		{"balanced", 100, 100, 10000},
		{"surplus", 100, 50, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := c.CalculatePrice(ctx, tt.supply, tt.demand, 10000, "Default Region")
			assert.Equal(t, tt.wantPrice, quote.FinalPrice)
			assert.Equal(t, "mock_pricing", quote.Source)
			assert.False(t, quote.IsCapped)
		})
	}
}

func TestCalculatePrice_MockInsufficientData(t *testing.T) {
	c := New(Config{Mode: ModeMock})
	quote := c.CalculatePrice(context.Background(), 0, 100, 10000, "Default Region")
	assert.Equal(t, 10000, quote.FinalPrice)
	assert.Equal(t, "fallback", quote.Source)
	assert.Equal(t, ReasonInsufficientData, quote.Reason)
}

func TestCalculatePrice_ContractFailureFallsBack(t *testing.T) {
	c := New(Config{
		Mode:           ModeReal,
		PricingAddress: "0xc92fd01c122821Eb2C911d16468B20b07E25abC0",
		RegionAddress:  "0x5836cdDE4D05B0aBDB97AE556a0b9E3971a16143",
	})
	c.dial = func(ctx context.Context, url string) (contractCaller, error) {
		return nil, errors.New("connection refused")
	}

	quote := c.CalculatePrice(context.Background(), 100, 150, 10000, "Default Region")
	assert.Equal(t, 10000, quote.FinalPrice)
	assert.Equal(t, "fallback", quote.Source)
	assert.Equal(t, ReasonContractCallFailed, quote.Reason)
}

type fakeCaller struct {
	output []byte
	err    error
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.output, f.err
}

func (f *fakeCaller) Close() {}

func TestCalculatePrice_ContractAnswer(t *testing.T) {
	contractABI, err := pricingContractABI()
	require.NoError(t, err)

	out, err := contractABI.Methods["calculatePrice"].Outputs.Pack(
		big.NewInt(11500), "Critical shortage", "tier_1")
	require.NoError(t, err)

	c := New(Config{
		Mode:           ModeReal,
		PricingAddress: "0xc92fd01c122821Eb2C911d16468B20b07E25abC0",
		RegionAddress:  "0x5836cdDE4D05B0aBDB97AE556a0b9E3971a16143",
	})
	c.dial = func(ctx context.Context, url string) (contractCaller, error) {
		return &fakeCaller{output: out}, nil
	}

	quote := c.CalculatePrice(context.Background(), 100, 150, 10000, "Default Region")
	assert.Equal(t, 11500, quote.FinalPrice)
	assert.Equal(t, "smart_contract", quote.Source)
	assert.Equal(t, "Critical shortage [tier_1]", quote.Reason)
	assert.Equal(t, "0xc92fd01c122821Eb2C911d16468B20b07E25abC0", quote.ContractAddress)
}

func TestCalculatePrice_ContractAnswerOverflowFallsBack(t *testing.T) {
	contractABI, err := pricingContractABI()
	require.NoError(t, err)

	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	out, err := contractABI.Methods["calculatePrice"].Outputs.Pack(
		huge, "Critical shortage", "tier_1")
	require.NoError(t, err)

	c := New(Config{
		Mode:           ModeReal,
		PricingAddress: "0xc92fd01c122821Eb2C911d16468B20b07E25abC0",
		RegionAddress:  "0x5836cdDE4D05B0aBDB97AE556a0b9E3971a16143",
	})
	c.dial = func(ctx context.Context, url string) (contractCaller, error) {
		return &fakeCaller{output: out}, nil
	}

	quote := c.CalculatePrice(context.Background(), 100, 150, 10000, "Default Region")
	assert.Equal(t, 10000, quote.FinalPrice)
	assert.Equal(t, "fallback", quote.Source)
	assert.Equal(t, ReasonContractCallFailed, quote.Reason)
}

func TestBasePrice(t *testing.T) {
	c := New(Config{Mode: ModeMock})
	assert.Equal(t, 10500, c.BasePrice("Minahasa Selatan"))
	assert.Equal(t, 9800, c.BasePrice("java"))
	assert.Equal(t, 10000, c.BasePrice("Unknown Region"))
}
