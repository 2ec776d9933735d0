// Package chain integrates the backend with the EthaniPricing and
// EthaniRegion contracts on Arbitrum Sepolia. Real mode performs read-only
// eth_call requests; mock mode reproduces the contract arithmetic locally so
// development and tests never need network access. Any contract failure falls
// back to the base price.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Mode selects between local calculation and deployed contracts.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeReal Mode = "real"
)

// Fallback reason codes.
const (
	ReasonBlockchainUnavailable = "BLOCKCHAIN_UNAVAILABLE"
	ReasonContractCallFailed    = "CONTRACT_CALL_FAILED"
	ReasonInsufficientData      = "INSUFFICIENT_DATA"
)

// DefaultRPCURL is the Arbitrum Sepolia public endpoint.
const DefaultRPCURL = "https://sepolia-rollup.arbitrum.io/rpc"

// pricingABI is the minimal EthaniPricing interface: just calculatePrice.
const pricingABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "supply", "type": "uint256"},
		{"internalType": "uint256", "name": "demand", "type": "uint256"},
		{"internalType": "uint256", "name": "basePrice", "type": "uint256"}
	],
	"name": "calculatePrice",
	"outputs": [
		{"internalType": "uint256", "name": "finalPrice", "type": "uint256"},
		{"internalType": "string", "name": "reason", "type": "string"},
		{"internalType": "string", "name": "tier", "type": "string"}
	],
	"stateMutability": "pure",
	"type": "function"
}]`

var (
	parsedABI     abi.ABI
	parseABIOnce  sync.Once
	parseABIError error
)

func pricingContractABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		parsedABI, parseABIError = abi.JSON(strings.NewReader(pricingABI))
	})
	return parsedABI, parseABIError
}

// Config holds contract endpoints and addresses.
type Config struct {
	Mode           Mode   `mapstructure:"mode"`
	RPCURL         string `mapstructure:"rpc_url"`
	PricingAddress string `mapstructure:"pricing_address"`
	RegionAddress  string `mapstructure:"region_address"`
}

// Audit carries the arithmetic behind a quote.
type Audit struct {
	Supply          int     `json:"supply,omitempty"`
	Demand          int     `json:"demand,omitempty"`
	Ratio           float64 `json:"ratio,omitempty"`
	Multiplier      float64 `json:"multiplier,omitempty"`
	BasePrice       int     `json:"base_price"`
	CalculatedPrice int     `json:"calculated_price,omitempty"`
	FallbackReason  string  `json:"fallback_reason,omitempty"`
}

// Quote is the result of a price request, from whichever source answered.
type Quote struct {
	FinalPrice      int    `json:"final_price"`
	Reason          string `json:"reason"`
	Source          string `json:"source"`
	IsCapped        bool   `json:"is_capped"`
	ContractAddress string `json:"contract_address,omitempty"`
	Audit           Audit  `json:"audit"`
}

// Health reports the integration status served at GET /blockchain.
type Health struct {
	Mode              Mode   `json:"mode"`
	ContractsDeployed bool   `json:"contracts_deployed"`
	PricingContract   string `json:"pricing_contract"`
	RegionContract    string `json:"region_contract"`
	RPCURL            string `json:"rpc_url"`
	Ready             bool   `json:"ready"`
}

// Client talks to the pricing contracts, or simulates them.
type Client struct {
	cfg      Config
	deployed bool
	dial     func(ctx context.Context, url string) (contractCaller, error)
}

// contractCaller is the slice of ethclient.Client the integration needs.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// New builds a Client. Real mode without deployed contract addresses
// downgrades to mock, matching the behavior of the service this replaces.
func New(cfg Config) *Client {
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	deployed := cfg.PricingAddress != "" && cfg.RegionAddress != ""
	if cfg.Mode == ModeReal && !deployed {
		GetZlog().Warn().Msg("real mode requested but contracts not deployed, using mock mode")
		cfg.Mode = ModeMock
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMock
	}
	return &Client{
		cfg:      cfg,
		deployed: deployed,
		dial: func(ctx context.Context, url string) (contractCaller, error) {
			return ethclient.DialContext(ctx, url)
		},
	}
}

// Mode returns the effective operating mode.
func (c *Client) Mode() Mode {
	return c.cfg.Mode
}

// CalculatePrice returns a price quote for the given market snapshot. In real
// mode the EthaniPricing contract answers; on any failure the quote falls
// back to the base price rather than erroring out.
func (c *Client) CalculatePrice(ctx context.Context, supply, demand, basePrice int, region string) Quote {
	if c.cfg.Mode == ModeReal && c.deployed {
		quote, err := c.callPricingContract(ctx, supply, demand, basePrice)
		if err != nil {
			GetZlog().Error().Err(err).Str("region", region).Msg("contract call failed")
			return fallbackQuote(basePrice, ReasonContractCallFailed)
		}
		return quote
	}
	return mockQuote(supply, demand, basePrice)
}

// callPricingContract performs a read-only calculatePrice call.
func (c *Client) callPricingContract(ctx context.Context, supply, demand, basePrice int) (Quote, error) {
	contractABI, err := pricingContractABI()
	if err != nil {
		return Quote{}, fmt.Errorf("parse pricing ABI: %w", err)
	}

	data, err := contractABI.Pack("calculatePrice",
		big.NewInt(int64(supply)), big.NewInt(int64(demand)), big.NewInt(int64(basePrice)))
	if err != nil {
		return Quote{}, fmt.Errorf("pack calculatePrice: %w", err)
	}

	client, err := c.dial(ctx, c.cfg.RPCURL)
	if err != nil {
		return Quote{}, fmt.Errorf("dial %s: %w", c.cfg.RPCURL, err)
	}
	defer client.Close()

	addr := common.HexToAddress(c.cfg.PricingAddress)
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("eth_call calculatePrice: %w", err)
	}

	values, err := contractABI.Unpack("calculatePrice", out)
	if err != nil {
		return Quote{}, fmt.Errorf("unpack calculatePrice: %w", err)
	}
	if len(values) != 3 {
		return Quote{}, fmt.Errorf("unexpected calculatePrice output arity %d", len(values))
	}
	finalPrice, ok := values[0].(*big.Int)
	if !ok {
		return Quote{}, fmt.Errorf("unexpected finalPrice type %T", values[0])
	}
	if !finalPrice.IsInt64() {
		return Quote{}, fmt.Errorf("finalPrice %s overflows int64", finalPrice)
	}
	reason, _ := values[1].(string)
	tier, _ := values[2].(string)

	return Quote{
		FinalPrice:      int(finalPrice.Int64()),
		Reason:          fmt.Sprintf("%s [%s]", reason, tier),
		Source:          "smart_contract",
		ContractAddress: c.cfg.PricingAddress,
		Audit: Audit{
			Supply:    supply,
			Demand:    demand,
			BasePrice: basePrice,
		},
	}, nil
}

// mockQuote mirrors EthaniPricing.sol arithmetic, including its
// integer truncation, so mock and contract answers never diverge.
func mockQuote(supply, demand, basePrice int) Quote {
	if supply <= 0 || demand < 0 {
		return fallbackQuote(basePrice, ReasonInsufficientData)
	}

	ratio := float64(demand) / float64(supply)

	var multiplier float64
	var reason string
	switch {
	case ratio > 1.30:
		multiplier = 1.15
		reason = "Critical shortage (ratio > 1.30)"
	case ratio > 1.10:
		multiplier = 1.08
		reason = "Shortage (ratio > 1.10)"
	case ratio < 0.80:
		multiplier = 0.90
		reason = "Surplus (ratio < 0.80)"
	default:
		multiplier = 1.0
		reason = "Balanced (0.80-1.10)"
	}

	calculated := int(float64(basePrice) * multiplier)
	maxAllowed := int(float64(basePrice) * 1.50)
	minAllowed := int(float64(basePrice) * 0.70)

	capped := false
	switch {
	case calculated > maxAllowed:
		calculated = maxAllowed
		reason += " [CAPPED +50%]"
		capped = true
	case calculated < minAllowed:
		calculated = minAllowed
		reason += " [FLOORED -30%]"
		capped = true
	}

	return Quote{
		FinalPrice: calculated,
		Reason:     reason,
		Source:     "mock_pricing",
		IsCapped:   capped,
		Audit: Audit{
			Supply:          supply,
			Demand:          demand,
			Ratio:           round2(ratio),
			Multiplier:      multiplier,
			BasePrice:       basePrice,
			CalculatedPrice: calculated,
		},
	}
}

func fallbackQuote(basePrice int, reason string) Quote {
	return Quote{
		FinalPrice: basePrice,
		Reason:     reason,
		Source:     "fallback",
		Audit: Audit{
			BasePrice:      basePrice,
			FallbackReason: reason,
		},
	}
}

// mockBasePrices are per-region reference prices for development.
var mockBasePrices = map[string]int{
	"default":          10000,
	"minahasa_selatan": 10500,
	"java":             9800,
	"sumatra":          10200,
}

// BasePrice returns the reference price for a region. Contract-backed region
// prices are served once EthaniRegion reads are wired up; until then the
// development defaults answer.
func (c *Client) BasePrice(region string) int {
	key := strings.ToLower(strings.ReplaceAll(region, " ", "_"))
	if price, ok := mockBasePrices[key]; ok {
		return price
	}
	return mockBasePrices["default"]
}

// Health reports the integration status.
func (c *Client) Health() Health {
	pricing := c.cfg.PricingAddress
	if pricing == "" {
		pricing = "NOT_SET"
	}
	region := c.cfg.RegionAddress
	if region == "" {
		region = "NOT_SET"
	}
	return Health{
		Mode:              c.cfg.Mode,
		ContractsDeployed: c.deployed,
		PricingContract:   pricing,
		RegionContract:    region,
		RPCURL:            c.cfg.RPCURL,
		Ready:             c.cfg.Mode == ModeReal && c.deployed,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
