package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"w2rchain/config"
	"w2rchain/core/events"
	"w2rchain/native/amm"
	"w2rchain/native/pricefeed"
	"w2rchain/native/registry"
	"w2rchain/native/rental"
	"w2rchain/native/staking"
	"w2rchain/native/token"
	"w2rchain/native/vault"
	"w2rchain/observability/logging"
	"w2rchain/rpc"
	"w2rchain/state"
	"w2rchain/storage"
)

const eventRingCapacity = 2048

// defaultTokenCap bounds total W2R supply when the operator leaves TokenCap
// unset: 160 million tokens at 18 decimals.
var defaultTokenCap = new(big.Int).Mul(big.NewInt(160_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	devMode := flag.Bool("dev", false, "DEV ONLY: run against an in-memory database")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("w2rd", cfg.Environment, cfg.LogFile)

	owner, err := parseAddress(cfg.Owner)
	if err != nil {
		logger.Error("Invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *devMode {
		db = storage.NewMemDB()
		logger.Warn("Running with in-memory storage; state is lost on exit")
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		defer ldb.Close()
		db = ldb
	}

	manager := state.NewManager(db)
	ring := events.NewRing(eventRingCapacity)

	engines, err := wireEngines(cfg, manager, ring, owner)
	if err != nil {
		logger.Error("Failed to wire engines", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engines, ring)
	if strings.TrimSpace(cfg.RPCToken) != "" {
		server.SetAuthToken(cfg.RPCToken)
	}

	logger.Info("Starting w2rd",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.Bool("dev", *devMode),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// wireEngines builds every native engine over the shared state manager and
// links the cross-module hooks: registries onboard into the rental ledger,
// reward-consuming modules get the vault spend right, staking reads the
// price feed.
func wireEngines(cfg *config.Config, manager *state.Manager, ring *events.Ring, owner [20]byte) (rpc.Engines, error) {
	tok := token.NewEngine()
	tok.SetState(manager)
	tok.SetOwner(owner)
	tok.SetPauses(manager)
	tok.SetEmitter(ring)
	tokenCap, err := parseAmount(cfg.TokenCap, defaultTokenCap)
	if err != nil {
		return rpc.Engines{}, fmt.Errorf("TokenCap: %w", err)
	}
	tok.SetCap(tokenCap)

	vlt := vault.NewEngine()
	vlt.SetState(manager)
	vlt.SetOwner(owner)
	vlt.SetPauses(manager)
	vlt.SetEmitter(ring)

	lenderMaster, err := parseAddressOr(cfg.LenderMaster, owner)
	if err != nil {
		return rpc.Engines{}, fmt.Errorf("LenderMaster: %w", err)
	}
	renterMaster, err := parseAddressOr(cfg.RenterMaster, owner)
	if err != nil {
		return rpc.Engines{}, fmt.Errorf("RenterMaster: %w", err)
	}
	if err := vlt.SetWhitelistLenders(owner, lenderMaster); err != nil {
		return rpc.Engines{}, fmt.Errorf("register lender master: %w", err)
	}
	if err := vlt.SetWhitelistRenters(owner, renterMaster); err != nil {
		return rpc.Engines{}, fmt.Errorf("register renter master: %w", err)
	}

	rentalEng := rental.NewEngine()
	rentalEng.SetState(manager)
	rentalEng.SetLedger(tok)
	rentalEng.SetRewards(vlt)
	rentalEng.SetPauses(manager)
	rentalEng.SetEmitter(ring)
	rentalEng.SetRegistryAddress(registryAddress())
	rentalEng.SetParams(rentalParams(cfg.Params))

	lenders := registry.NewEngine(registry.SideLender)
	lenders.SetState(manager)
	lenders.SetOwner(owner)
	lenders.SetPauses(manager)
	lenders.SetEmitter(ring)
	lenders.SetRental(rentalEng)

	renters := registry.NewEngine(registry.SideRenter)
	renters.SetState(manager)
	renters.SetOwner(owner)
	renters.SetPauses(manager)
	renters.SetEmitter(ring)
	renters.SetRental(rentalEng)

	if err := lenders.SetCounterpart(owner, renters); err != nil {
		return rpc.Engines{}, fmt.Errorf("link lender registry: %w", err)
	}
	if err := renters.SetCounterpart(owner, lenders); err != nil {
		return rpc.Engines{}, fmt.Errorf("link renter registry: %w", err)
	}
	rentalEng.SetMemberships(lenders, renters)

	ammEng := amm.NewEngine()
	ammEng.SetState(manager)
	ammEng.SetOwner(owner)
	ammEng.SetRewards(vlt)
	ammEng.SetPauses(manager)
	ammEng.SetEmitter(ring)

	answer, err := parseAmount(cfg.PriceFeedAnswer, big.NewInt(100_000_000))
	if err != nil {
		return rpc.Engines{}, fmt.Errorf("PriceFeedAnswer: %w", err)
	}

	stakingEng := staking.NewEngine()
	stakingEng.SetState(manager)
	stakingEng.SetLedger(tok)
	stakingEng.SetRewards(vlt)
	stakingEng.SetFeed(pricefeed.NewStaticFeed(answer))
	stakingEng.SetPauses(manager)
	stakingEng.SetEmitter(ring)

	// Grant the reward-consuming module addresses the vault spend right.
	for _, addr := range [][20]byte{rental.ModuleAddress, amm.ModuleAddress, staking.ModuleAddress} {
		if err := vlt.SetApprovedContract(lenderMaster, addr, true); err != nil {
			return rpc.Engines{}, fmt.Errorf("approve module for vault: %w", err)
		}
	}

	return rpc.Engines{
		Token:          tok,
		Vault:          vlt,
		LenderRegistry: lenders,
		RenterRegistry: renters,
		Rental:         rentalEng,
		AMM:            ammEng,
		Staking:        stakingEng,
	}, nil
}

func rentalParams(p config.Params) rental.Params {
	return rental.Params{
		LeadTime:             p.LeadTimeSeconds,
		MinWindow:            p.MinWindowSeconds,
		MaxWindow:            p.MaxWindowSeconds,
		RenterProposalCap:    p.RenterProposalCap,
		LenderProposalCap:    p.LenderProposalCap,
		MaxActiveRentals:     p.MaxActiveRentals,
		RewardDivisor:        p.RewardDivisor,
		ReturnTokenTTL:       p.ReturnTokenTTL,
		Cooldown:             p.CooldownSeconds,
		DefaultMaxRentalDays: p.DefaultMaxRentalDays,
	}
}

// registryAddress is the caller identity both registries share when invoking
// the rental engine's registry-gated operations.
func registryAddress() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("module/" + registry.ModuleName))
	copy(addr[:], digest[12:])
	return addr
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return addr, err
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("expected 20 bytes, got %d", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseAddressOr(raw string, fallback [20]byte) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return parseAddress(raw)
}

func parseAmount(raw string, fallback *big.Int) (*big.Int, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return new(big.Int).Set(fallback), nil
	}
	amount, ok := new(big.Int).SetString(cleaned, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return amount, nil
}
