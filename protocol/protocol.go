// Package protocol holds the bit-exact constants that form the wire
// contract: decimals, fee bounds, MCRs, HBB issuance parameters and queue
// capacities. These are not governance-tunable and therefore are not part of
// config.Protocol — changing one changes the protocol.
package protocol

// Fixed-point scales.
const (
	DecimalPrecision uint64 = 1_000_000_000_000 // 10^12, a.k.a. "SCALE"
	ScaleFactor      uint64 = 1_000_000_000     // 10^9
)

// Token decimals. SOL carries 9; every other supported asset (including
// USDH, HBB and USDC) carries 6.
const (
	SOLDecimals  uint8 = 9
	ETHDecimals  uint8 = 6
	BTCDecimals  uint8 = 6
	SRMDecimals  uint8 = 6
	RAYDecimals  uint8 = 6
	FTTDecimals  uint8 = 6
	USDHDecimals uint8 = 6
	USDCDecimals uint8 = 6
	HBBDecimals  uint8 = 6
)

// PythExponent is the oracle exponent shared by every supported feed.
const PythExponent uint8 = 8

// StablecoinFactor / HBBFactor are the base-unit multipliers for 6-decimal
// tokens.
const (
	StablecoinFactor uint64 = 1_000_000
	HBBFactor        uint64 = 1_000_000
)

// Redemption fee split, in bps.
const (
	RedemptionStakersBps uint64 = 40
	RedemptionFillerBps  uint64 = 5
	RedemptionClearerBps uint64 = 5
)

// Liquidation claim/queue timing.
const (
	LiquidationsSecondsToClaimGains uint64 = 5
	MaxLiquidationEvents            int    = 300
)

// Redemption queue timing and sizing.
const (
	MaxRedemptionEvents          int    = 15
	MaxRedemptionCandidates      int    = 32
	RedemptionSecondsToFillOrder uint64 = 5
	MinRedemptionAmountUSDH      uint64 = 2000 * StablecoinFactor
)

// Liquidation fee split, in bps.
const (
	LiquidatorRateBps uint64 = 40
	ClearerRateBps    uint64 = 10
)

// Collateral ratio thresholds, percent.
const (
	NormalMCRPercent   uint64 = 110
	RecoveryMCRPercent uint64 = 150
)

const SecondsPerYear uint64 = 365 * 24 * 60 * 60
const SecondsPerMinute uint64 = 60

// HBB emission schedule.
const (
	TotalHBBSupply          uint64 = 100_000_000
	TotalHBBToStabilityPool uint64 = 31_000_000
	HBBIssuanceFactorScaled uint64 = 999_998_681_227_695_000 // per minute, RateScale-scaled
)

const BorrowMinUSDH uint64 = 200_000_000

// Base-rate decay: half-life 12h encoded as a per-minute factor.
const MinuteDecayFactorScaled uint64 = 999_037_758_833_783_000

// Fee bounds, in bps.
const (
	RedemptionFeeFloorBps uint64 = 50
	MaxRedemptionFeeBps   uint64 = 10_000
	MaxBorrowingFeeBps    uint64 = 500
	BorrowingFeeFloorBps  uint64 = 50
)

// BootstrapPeriodSeconds is the default length of the prefix of protocol
// life during which borrowing is restricted to the initial owner; the
// tunable value lives in config.Protocol. Zero disables the restriction.
const BootstrapPeriodSeconds uint64 = 0
