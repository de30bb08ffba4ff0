// Package config loads the governance-tunable protocol parameters: the
// knobs a DAO vote can change without altering the bit-exact wire contract
// in package protocol. Everything here has a sane default so a host can
// run without a config file at all.
package config

import (
	"usdhcore/engineerr"

	"github.com/BurntSushi/toml"
)

// Protocol captures every governance-tunable constant that is not part of
// the wire contract.
type Protocol struct {
	NormalMCRPercent   uint64 `toml:"NormalMCRPercent"`
	RecoveryMCRPercent uint64 `toml:"RecoveryMCRPercent"`

	BorrowingFeeFloorBps uint64 `toml:"BorrowingFeeFloorBps"`
	MaxBorrowingFeeBps   uint64 `toml:"MaxBorrowingFeeBps"`

	RedemptionFeeFloorBps uint64 `toml:"RedemptionFeeFloorBps"`
	MaxRedemptionFeeBps   uint64 `toml:"MaxRedemptionFeeBps"`

	RedemptionStakersBps uint64 `toml:"RedemptionStakersBps"`
	RedemptionFillerBps  uint64 `toml:"RedemptionFillerBps"`
	RedemptionClearerBps uint64 `toml:"RedemptionClearerBps"`

	LiquidatorRateBps uint64 `toml:"LiquidatorRateBps"`
	ClearerRateBps    uint64 `toml:"ClearerRateBps"`

	TreasuryFeeBps uint64 `toml:"TreasuryFeeBps"`

	BootstrapPeriodSeconds uint64 `toml:"BootstrapPeriodSeconds"`
	BootstrapOwner         string `toml:"BootstrapOwner"`

	MaxLiquidationEvents    int `toml:"MaxLiquidationEvents"`
	MaxRedemptionEvents     int `toml:"MaxRedemptionEvents"`
	MaxRedemptionCandidates int `toml:"MaxRedemptionCandidates"`
}

// Default mirrors the wire-contract values in package protocol exactly,
// so a host that omits config entirely gets byte-for-byte protocol
// behavior.
func Default() Protocol {
	return Protocol{
		NormalMCRPercent:   110,
		RecoveryMCRPercent: 150,

		BorrowingFeeFloorBps: 50,
		MaxBorrowingFeeBps:   500,

		RedemptionFeeFloorBps: 50,
		MaxRedemptionFeeBps:   10_000,

		RedemptionStakersBps: 40,
		RedemptionFillerBps:  5,
		RedemptionClearerBps: 5,

		LiquidatorRateBps: 40,
		ClearerRateBps:    10,

		TreasuryFeeBps: 0,

		BootstrapPeriodSeconds: 0,

		MaxLiquidationEvents:    300,
		MaxRedemptionEvents:     15,
		MaxRedemptionCandidates: 32,
	}
}

// Load decodes a Protocol from a TOML file at path, starting from Default()
// so a partial file only overrides the fields it names.
func Load(path string) (Protocol, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Protocol{}, engineerr.Wrap(engineerr.KindValidation, "config.Load", engineerr.ErrGlobalConfigKey)
	}
	return cfg, nil
}

// Validate rejects a config whose bps fields could push fee math past
// 10000 or whose MCRs are inverted.
func (p Protocol) Validate() error {
	if p.RecoveryMCRPercent < p.NormalMCRPercent {
		return engineerr.Wrap(engineerr.KindValidation, "config.Validate", engineerr.ErrGlobalConfigKey)
	}
	if p.TreasuryFeeBps > 10_000 {
		return engineerr.Wrap(engineerr.KindValidation, "config.Validate", engineerr.ErrGlobalConfigKey)
	}
	sum := p.RedemptionStakersBps + p.RedemptionFillerBps + p.RedemptionClearerBps
	if sum > 10_000 {
		return engineerr.Wrap(engineerr.KindValidation, "config.Validate", engineerr.ErrGlobalConfigKey)
	}
	return nil
}
