// Package assets defines the closed collateral asset set and the
// fixed-layout per-asset amount vectors used throughout the engine. Per-asset
// maps are compile-time-enumerated structs, never a general hash map —
// closure of the asset set is part of the wire contract.
package assets

import "usdhcore/engineerr"

// Asset enumerates the fixed collateral set A = {SOL, ETH, BTC, SRM, RAY, FTT}.
type Asset int

const (
	SOL Asset = iota
	ETH
	BTC
	SRM
	RAY
	FTT
	numAssets
)

func (a Asset) String() string {
	switch a {
	case SOL:
		return "SOL"
	case ETH:
		return "ETH"
	case BTC:
		return "BTC"
	case SRM:
		return "SRM"
	case RAY:
		return "RAY"
	case FTT:
		return "FTT"
	default:
		return "UNKNOWN"
	}
}

// All returns the closed asset set in canonical order.
func All() []Asset { return []Asset{SOL, ETH, BTC, SRM, RAY, FTT} }

// Decimals returns the base-unit decimal count for the asset, matching the
// protocol's fixed decimals table (SOL=9, all others=6).
func (a Asset) Decimals() uint8 {
	if a == SOL {
		return 9
	}
	return 6
}

// StabilityAsset enumerates the reward asset set A ∪ {HBB}.
type StabilityAsset int

const (
	StabSOL StabilityAsset = iota
	StabETH
	StabBTC
	StabSRM
	StabRAY
	StabFTT
	StabHBB
	numStabilityAssets
)

func (a Asset) Stability() StabilityAsset { return StabilityAsset(a) }

func (s StabilityAsset) String() string {
	switch s {
	case StabSOL:
		return "SOL"
	case StabETH:
		return "ETH"
	case StabBTC:
		return "BTC"
	case StabSRM:
		return "SRM"
	case StabRAY:
		return "RAY"
	case StabFTT:
		return "FTT"
	case StabHBB:
		return "HBB"
	default:
		return "UNKNOWN"
	}
}

// AllStability returns the closed reward asset set in canonical order.
func AllStability() []StabilityAsset {
	return []StabilityAsset{StabSOL, StabETH, StabBTC, StabSRM, StabRAY, StabFTT, StabHBB}
}

// Decimals for stability reward assets; HBB shares the 6-decimal convention.
func (s StabilityAsset) Decimals() uint8 {
	if s == StabSOL {
		return 9
	}
	return 6
}

// Amounts is a fixed-layout per-asset amount vector over the closed
// collateral set. Every collateral token map in the engine (deposited,
// inactive, redistribution deltas, liquidation splits) is one of these.
type Amounts struct {
	Sol, Eth, Btc, Srm, Ray, Ftt uint64
}

// Get returns the amount for asset a.
func (c Amounts) Get(a Asset) uint64 {
	switch a {
	case SOL:
		return c.Sol
	case ETH:
		return c.Eth
	case BTC:
		return c.Btc
	case SRM:
		return c.Srm
	case RAY:
		return c.Ray
	case FTT:
		return c.Ftt
	default:
		return 0
	}
}

// Set returns a copy of c with asset a set to v.
func (c Amounts) Set(a Asset, v uint64) Amounts {
	switch a {
	case SOL:
		c.Sol = v
	case ETH:
		c.Eth = v
	case BTC:
		c.Btc = v
	case SRM:
		c.Srm = v
	case RAY:
		c.Ray = v
	case FTT:
		c.Ftt = v
	}
	return c
}

// Add returns c + o, element-wise, erroring on any overflow.
func (c Amounts) Add(o Amounts) (Amounts, error) {
	var out Amounts
	var err error
	for _, a := range All() {
		out, err = setChecked(out, a, c.Get(a), o.Get(a), addOp)
		if err != nil {
			return Amounts{}, err
		}
	}
	return out, nil
}

// Sub returns c - o, element-wise. Underflow is a fatal error: saturating
// subtraction is forbidden by the protocol's arithmetic rules.
func (c Amounts) Sub(o Amounts) (Amounts, error) {
	var out Amounts
	var err error
	for _, a := range All() {
		out, err = setChecked(out, a, c.Get(a), o.Get(a), subOp)
		if err != nil {
			return Amounts{}, err
		}
	}
	return out, nil
}

type binOp int

const (
	addOp binOp = iota
	subOp
)

func setChecked(acc Amounts, a Asset, x, y uint64, op binOp) (Amounts, error) {
	switch op {
	case addOp:
		sum := x + y
		if sum < x {
			return Amounts{}, engineerr.Wrap(engineerr.KindValidation, "assets.Add", engineerr.ErrMathOverflow)
		}
		return acc.Set(a, sum), nil
	case subOp:
		if y > x {
			return Amounts{}, engineerr.Wrap(engineerr.KindValidation, "assets.Sub", engineerr.ErrMathOverflow)
		}
		return acc.Set(a, x-y), nil
	}
	return acc, nil
}

// IsZero reports whether every asset bucket is zero.
func (c Amounts) IsZero() bool {
	return c.Sol == 0 && c.Eth == 0 && c.Btc == 0 && c.Srm == 0 && c.Ray == 0 && c.Ftt == 0
}

// StabilityAmounts is the reward-asset counterpart of Amounts, over A ∪ {HBB}.
type StabilityAmounts struct {
	Sol, Eth, Btc, Srm, Ray, Ftt, Hbb uint64
}

// FromAmounts lifts a collateral vector into the reward-asset space with
// Hbb left at zero.
func FromAmounts(c Amounts) StabilityAmounts {
	return StabilityAmounts{Sol: c.Sol, Eth: c.Eth, Btc: c.Btc, Srm: c.Srm, Ray: c.Ray, Ftt: c.Ftt}
}

func (s StabilityAmounts) Get(a StabilityAsset) uint64 {
	switch a {
	case StabSOL:
		return s.Sol
	case StabETH:
		return s.Eth
	case StabBTC:
		return s.Btc
	case StabSRM:
		return s.Srm
	case StabRAY:
		return s.Ray
	case StabFTT:
		return s.Ftt
	case StabHBB:
		return s.Hbb
	default:
		return 0
	}
}

func (s StabilityAmounts) Set(a StabilityAsset, v uint64) StabilityAmounts {
	switch a {
	case StabSOL:
		s.Sol = v
	case StabETH:
		s.Eth = v
	case StabBTC:
		s.Btc = v
	case StabSRM:
		s.Srm = v
	case StabRAY:
		s.Ray = v
	case StabFTT:
		s.Ftt = v
	case StabHBB:
		s.Hbb = v
	}
	return s
}
