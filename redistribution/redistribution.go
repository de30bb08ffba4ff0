// Package redistribution implements the reward-per-stake lazy accumulator
// that socialises unabsorbed liquidation losses across surviving troves
// without ever iterating over them. Every trove applies its pending share
// lazily, on its next touch, by comparing the market's running accumulator
// against the snapshot it took at its last touch.
package redistribution

import (
	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"

	"github.com/holiman/uint256"
)

// CollAccumulator is the per-asset reward-per-stake accumulator, scaled by
// fixedpoint.Scale. Values are held at 256-bit width because the scaled
// accumulator can exceed 64 bits long before any single trove's pending
// share does.
type CollAccumulator struct {
	Sol, Eth, Btc, Srm, Ray, Ftt uint256.Int
}

func (c CollAccumulator) get(a assets.Asset) uint256.Int {
	switch a {
	case assets.SOL:
		return c.Sol
	case assets.ETH:
		return c.Eth
	case assets.BTC:
		return c.Btc
	case assets.SRM:
		return c.Srm
	case assets.RAY:
		return c.Ray
	case assets.FTT:
		return c.Ftt
	default:
		return uint256.Int{}
	}
}

func (c CollAccumulator) set(a assets.Asset, v uint256.Int) CollAccumulator {
	switch a {
	case assets.SOL:
		c.Sol = v
	case assets.ETH:
		c.Eth = v
	case assets.BTC:
		c.Btc = v
	case assets.SRM:
		c.Srm = v
	case assets.RAY:
		c.Ray = v
	case assets.FTT:
		c.Ftt = v
	}
	return c
}

// Accumulator is the market-wide running total: coll_reward_per_stake and
// usd_reward_per_stake from the data model.
type Accumulator struct {
	Coll CollAccumulator
	USD  uint256.Int
}

// Snapshot is the per-trove copy of the accumulator taken at its last touch.
type Snapshot struct {
	Coll CollAccumulator
	USD  uint256.Int
}

// Residual retains the precision lost to integer division on the last
// redistribution event, so repeated small liquidations don't leak dust.
type Residual struct {
	Coll CollAccumulator
	USD  uint256.Int
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

func uint256ToUint64(v *uint256.Int, op string) (uint64, error) {
	if !v.IsUint64() {
		return 0, overflow(op)
	}
	return v.Uint64(), nil
}

// Pending computes a trove's unapplied redistribution share given its stake
// and the snapshot it took at its last touch: (market_rps - user_rps) *
// stake / Scale, per asset and for the USD (debt) accumulator.
func (a Accumulator) Pending(snap Snapshot, stake uint64) (assets.Amounts, uint64, error) {
	var out assets.Amounts
	for _, asset := range assets.All() {
		cur := a.Coll.get(asset)
		prior := snap.Coll.get(asset)
		if cur.Lt(&prior) {
			return assets.Amounts{}, 0, overflow("redistribution.Pending")
		}
		diff := new(uint256.Int).Sub(&cur, &prior)
		product := new(uint256.Int).Mul(diff, uint256.NewInt(stake))
		product.Div(product, uint256.NewInt(fixedpoint.Scale))
		v, err := uint256ToUint64(product, "redistribution.Pending")
		if err != nil {
			return assets.Amounts{}, 0, err
		}
		out = out.Set(asset, v)
	}

	if a.USD.Lt(&snap.USD) {
		return assets.Amounts{}, 0, overflow("redistribution.Pending")
	}
	diffUSD := new(uint256.Int).Sub(&a.USD, &snap.USD)
	productUSD := new(uint256.Int).Mul(diffUSD, uint256.NewInt(stake))
	productUSD.Div(productUSD, uint256.NewInt(fixedpoint.Scale))
	usd, err := uint256ToUint64(productUSD, "redistribution.Pending")
	if err != nil {
		return assets.Amounts{}, 0, err
	}
	return out, usd, nil
}

// Snapshot returns the current state of the accumulator, to be stored on a
// trove immediately after its pending share has been applied.
func (a Accumulator) Snapshot() Snapshot {
	return Snapshot{Coll: a.Coll, USD: a.USD}
}

// Apply folds a new redistribution event (collateral loss and USD debt loss
// from a liquidation) into the market accumulator, spread across
// totalStakeExcludingLiquidated. Precision residue from the division is
// retained in res and folded into the next event.
func Apply(acc *Accumulator, res *Residual, collLoss assets.Amounts, usdLoss uint64, totalStakeExcludingLiquidated uint64) error {
	if totalStakeExcludingLiquidated == 0 {
		return overflow("redistribution.Apply")
	}
	denom := uint256.NewInt(totalStakeExcludingLiquidated)

	for _, asset := range assets.All() {
		amount := collLoss.Get(asset)
		scaled := fixedpoint.ScaleUp(amount)
		priorResidual := res.Coll.get(asset)
		numerator := new(uint256.Int).Add(scaled, &priorResidual)

		deltaPerStake, remainder := new(uint256.Int).DivMod(numerator, denom, new(uint256.Int))
		res.Coll = res.Coll.set(asset, *remainder)

		cur := acc.Coll.get(asset)
		newVal := new(uint256.Int).Add(&cur, deltaPerStake)
		acc.Coll = acc.Coll.set(asset, *newVal)
	}

	scaledUSD := fixedpoint.ScaleUp(usdLoss)
	numeratorUSD := new(uint256.Int).Add(scaledUSD, &res.USD)
	deltaPerStakeUSD, remainderUSD := new(uint256.Int).DivMod(numeratorUSD, denom, new(uint256.Int))
	res.USD = *remainderUSD
	newUSD := new(uint256.Int).Add(&acc.USD, deltaPerStakeUSD)
	acc.USD = *newUSD
	return nil
}
