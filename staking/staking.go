// Package staking implements the protocol fee-staking pool: a linear
// reward-per-token accumulator with precision-residue tracking so fee
// distributions that don't divide total_stake evenly never leak dust.
package staking

import (
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"

	"github.com/holiman/uint256"
)

// Pool is the singleton staking-pool state.
type Pool struct {
	TotalStake     uint64
	RewardPerToken uint256.Int
	PrevRewardLoss uint256.Int
}

// Stake is a single staker's position.
type Stake struct {
	Amount       uint64
	RewardsTally uint256.Int
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

func scaledMul(amount uint64, rpt *uint256.Int) uint256.Int {
	prod := new(uint256.Int).Mul(uint256.NewInt(amount), rpt)
	return *prod
}

// Deposit adds amount to the staker's position and the pool's total.
func Deposit(p *Pool, s *Stake, amount uint64) error {
	if amount == 0 {
		return engineerr.Wrap(engineerr.KindValidation, "staking.Deposit", engineerr.ErrZeroAmountInvalid)
	}
	newAmount, err := fixedpoint.CheckedAdd(s.Amount, amount)
	if err != nil {
		return err
	}
	delta := scaledMul(amount, &p.RewardPerToken)
	tally := new(uint256.Int).Add(&s.RewardsTally, &delta)

	newTotal, err := fixedpoint.CheckedAdd(p.TotalStake, amount)
	if err != nil {
		return err
	}

	s.Amount = newAmount
	s.RewardsTally = *tally
	p.TotalStake = newTotal
	return nil
}

// pendingReward computes (user_stake·reward_per_token − rewards_tally)/Scale
// without mutating the stake.
func pendingReward(p *Pool, s *Stake) (uint64, error) {
	gross := scaledMul(s.Amount, &p.RewardPerToken)
	if gross.Lt(&s.RewardsTally) {
		return 0, overflow("staking.pendingReward")
	}
	diff := new(uint256.Int).Sub(&gross, &s.RewardsTally)
	diff.Div(diff, uint256.NewInt(fixedpoint.Scale))
	if !diff.IsUint64() {
		return 0, overflow("staking.pendingReward")
	}
	return diff.Uint64(), nil
}

// Harvest returns the staker's accrued reward and resets its tally to the
// current mark, leaving the staked principal untouched.
func Harvest(p *Pool, s *Stake) (uint64, error) {
	reward, err := pendingReward(p, s)
	if err != nil {
		return 0, err
	}
	s.RewardsTally = scaledMul(s.Amount, &p.RewardPerToken)
	return reward, nil
}

// Unstake harvests, then withdraws up to amount of the staker's principal.
func Unstake(p *Pool, s *Stake, amount uint64) (reward uint64, withdrawn uint64, err error) {
	reward, err = pendingReward(p, s)
	if err != nil {
		return 0, 0, err
	}
	withdrawn = amount
	if withdrawn > s.Amount {
		withdrawn = s.Amount
	}
	remaining, err := fixedpoint.CheckedSub(s.Amount, withdrawn)
	if err != nil {
		return 0, 0, err
	}
	newTotal, err := fixedpoint.CheckedSub(p.TotalStake, withdrawn)
	if err != nil {
		return 0, 0, err
	}

	s.Amount = remaining
	s.RewardsTally = scaledMul(s.Amount, &p.RewardPerToken)
	p.TotalStake = newTotal
	return reward, withdrawn, nil
}

// DistributeFees folds fee f into reward_per_token, carrying any division
// remainder forward as prev_reward_loss.
func DistributeFees(p *Pool, f uint64) error {
	scaledFee := new(uint256.Int).Mul(uint256.NewInt(f), uint256.NewInt(fixedpoint.Scale))
	scaled := new(uint256.Int).Add(scaledFee, &p.PrevRewardLoss)
	if p.TotalStake == 0 {
		p.PrevRewardLoss = *scaled
		return nil
	}
	total := uint256.NewInt(p.TotalStake)
	rpsDelta, remainder := new(uint256.Int).DivMod(scaled, total, new(uint256.Int))
	p.PrevRewardLoss = *remainder
	newRPT := new(uint256.Int).Add(&p.RewardPerToken, rpsDelta)
	p.RewardPerToken = *newRPT
	return nil
}

// SplitFees divides fee f into a staker cut and a treasury cut, the
// treasury cut rounded down.
func SplitFees(f, treasuryBps uint64) (stakerCut, treasuryCut uint64, err error) {
	treasuryCut, err = fixedpoint.MulBpsFloor(f, treasuryBps)
	if err != nil {
		return 0, 0, err
	}
	stakerCut, err = fixedpoint.CheckedSub(f, treasuryCut)
	if err != nil {
		return 0, 0, err
	}
	return stakerCut, treasuryCut, nil
}
