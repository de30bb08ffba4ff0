// Package stability implements the stability pool: the classic
// product-and-sum (P/S) scaling scheme that gives O(1) per-depositor
// accounting while tracking per-collateral gains and the HBB emission
// schedule.
package stability

import (
	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"
	"usdhcore/protocol"

	"github.com/holiman/uint256"
)

// StabAccumulator is a fixed-layout per-asset vector over the reward asset
// set A ∪ {HBB}, held at 256-bit width because accumulators compound.
type StabAccumulator struct {
	Sol, Eth, Btc, Srm, Ray, Ftt, Hbb uint256.Int
}

func (s StabAccumulator) get(a assets.StabilityAsset) uint256.Int {
	switch a {
	case assets.StabSOL:
		return s.Sol
	case assets.StabETH:
		return s.Eth
	case assets.StabBTC:
		return s.Btc
	case assets.StabSRM:
		return s.Srm
	case assets.StabRAY:
		return s.Ray
	case assets.StabFTT:
		return s.Ftt
	case assets.StabHBB:
		return s.Hbb
	default:
		return uint256.Int{}
	}
}

func (s StabAccumulator) set(a assets.StabilityAsset, v uint256.Int) StabAccumulator {
	switch a {
	case assets.StabSOL:
		s.Sol = v
	case assets.StabETH:
		s.Eth = v
	case assets.StabBTC:
		s.Btc = v
	case assets.StabSRM:
		s.Srm = v
	case assets.StabRAY:
		s.Ray = v
	case assets.StabFTT:
		s.Ftt = v
	case assets.StabHBB:
		s.Hbb = v
	}
	return s
}

func (s StabAccumulator) addToken(a assets.StabilityAsset, v uint64) StabAccumulator {
	cur := s.get(a)
	sum := new(uint256.Int).Add(&cur, uint256.NewInt(v))
	return s.set(a, *sum)
}

type epochScaleKey struct {
	epoch, scale uint64
}

// Pool is the singleton stability-pool state.
type Pool struct {
	Deposited         uint64
	P                 uint256.Int
	CurrentEpoch      uint64
	CurrentScale      uint64
	HBBEmissionsStart uint64
	LastTouch         uint64
	S                 StabAccumulator
	CumulativeGains   StabAccumulator
	LastUSDError      uint256.Int
	LastCollError     StabAccumulator
	sumHistory        map[epochScaleKey]StabAccumulator
}

// New creates an empty pool with the HBB emission clock starting at now.
func New(now uint64) Pool {
	return Pool{
		P:                 *uint256.NewInt(protocol.DecimalPrecision),
		HBBEmissionsStart: now,
		LastTouch:         now,
		sumHistory:        make(map[epochScaleKey]StabAccumulator),
	}
}

func (p *Pool) recordSum() {
	if p.sumHistory == nil {
		p.sumHistory = make(map[epochScaleKey]StabAccumulator)
	}
	p.sumHistory[epochScaleKey{p.CurrentEpoch, p.CurrentScale}] = p.S
}

func (p *Pool) sumAt(epoch, scale uint64) StabAccumulator {
	if epoch == p.CurrentEpoch && scale == p.CurrentScale {
		return p.S
	}
	if v, ok := p.sumHistory[epochScaleKey{epoch, scale}]; ok {
		return v
	}
	return StabAccumulator{}
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

// scaledMul computes x*y/DecimalPrecision, the "scaled multiply" used
// whenever two DecimalPrecision-scaled fixed-point fractions are combined.
func scaledMul(x, y *uint256.Int) uint256.Int {
	prod := new(uint256.Int).Mul(x, y)
	prod.Div(prod, uint256.NewInt(protocol.DecimalPrecision))
	return *prod
}

// Provider is a per-user stability deposit.
type Provider struct {
	Deposited       uint64
	SnapP           uint256.Int
	SnapS           StabAccumulator
	SnapScale       uint64
	SnapEpoch       uint64
	Enabled         bool
	CumulativeGains StabAccumulator
	PendingGains    StabAccumulator
}

// NewProvider creates an approved, zero-balance provider.
func NewProvider() Provider {
	return Provider{Enabled: true}
}

func computeLossPerUnit(usdLoss uint64, lastError uint256.Int, total uint64) (uint256.Int, uint256.Int) {
	if usdLoss == total {
		return *uint256.NewInt(protocol.DecimalPrecision), uint256.Int{}
	}
	numerator := new(uint256.Int).Mul(uint256.NewInt(usdLoss), uint256.NewInt(protocol.DecimalPrecision))
	numerator.Sub(numerator, &lastError)
	d := uint256.NewInt(total)
	lossPerUnit := new(uint256.Int).Div(numerator, d)
	lossPerUnit.AddUint64(lossPerUnit, 1)
	newError := new(uint256.Int).Mul(lossPerUnit, d)
	newError.Sub(newError, numerator)
	return *lossPerUnit, *newError
}

func computeGainPerUnit(gain uint64, lastError uint256.Int, total uint64) (uint256.Int, uint256.Int) {
	numerator := new(uint256.Int).Mul(uint256.NewInt(gain), uint256.NewInt(protocol.DecimalPrecision))
	numerator.Add(numerator, &lastError)
	d := uint256.NewInt(total)
	gainPerUnit := new(uint256.Int).Div(numerator, d)
	newError := new(uint256.Int).Sub(numerator, new(uint256.Int).Mul(gainPerUnit, d))
	return *gainPerUnit, newError.Clone()
}

// issuedSince returns the cumulative HBB issued between start and now under
// the closed-form exponential decay schedule.
func issuedSince(start, now uint64) (uint64, error) {
	if now <= start {
		return 0, nil
	}
	minutes := (now - start) / protocol.SecondsPerMinute
	factor := fixedpoint.NewRateFromScaled(protocol.HBBIssuanceFactorScaled).Pow(minutes)
	fraction := factor.OneMinus()
	total := protocol.TotalHBBToStabilityPool * protocol.HBBFactor
	return fraction.MulAmountFloor(total)
}

// accrueHBB folds the HBB issued since the pool's last touch into the S
// accumulator as an additional collateral-style gain on the HBB bucket. If
// the pool is empty, issuance for the elapsed window is permanently
// forfeited: last_touch advances to now without crediting anything.
func (p *Pool) accrueHBB(now uint64) error {
	if p.Deposited == 0 {
		if now > p.LastTouch {
			p.LastTouch = now
		}
		return nil
	}
	curIssued, err := issuedSince(p.HBBEmissionsStart, now)
	if err != nil {
		return err
	}
	priorIssued, err := issuedSince(p.HBBEmissionsStart, p.LastTouch)
	if err != nil {
		return err
	}
	if curIssued < priorIssued {
		return overflow("stability.accrueHBB")
	}
	delta := curIssued - priorIssued
	p.LastTouch = now
	if delta == 0 {
		return nil
	}

	gainPerUnit, newErr := computeGainPerUnit(delta, p.LastCollError.get(assets.StabHBB), p.Deposited)
	p.LastCollError = p.LastCollError.set(assets.StabHBB, newErr)
	term := scaledMul(&gainPerUnit, &p.P)
	cur := p.S.get(assets.StabHBB)
	sum := new(uint256.Int).Add(&cur, &term)
	p.S = p.S.set(assets.StabHBB, *sum)
	p.CumulativeGains = p.CumulativeGains.addToken(assets.StabHBB, delta)
	p.recordSum()
	return nil
}

// AbsorbLoss applies a liquidation's USDH debt offset and its accompanying
// per-asset collateral gain to the pool, updating P, S and, when the loss
// fully or partially exhausts deposits, rotating scale/epoch.
func AbsorbLoss(p *Pool, usdLoss uint64, collGain assets.StabilityAmounts) error {
	if p.Deposited == 0 || usdLoss == 0 {
		return overflow("stability.AbsorbLoss")
	}
	if usdLoss > p.Deposited {
		return overflow("stability.AbsorbLoss")
	}

	lossPerUnit, newUSDErr := computeLossPerUnit(usdLoss, p.LastUSDError, p.Deposited)
	p.LastUSDError = newUSDErr

	pBefore := p.P
	for _, a := range assets.AllStability() {
		if a == assets.StabHBB {
			continue // HBB accrues only via accrueHBB on deposit/withdraw touches
		}
		gain := collGain.Get(a)
		gainPerUnit, newErr := computeGainPerUnit(gain, p.LastCollError.get(a), p.Deposited)
		p.LastCollError = p.LastCollError.set(a, newErr)
		term := scaledMul(&gainPerUnit, &pBefore)
		cur := p.S.get(a)
		sum := new(uint256.Int).Add(&cur, &term)
		p.S = p.S.set(a, *sum)
		p.CumulativeGains = p.CumulativeGains.addToken(a, gain)
	}
	p.recordSum()

	precision := uint256.NewInt(protocol.DecimalPrecision)
	var factor uint256.Int
	if lossPerUnit.Cmp(precision) >= 0 {
		factor = uint256.Int{}
	} else {
		factor = *new(uint256.Int).Sub(precision, &lossPerUnit)
	}
	newP := scaledMul(&pBefore, &factor)

	newDeposited := p.Deposited - usdLoss

	switch {
	case usdLoss == p.Deposited:
		p.recordSum()
		p.CurrentEpoch++
		p.CurrentScale = 0
		p.P = *precision
		p.S = StabAccumulator{}
	case newP.Cmp(uint256.NewInt(protocol.ScaleFactor)) < 0:
		p.recordSum()
		p.CurrentScale++
		p.P = *scaledMulByInt(&newP, protocol.ScaleFactor)
		p.S = StabAccumulator{}
	default:
		p.P = newP
	}

	p.Deposited = newDeposited
	return nil
}

func scaledMulByInt(v *uint256.Int, mul uint64) *uint256.Int {
	return new(uint256.Int).Mul(v, uint256.NewInt(mul))
}

// CompoundedDeposit returns the provider's current deposit after folding in
// product-scheme losses since its last touch.
func CompoundedDeposit(p *Pool, pr *Provider) (uint64, error) {
	if pr.SnapEpoch != p.CurrentEpoch {
		return 0, nil
	}
	if pr.Deposited == 0 {
		return 0, nil
	}
	switch p.CurrentScale - pr.SnapScale {
	case 0:
		v, err := mulDivUint256(pr.Deposited, &p.P, &pr.SnapP)
		return v, err
	case 1:
		denom := scaledMulByInt(&pr.SnapP, protocol.ScaleFactor)
		v, err := mulDivUint256(pr.Deposited, &p.P, denom)
		return v, err
	default:
		return 0, nil
	}
}

func mulDivUint256(amount uint64, num, den *uint256.Int) (uint64, error) {
	if den.IsZero() {
		return 0, overflow("stability.mulDivUint256")
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(amount), num)
	q := prod.Div(prod, den)
	if !q.IsUint64() {
		return 0, overflow("stability.mulDivUint256")
	}
	return q.Uint64(), nil
}

// pendingGains computes, per reward asset, the provider's unmaterialized
// gain since its snapshot: d·((S_at(e0,s0) − S0) + S_at(e0,s0+1)/Scale)/P0.
func pendingGains(p *Pool, pr *Provider) (StabAccumulator, error) {
	var out StabAccumulator
	if pr.SnapEpoch != p.CurrentEpoch || pr.Deposited == 0 {
		return out, nil
	}
	first := p.sumAt(pr.SnapEpoch, pr.SnapScale)
	second := p.sumAt(pr.SnapEpoch, pr.SnapScale+1)

	for _, a := range assets.AllStability() {
		s0 := pr.SnapS.get(a)
		sAtFirst := first.get(a)
		if sAtFirst.Lt(&s0) {
			return StabAccumulator{}, overflow("stability.pendingGains")
		}
		diff := new(uint256.Int).Sub(&sAtFirst, &s0)
		sAtSecond := second.get(a)
		bridged := new(uint256.Int).Div(&sAtSecond, uint256.NewInt(protocol.ScaleFactor))
		bracket := new(uint256.Int).Add(diff, bridged)

		v, err := mulDivUint256(pr.Deposited, bracket, &pr.SnapP)
		if err != nil {
			return StabAccumulator{}, err
		}
		out = out.set(a, *uint256.NewInt(v))
	}
	return out, nil
}

func addAccumulators(a, b StabAccumulator) StabAccumulator {
	for _, asset := range assets.AllStability() {
		av := a.get(asset)
		bv := b.get(asset)
		sum := new(uint256.Int).Add(&av, &bv)
		a = a.set(asset, *sum)
	}
	return a
}

func (p *Pool) touch(pr *Provider, now uint64) error {
	if err := p.accrueHBB(now); err != nil {
		return err
	}
	pending, err := pendingGains(p, pr)
	if err != nil {
		return err
	}
	pr.PendingGains = addAccumulators(pr.PendingGains, pending)
	return nil
}

func (p *Pool) resnapshot(pr *Provider) {
	pr.SnapP = p.P
	pr.SnapS = p.S
	pr.SnapScale = p.CurrentScale
	pr.SnapEpoch = p.CurrentEpoch
}

// Provide deposits amount of USDH into the pool on behalf of provider,
// first applying any pending gain and compounding its existing deposit.
func Provide(p *Pool, pr *Provider, amount uint64, now uint64) error {
	if amount == 0 {
		return engineerr.Wrap(engineerr.KindValidation, "stability.Provide", engineerr.ErrZeroAmountInvalid)
	}
	if err := p.touch(pr, now); err != nil {
		return err
	}
	compounded, err := CompoundedDeposit(p, pr)
	if err != nil {
		return err
	}
	newDeposit, err := fixedpoint.CheckedAdd(compounded, amount)
	if err != nil {
		return err
	}
	pr.Deposited = newDeposit

	newPoolDeposited, err := fixedpoint.CheckedAdd(p.Deposited, amount)
	if err != nil {
		return err
	}
	p.Deposited = newPoolDeposited

	p.resnapshot(pr)
	return nil
}

// Withdraw removes up to amount of USDH from provider's compounded deposit.
func Withdraw(p *Pool, pr *Provider, amount uint64, now uint64) (uint64, error) {
	if amount == 0 {
		return 0, engineerr.Wrap(engineerr.KindValidation, "stability.Withdraw", engineerr.ErrZeroAmountInvalid)
	}
	if err := p.touch(pr, now); err != nil {
		return 0, err
	}
	compounded, err := CompoundedDeposit(p, pr)
	if err != nil {
		return 0, err
	}
	withdrawAmount := amount
	if withdrawAmount > compounded {
		withdrawAmount = compounded
	}
	remaining, err := fixedpoint.CheckedSub(compounded, withdrawAmount)
	if err != nil {
		return 0, err
	}
	pr.Deposited = remaining

	newPoolDeposited, err := fixedpoint.CheckedSub(p.Deposited, withdrawAmount)
	if err != nil {
		return 0, err
	}
	p.Deposited = newPoolDeposited

	p.resnapshot(pr)
	return withdrawAmount, nil
}

// HarvestLiquidationGains drains provider's accumulated, unharvested gains
// and refreshes its compounded deposit and snapshot.
func HarvestLiquidationGains(p *Pool, pr *Provider, now uint64) (assets.StabilityAmounts, error) {
	if err := p.touch(pr, now); err != nil {
		return assets.StabilityAmounts{}, err
	}
	compounded, err := CompoundedDeposit(p, pr)
	if err != nil {
		return assets.StabilityAmounts{}, err
	}
	pr.Deposited = compounded
	p.resnapshot(pr)

	gains := pr.PendingGains
	pr.CumulativeGains = addAccumulators(pr.CumulativeGains, gains)
	pr.PendingGains = StabAccumulator{}

	var out assets.StabilityAmounts
	for _, a := range assets.AllStability() {
		v := gains.get(a)
		if !v.IsUint64() {
			return assets.StabilityAmounts{}, overflow("stability.HarvestLiquidationGains")
		}
		out = out.Set(a, v.Uint64())
	}
	return out, nil
}
