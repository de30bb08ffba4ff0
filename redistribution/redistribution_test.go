package redistribution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"usdhcore/assets"
)

func TestApplyAndPendingRoundTrip(t *testing.T) {
	var acc Accumulator
	var res Residual

	loss := assets.Amounts{Sol: 100}
	require.NoError(t, Apply(&acc, &res, loss, 1_000, 10))

	snap := Snapshot{} // a trove that never touched since genesis
	gotColl, gotUSD, err := acc.Pending(snap, 4)
	require.NoError(t, err)
	// 100 SOL loss over stake 10: 40 SOL to a 4-stake trove.
	require.Equal(t, uint64(40), gotColl.Get(assets.SOL))
	// 1000 USD loss over stake 10: 400 USD to a 4-stake trove.
	require.Equal(t, uint64(400), gotUSD)
}

func TestApplyRetainsResidualAcrossEvents(t *testing.T) {
	var acc Accumulator
	var res Residual

	// 7 split across 3 stake doesn't divide evenly; the residual must carry.
	require.NoError(t, Apply(&acc, &res, assets.Amounts{}, 7, 3))
	require.NoError(t, Apply(&acc, &res, assets.Amounts{}, 7, 3))

	snap := Snapshot{}
	_, gotUSD, err := acc.Pending(snap, 3)
	require.NoError(t, err)
	// Two identical 7/3 events should total close to 14 with no compounding loss
	// greater than what a single division would lose.
	require.GreaterOrEqual(t, gotUSD, uint64(13))
	require.LessOrEqual(t, gotUSD, uint64(14))
}

func TestApplyZeroStakeRejected(t *testing.T) {
	var acc Accumulator
	var res Residual
	require.Error(t, Apply(&acc, &res, assets.Amounts{}, 100, 0))
}
