package alerts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceMiles(t *testing.T) {
	// Dallas to Houston is about 225 miles great-circle
	d := DistanceMiles(32.7767, -96.7970, 29.7604, -95.3698)
	require.InDelta(t, 225, d, 5)

	require.Zero(t, DistanceMiles(32.7767, -96.7970, 32.7767, -96.7970))

	// symmetric
	require.InDelta(t,
		DistanceMiles(41.88, -87.63, 25.76, -80.19),
		DistanceMiles(25.76, -80.19, 41.88, -87.63),
		1e-9)
}
