package devicesession

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
)

func TestAcquireUnknownTypeFails(t *testing.T) {
	pool := NewPool(devicetype.NewTable(), &stubFinder{})
	_, err := pool.Acquire(devicetype.Type("bogus"))
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.UnknownDevice))
}

func TestAcquireWithNoPortsFailsHandshake(t *testing.T) {
	pool := NewPool(devicetype.NewTable(), &stubFinder{})
	_, err := pool.Acquire(devicetype.LDPC)
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.HandshakeFailed))
}

func TestConnectedReportsTotalFromTable(t *testing.T) {
	pool := NewPool(devicetype.NewTable(), &stubFinder{})
	connected, total := pool.Connected()
	require.Equal(t, 0, connected)
	require.Equal(t, 3, total)
}

func TestCloseAllOnEmptyPoolIsSafe(t *testing.T) {
	pool := NewPool(devicetype.NewTable(), &stubFinder{})
	pool.CloseAll()
}
