package slmp

import (
	"testing"
	"time"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/frame"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionConfig(t *testing.T) {
	require := require.New(t)

	t.Run("Defaults", func(t *testing.T) {
		cfg, err := NewConnectionConfig("192.168.3.39", 5007)
		require.NoError(err)

		props := cfg.Properties()
		require.Equal("192.168.3.39", props.Host)
		require.Equal(5007, props.Port)
		require.Equal(device.SeriesR, props.Series)
		require.Equal(frame.DefaultRoute(), props.Route)
		require.Equal(uint16(0x0010), props.MonitoringTimer)
		require.Equal(time.Second, props.ResponseTimeout)
		require.Equal("192.168.3.39:5007", props.Address())
	})

	t.Run("Valid Configuration", func(t *testing.T) {
		cfg, err := NewConnectionConfig("10.0.0.1", 1025,
			WithSeries(device.SeriesQ),
			WithNetworkNo(1),
			WithPCNo(2),
			WithModuleIO(0x03E0),
			WithStationNo(4),
			WithMonitoringTimer(8),
			WithResponseTimeout(3*time.Second),
			WithConnectTimeout(2*time.Second),
			WithWriteTimeout(500*time.Millisecond),
			WithInitialSerial(100),
		)
		require.NoError(err)

		props := cfg.Properties()
		require.Equal(device.SeriesQ, props.Series)
		require.Equal(frame.Route{NetworkNo: 1, PCNo: 2, ModuleIO: 0x03E0, StationNo: 4}, props.Route)
		require.Equal(uint16(8), props.MonitoringTimer)

		resp, conn, write := cfg.timeouts()
		require.Equal(3*time.Second, resp)
		require.Equal(2*time.Second, conn)
		require.Equal(500*time.Millisecond, write)
		require.Equal(uint16(100), cfg.initialSerial)
		require.Equal(device.SeriesQ, cfg.Space().Series)
	})

	t.Run("Invalid Host", func(t *testing.T) {
		_, err := NewConnectionConfig("", 5007)
		require.EqualError(err, "invalid host")
	})

	t.Run("Invalid Port", func(t *testing.T) {
		_, err := NewConnectionConfig("127.0.0.1", 0)
		require.EqualError(err, "port is out of range [1, 65535]")

		_, err = NewConnectionConfig("127.0.0.1", 65536)
		require.EqualError(err, "port is out of range [1, 65535]")
	})

	t.Run("Invalid Timeouts", func(t *testing.T) {
		_, err := NewConnectionConfig("127.0.0.1", 5007, WithResponseTimeout(time.Millisecond))
		require.EqualError(err, "response timeout out of range [10ms, 1m0s]")

		_, err = NewConnectionConfig("127.0.0.1", 5007, WithConnectTimeout(2*time.Minute))
		require.EqualError(err, "connect timeout out of range [10ms, 1m0s]")

		_, err = NewConnectionConfig("127.0.0.1", 5007, WithWriteTimeout(0))
		require.EqualError(err, "write timeout out of range [10ms, 1m0s]")
	})

	t.Run("Invalid Series", func(t *testing.T) {
		_, err := NewConnectionConfig("127.0.0.1", 5007, WithSeries(device.Series(9)))
		require.ErrorIs(err, device.ErrInvalidSeries)
	})

	t.Run("Nil Arguments", func(t *testing.T) {
		_, err := NewConnectionConfig("127.0.0.1", 5007, WithDialer(nil))
		require.Error(err)

		_, err = NewConnectionConfig("127.0.0.1", 5007, WithLogger(nil))
		require.Error(err)

		_, err = NewConnectionConfig("127.0.0.1", 5007, WithDeviceTable(nil))
		require.Error(err)

		require.ErrorIs(WithSeries(device.SeriesQ).apply(nil), ErrConnConfigNil)
	})
}

func TestProperties_Comparable(t *testing.T) {
	require := require.New(t)

	a, err := NewConnectionConfig("127.0.0.1", 5007)
	require.NoError(err)
	b, err := NewConnectionConfig("127.0.0.1", 5007)
	require.NoError(err)
	c, err := NewConnectionConfig("127.0.0.1", 5007, WithSeries(device.SeriesQ))
	require.NoError(err)

	seen := map[Properties]int{a.Properties(): 1}
	require.Equal(1, seen[b.Properties()])
	require.Zero(seen[c.Properties()])
}
