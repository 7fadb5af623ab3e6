package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/manager"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/arloliu/go-slmp/slmp"
	"github.com/stretchr/testify/require"
)

const sample = `
log_level: debug
base_tick: 50ms
connections:
  - name: press-1
    host: 192.168.3.39
    series: q
    network: 1
    pc: 255
    module_io: 0x03FF
    station: 0
    monitoring_timer: 4
    response_timeout: 2s
    targets:
      - device: D100
        type: u32
        interval: fast
      - device: M20
        interval: slow
      - device: X1F
        interval: watch
  - host: 192.168.3.40
    port: 6000
`

func TestLoad(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "slmp.yaml")
	require.NoError(os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(err)

	require.Equal(logger.DebugLevel, cfg.Level())
	require.Equal(50*time.Millisecond, cfg.BaseTick)
	require.Len(cfg.ManagerOptions(), 1)
	require.Len(cfg.Connections, 2)

	press, ok := cfg.Find("press-1")
	require.True(ok)
	require.Equal(DefaultPort, press.Port)

	scfg, err := press.Config()
	require.NoError(err)
	props := scfg.Properties()
	require.Equal(device.SeriesQ, props.Series)
	require.Equal(uint8(1), props.Route.NetworkNo)
	require.Equal(uint16(0x03FF), props.Route.ModuleIO)
	require.Equal(uint16(4), props.MonitoringTimer)

	targets, err := press.PollTargets()
	require.NoError(err)
	require.Equal([]manager.Target{
		{Point: device.NewPoint(device.Addr("D", 100), plcdata.U32), Interval: manager.Fast},
		{Point: device.NewPoint(device.Addr("M", 20), plcdata.Bool), Interval: manager.Slow},
		{Point: device.NewPoint(device.Addr("X", 0x1F), plcdata.Bool), Interval: manager.Watch},
	}, targets)

	second, ok := cfg.Find("192.168.3.40:6000")
	require.True(ok)
	opts, err := second.Options()
	require.NoError(err)
	require.Empty(opts)
	targets, err = second.PollTargets()
	require.NoError(err)
	require.Empty(targets)

	_, ok = cfg.Find("missing")
	require.False(ok)
}

func TestLoad_MissingFile(t *testing.T) {
	require := require.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorIs(err, os.ErrNotExist)
}

func TestParse_Empty(t *testing.T) {
	require := require.New(t)

	cfg, err := Parse(strings.NewReader(""))
	require.NoError(err)
	require.Empty(cfg.Connections)
	require.Equal(logger.InfoLevel, cfg.Level())
	require.Empty(cfg.ManagerOptions())
}

func TestParse_UnknownField(t *testing.T) {
	require := require.New(t)

	_, err := Parse(strings.NewReader("connections:\n  - host: a\n    colour: red\n"))
	require.ErrorContains(err, "colour")
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	require := require.New(t)

	doc := `
log_level: loud
connections:
  - name: a
    host: 10.0.0.1
    series: z
  - name: a
    host: 10.0.0.2
    response_timeout: -1s
  - name: b
    host: 10.0.0.3
    targets:
      - device: D100
        interval: hourly
      - device: QQ1
      - device: SD4095
        type: f64
  - name: c
    host: 10.0.0.3
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(err)

	msg := err.Error()
	for _, want := range []string{
		"log_level",
		`connections[0] "a"`,
		`connections[1] "a": name already used by connections[0]`,
		"response timeout",
		"targets[0] D100",
		"targets[1] QQ1",
		"targets[2] SD4095",
		`connections[3] "c": endpoint`,
	} {
		require.Contains(msg, want)
	}
	require.ErrorIs(err, device.ErrInvalidSeries)
	require.ErrorIs(err, manager.ErrInvalidInterval)
	require.ErrorIs(err, device.ErrInvalidAddress)
	require.ErrorIs(err, device.ErrOutOfRange)
}

func TestConnection_ConfigExtraOptions(t *testing.T) {
	require := require.New(t)

	conn := Connection{Host: "127.0.0.1", Port: 5007}
	scfg, err := conn.Config(slmp.WithSeries(device.SeriesQ))
	require.NoError(err)
	require.Equal(device.SeriesQ, scfg.Properties().Series)

	conn.Host = ""
	_, err = conn.Config()
	require.Error(err)
}
