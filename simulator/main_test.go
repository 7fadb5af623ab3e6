package simulator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/slmp"
)

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

// newPair starts a simulator and a session connected to it over a pipe.
func newPair(t *testing.T, series device.Series, opts ...Option) (*Server, *slmp.Session) {
	t.Helper()

	opts = append([]Option{WithSeries(series), WithLogger(logger.NewPermissiveMockLogger())}, opts...)
	srv := New(opts...)
	t.Cleanup(func() { _ = srv.Close() })

	cfg, err := slmp.NewConnectionConfig("127.0.0.1", 5007,
		slmp.WithSeries(series),
		slmp.WithDialer(srv.Dial),
		slmp.WithResponseTimeout(200*time.Millisecond),
		slmp.WithLogger(logger.NewPermissiveMockLogger()),
	)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	sess, err := slmp.NewSession(context.Background(), cfg)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	return srv, sess
}

func bothSeries(t *testing.T, fn func(t *testing.T, series device.Series)) {
	t.Helper()

	for _, series := range []device.Series{device.SeriesQ, device.SeriesR} {
		t.Run(series.String(), func(t *testing.T) { fn(t, series) })
	}
}
