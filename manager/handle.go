package manager

import (
	"fmt"
	"time"

	"github.com/arloliu/go-slmp/slmp"
)

// Handle names one connection made by a Manager. A new Connect of the same endpoint returns a new
// handle; the previous one becomes stale.
type Handle struct {
	ID    uint64
	Props slmp.Properties
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d %s", h.ID, h.Props.Address())
}

// Status is a snapshot of one managed connection.
type Status struct {
	Handle       Handle
	State        WorkerState
	SessionState slmp.ConnState
	ConnectedAt  time.Time
	Cycles       uint64
	// Err is the terminal error once State is FailedState.
	Err error
}

// Uptime returns the time since the connection was made.
func (s Status) Uptime() time.Duration {
	return time.Since(s.ConnectedAt)
}
