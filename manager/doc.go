// Package manager supervises many SLMP sessions, each with its own cyclic polling worker.
//
// A Manager holds at most one live session per endpoint, keyed by slmp.Properties. Connect dials
// the endpoint and starts a worker that ticks every base period (100 ms by default). On each tick
// the worker reads the polling targets that are due with random reads and passes the values to the
// caller's CyclicTask:
//
//	Fast    every tick
//	Medium  every 5th tick
//	Slow    every 10th tick
//	Watch   once per 50-tick round
//
// A CyclicTask that returns an error ends its worker; the error becomes the terminal outcome of
// that connection and is reported by Status and Wait. The manager never retries; a task that wants
// to survive a dropped transport can reconnect through Cycle.Session.
//
// Connecting an endpoint that already has a worker replaces it: the old worker is stopped and its
// session closed before the new session is dialled. Handles of replaced workers become stale and
// Disconnect ignores them.
//
// Workers of different endpoints share nothing but the table, so a slow or failed endpoint does not
// delay the others.
package manager
