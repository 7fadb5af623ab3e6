// Package slmp implements an SLMP client session over a 4E binary frame TCP connection.
//
// A Session owns one transport to one PLC endpoint. It serialises request/response exchanges,
// correlates responses by serial number, bounds each exchange by the configured response timeout
// and keeps the monitor registration state that MonitorRead depends on.
//
// Session states:
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// Commands are only accepted in the Connected state; any other state fails immediately with a
// *StateError. A response timeout returns a *TimeoutError and leaves the session connected, while a
// transport failure returns a *TransportError and moves the session to Disconnected. A random write
// that mixes bit and word values takes two packets; if the second fails the error is a
// *PartialWriteError and the first packet has already been applied.
//
// Example:
//
//	cfg, err := slmp.NewConnectionConfig("192.168.3.39", 5007, slmp.WithSeries(device.SeriesR))
//	if err != nil {
//		return err
//	}
//	sess, err := slmp.NewSession(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := sess.Connect(ctx); err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	values, err := sess.ReadValues(ctx, device.MustParseAddress("D100"), plcdata.F32, 4)
package slmp
