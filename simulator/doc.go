// Package simulator is an in-process SLMP 4E server with device memory.
//
// It answers bulk, random, block and monitor device access, remote control, CPU model, lock and
// echo requests in binary format for either CPU series, which is enough to exercise a client end
// to end without hardware. Faults such as delayed, dropped or failed responses can be injected per
// command.
//
//	srv := simulator.New(simulator.WithSeries(device.SeriesR))
//	_ = srv.Memory().WriteWords(device.Addr("D", 100), 1, 2, 3)
//	go srv.ListenAndServe(ctx, "127.0.0.1:5007")
//
// Tests that do not need a socket can pass srv.Dial to slmp.WithDialer.
package simulator
