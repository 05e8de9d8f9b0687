// Package shutdown runs registered cleanup hooks when the process is asked
// to stop.
//
// Usage:
//
//	h := shutdown.NewHandler(15*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("final snapshot", backup.RunOnce)
//	err := h.Wait(ctx) // SIGINT, SIGTERM or ctx cancellation
//
// Hooks run once, newest first, under a shared deadline.
package shutdown
