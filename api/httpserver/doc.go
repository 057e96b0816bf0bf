// Package httpserver provides the HTTP server shared by the ppcalc service
// endpoints.
//
// BaseServer wraps a chi router with request IDs, real IP detection, panic
// recovery, optional CORS handling and slog request logging. Components
// mount their endpoints by implementing RouteRegistrar.
//
// Every server includes:
//
//   - /livez: the process is running
//   - /readyz: the server accepts new work (503 while draining)
//   - /drain and /undrain: toggle readiness ahead of a shutdown
//   - /debug/pprof when EnablePprof is set
//
// Prometheus metrics are served by a separate listener on MetricsAddr.
//
// Usage:
//
//	srv, err := httpserver.New(cfg, analysis.NewHandler(st, m, log))
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
