// Package server provides HTTP server setup and initialization for Curio.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, recovery, metrics)
//   - Persistent store and startup reconciliation
//   - Tool registry and provider registration
//   - Approval gate and event bus
//   - WebSocket streaming for renders and approvals
//
// Server Lifecycle:
//  1. Load configuration from environment
//  2. Open the persistent store (optional)
//  3. Reconcile persisted approval requests
//  4. Sweep expired tool cache entries
//  5. Register service providers
//  6. Setup HTTP routes and middleware
//  7. Start HTTP server
//  8. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, logger)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
