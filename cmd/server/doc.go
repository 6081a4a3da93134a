// Package main is the entry point for the Curio server.
//
// The server hosts sandboxed rendering of collected web content and the
// tool pipeline that transforms it.
//
// Architecture:
//
//	Client (WebSocket/REST) → HTTP server → Tool registry → Providers
//	                                     → Sandboxed renderer (per connection)
//	                                     → Approval gate → Human decision
//
// The server provides:
//   - REST API for tool execution and approvals
//   - WebSocket streaming for renders and approval events
//   - Human-approval gating for destructive tools
//   - TTL caching of idempotent tool results
//   - SQLite-backed persistence with graceful degradation
//
// Configuration:
//   - Environment variables (12-factor)
//   - Defaults for development
//
// Usage:
//
//	PORT=8000 STORE_PATH=curio.db ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
