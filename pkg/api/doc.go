// Package api defines the public types of the orchestrator
//
// This package contains workflow definitions, job records, job events, and
// the request and response messages of the HTTP API
package api
