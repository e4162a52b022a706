// Package server implements the HTTP API of the orchestrator
//
// It exposes endpoints to trigger workflows and inspect jobs, receives
// GitHub and n8n webhooks, streams job events over WebSocket and reports
// the health of the integrated services
package server
