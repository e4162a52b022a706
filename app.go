// Package aican identifies the Tu Orchestrator service build
package aican

const (
	// Name is the service name reported in logs and health responses
	Name = "tu-orchestrator"

	// Version is the service version reported in logs and health responses
	Version = "0.4.0"
)
