// Package engine implements the workflow orchestrator
//
// This package contains the job tracker, the action and condition
// registries, and the loop that drives each job through its steps
package engine
