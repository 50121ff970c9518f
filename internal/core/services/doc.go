// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync orchestrator, request builders, state service and migrator live
// here. They depend only on ports, never on a concrete store or directory.
package services
