// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Directory: Reads users and groups from an identity directory
//   - DirectoryFactory: Creates directories from configuration
//   - StateStore: Flat key/value state persistence
//   - SecureStore: Secret persistence
//   - ImportClient: Submits import requests to the organization API
//   - ConfigStore: Process-level settings
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SyncLock: Cross-process single-flight. The in-process guard always applies.
//   - SyncObserver: Metrics. Without it, no metrics are recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
