// Package memory provides an in-memory implementation of the storage interfaces.
//
// This package implements FlowStore and ClientStore using Go's built-in maps
// with mutex protection for thread safety. It is suitable for development,
// testing, and single-instance deployments where persistence is not required.
//
// Features:
//   - Thread-safe operations using sync.RWMutex
//   - Atomic single-use consumption of authorization codes
//   - Automatic cleanup of expired codes
//   - Configurable cleanup intervals
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	// Use store for FlowStore and ClientStore interfaces
//	server, _ := oauth.NewServer(gateway, codec, store, store, config, logger)
package memory
