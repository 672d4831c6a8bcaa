// Package storage provides interfaces for authorization code and client persistence.
//
// The storage package defines the core storage interfaces used throughout the library:
//   - FlowStore: Manages single-use authorization codes
//   - ClientStore: Manages registered clients and their credentials
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development and testing
//   - storage/mock: Mock storage for unit testing
package storage
