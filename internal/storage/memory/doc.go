// Package memory holds the live chat state in process memory.
//
// Store groups three components:
//
//   - MessageLog: bounded ordered message list with renumber-on-trim ids
//   - Directory: case-insensitive username to account map
//   - Registry: session token hash to username map on sharded locks
//
// Every exported operation is safe for concurrent use. Readers receive
// copies; nothing returned aliases internal state.
package memory
