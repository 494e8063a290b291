// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer for hioload-fs.
//
// Provides concurrent-safe state handling primitives including:
//   - Connection and response counters backed by a Prometheus registry
//   - Named debug probes dumped as JSON
//   - An HTTP mux exposing both on a side port
package control
