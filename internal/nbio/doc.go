// Package nbio
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking socket I/O primitives: a raw fd connection whose reads and
// writes surface would-block instead of suspending, and a Writer that hides
// transient send failures behind an all-or-error contract.
package nbio
