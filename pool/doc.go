// Package pool
// Author: momentics <momentics@gmail.com>
//
// Buffer pooling for hioload-fs. Connection fragment buffers and file
// streaming chunks come from fixed-size pools and are returned once drained.
package pool
