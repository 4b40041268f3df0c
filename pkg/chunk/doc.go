// Package chunk reconstructs large PE responses and Notify messages from
// ordered chunks keyed by (source DUID, Request ID). Shaped after
// backkem-matter's im.Assembler: accumulate into a buffer, detect
// completion, reset on protocol error.
package chunk
