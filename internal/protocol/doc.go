// Package protocol owns the tagged record wire contract.
//
// Ownership boundary:
// - buffer: little-endian writer/reader primitives and length slots
// - schema: record shapes and untyped shape validation
// - wire: generic field tables, record encode/decode, forward-compatible skipping
// - text: JSON/YAML engines and text <-> record transcoding
package protocol
