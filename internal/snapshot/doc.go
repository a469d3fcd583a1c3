// Package snapshot implements the durable binary snapshot format of spec
// §4.7: a versioned, checksummed file capturing a catalog and every
// table's buffer, written atomically (temp file + rename) and validated
// before any of its contents are trusted.
//
// # Layout (little-endian)
//
//	offset  size  field
//	0       8     magic = "ECSDBSNP"
//	8       4     format_version (u32)
//	12      32    checksum (BLAKE2s-256 of bytes 44..EOF)
//	44      8     payload_size (u64)
//	52      ...   payload
//
// The payload is three tag-length-prefixed sections — Schema (JSON),
// Tables, Relations (JSON, redundant with Schema, kept for forward
// compatibility per spec) — each `(section_tag u16, length u64, body)`.
//
// Checksum is BLAKE2s-256 via golang.org/x/crypto/blake2s rather than
// stdlib SHA-256, since x/crypto already appears in the retrieved
// corpus's dependency set and SHA-256 would leave it unwired.
//
// The Tables section additionally carries each slot's free/live bit
// (packed one bit per slot) alongside its raw bytes: the spec's wire
// layout names only record_size/record_count/bytes, but recovering a
// table's free list is necessary for logical indices to survive a
// save/load round trip unchanged, so the mask travels with the record
// bytes rather than being reconstructed by convention.
package snapshot
