// Package schema implements the catalog of tables, fields, and relations
// described in spec §4.2: name resolution, field-offset derivation,
// structural validation, and JSON (de)serialization.
//
// A Catalog owns no record bytes itself — each Table carries a
// swapcell.Cell[storage.Buffer] that internal/txn publishes into on
// commit. schema depends on internal/storage and internal/typesys but
// never the reverse, and never on internal/txn: mutation sequencing and
// atomicity live one layer up.
//
// Packing is always tight (record alignment 1): AddField and CreateTable
// compute each field's byte_offset as the prefix sum of the preceding
// fields' sizes, with no inter-field padding, matching
// internal/storage's memmove-based field access.
package schema
