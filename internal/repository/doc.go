// Package repository defines the deployment ledger for ecordtopo.
//
// The ledger is optional: it records which domains were deployed, every
// lifecycle transition they went through and the segment-routing documents
// exported for them. The implementation is in the sqlite subpackage.
//
// # Testing
//
// The sqlite ledger is tested against in-memory databases.
package repository
