// Package models defines the core domain models for tithe.
//
// # Models
//
//   - CalcSession: one saved calculation (base items, percent rate, deductions)
//   - CalcItem: one addend of the base sum
//   - Deduction: an amount subtracted from the percentage share, optionally
//     evidenced by a receipt image
//   - ImageAttachment: a compressed receipt image stored inline as a data URI
//   - User: a registered account; its ID is the principal that owns sessions
//
// # Ownership
//
// A session is the sole owner of its items, deductions and attachments.
// Nothing is shared across sessions and there are no back-references, so a
// session can be persisted and deleted as one document.
package models
