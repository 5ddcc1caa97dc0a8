// Package keys provides account keys for signing ledger transactions.
//
// Stable:
//   - Signers, address derivation, signature verification and account-seed
//     derivation. These define what the ledger accepts.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore and related helpers). These are
//     local-first utilities for the development tools.
package keys
