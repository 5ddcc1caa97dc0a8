// Package ledger holds the wire shapes and service interfaces of the object
// ledger the read models are built from.
//
// Reader and Writer are the only ledger surfaces the rest of the module
// depends on. ledger/jsonrpc talks to a fullnode over HTTP; ledger/memledger
// is an in-process ledger for tests and local runs.
package ledger
