// Package model defines the read-model records handed to callers.
//
// Every record is rebuilt from ledger objects per request; nothing here is
// cached. JSON tags are the boundary shape consumed by UI code.
package model
