// Package models contains the GORM persistence models of the ledger.
//
// Event streams, snapshots, sequences and the outbox are storage records with
// no domain behaviour; reconciliation issues are the only state-stored entity
// and are mapped to and from the domain type here.
package models
