// Package memory provides mutex-guarded in-process implementations of the
// ledger's storage ports. They follow the same contracts as the GORM stores
// and back the application tests and single-process development runs.
package memory
