package models

// StorageKind names the backend that currently owns user records.
type StorageKind string

const (
	StorageMongo    StorageKind = "mongodb"
	StorageJSON     StorageKind = "json_backup"
	StorageTextFile StorageKind = "text_file"
)

// UserStats is the aggregate shown on the admin panel.
// Err is set when the numbers could not be computed; the counters are zero then.
type UserStats struct {
	Total       int64
	Blocked     int64
	ActiveToday int64
	ActiveWeek  int64
	NewToday    int64
	Backend     StorageKind
	Err         bool
}
