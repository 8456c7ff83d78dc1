package store

import "time"

// FileRecord represents an analyzed source file.
type FileRecord struct {
	ID          int64
	Path        string
	Hash        string
	Language    string
	IndexedAt   time.Time
	SizeBytes   int64
	Diagnostics int
}

// EntityRecord is one stored structural entity. Ordinal and Parent are
// positions in the file's entity list.
type EntityRecord struct {
	ID         int64
	FileID     int64
	Ordinal    int
	Parent     int
	Kind       string
	Name       string
	StartByte  int
	EndByte    int
	StartLine  int
	EndLine    int
	Complexity int
}

// FileSummary is a lightweight file record for listings.
type FileSummary struct {
	Path          string
	Language      string
	Entities      int
	MaxComplexity int
}

// EntityMatch is an entity found by name, with its file.
type EntityMatch struct {
	Entity   EntityRecord
	FilePath string
	Language string
}
