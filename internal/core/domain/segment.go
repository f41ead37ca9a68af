package domain

// SegmentInfo describes one segment file of a queue.
type SegmentInfo struct {
	// BaseOffset is the logical offset of the first record in the segment.
	BaseOffset uint64

	// Records is the number of records the segment holds.
	Records uint64

	// Size is the size of the segment file in bytes. For archives this is
	// the uncompressed size.
	Size int64

	// Path is the absolute file path of the segment.
	Path string

	// Active is true for the segment currently receiving appends.
	Active bool

	// Archived is true once the segment has been compressed.
	Archived bool
}

// EndOffset returns the offset one past the last record of the segment.
func (s SegmentInfo) EndOffset() uint64 {
	return s.BaseOffset + s.Records
}
