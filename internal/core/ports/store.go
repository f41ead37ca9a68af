package ports

// QueueStore is the persistent log the scheduler drains.
// Implementations must be safe for concurrent Append and ReadBatch calls.
type QueueStore[T any] interface {
	// Append durably adds a record after every record appended before it.
	Append(record T) error

	// HasUnreadData reports whether the marker is behind the write pointer.
	HasUnreadData() bool

	// ReadBatch returns up to maxCount records starting at the marker
	// without moving it.
	ReadBatch(maxCount int) ([]T, error)

	// AdvanceMarker moves the marker past the last batch returned by
	// ReadBatch and persists it.
	AdvanceMarker() error

	// SetMarker overrides the marker. No validation against the write
	// pointer is performed.
	SetMarker(value uint64) error

	// Marker returns the persisted marker.
	Marker() uint64

	// Close releases the underlying files.
	Close() error
}
