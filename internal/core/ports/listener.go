package ports

// Listener receives batches drained from the queue. Deliver is only ever
// called from the queue's worker goroutine, never concurrently with itself.
type Listener[T any] interface {
	Deliver(batch []T) error
}
