package engine

// Sink receives each resynthesized batch. The slice is only valid for the
// duration of the call. Deliver returns how many events it accepted.
type Sink interface {
	Deliver(batch []Event) int
}
