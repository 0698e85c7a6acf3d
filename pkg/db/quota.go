package db

// Quota accounts the bytes held by a volatile engine against the configured
// size. It is not synchronized; engines update it under their write lock.
type Quota struct {
	Limit uint64 // zero means unlimited
	used  uint64
}

// Replace accounts for a record of oldSize bytes being replaced by one of
// newSize bytes, failing with StatusOutOfMemory when the limit would be
// exceeded.
func (q *Quota) Replace(oldSize, newSize int) error {
	used := q.used - uint64(oldSize) + uint64(newSize)
	if q.Limit > 0 && used > q.Limit {
		return Errorf(StatusOutOfMemory, "engine size %d exhausted (%d bytes in use, %d requested)", q.Limit, q.used, newSize)
	}
	q.used = used
	return nil
}

func (q *Quota) Used() uint64 { return q.used }
