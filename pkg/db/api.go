package db

// VisitFunc receives one record of a scan. The slices alias engine memory and
// are only valid until the function returns. A non-zero result stops the scan,
// which then fails with StatusStoppedByCallback.
type VisitFunc func(key, value []byte) int

// Engine is the boundary to an opaque key-value engine. All calls are
// synchronous. Failures are reported as *StatusError; absence of a key is
// reported as StatusNotFound by Get and by cursor movement.
type Engine interface {
	// Ordered reports whether the engine keeps keys in byte-wise order, which
	// range queries and backward cursor movement require.
	Ordered() bool

	Exists(key []byte) (bool, error)
	Get(key []byte, fn func(value []byte)) error
	Put(key, value []byte) error
	Remove(key []byte) (bool, error)

	CountAll() (uint64, error)
	CountAbove(key []byte) (uint64, error)
	CountBelow(key []byte) (uint64, error)
	CountBetween(key1, key2 []byte) (uint64, error)

	GetAll(fn VisitFunc) error
	GetAbove(key []byte, fn VisitFunc) error
	GetBelow(key []byte, fn VisitFunc) error
	GetBetween(key1, key2 []byte, fn VisitFunc) error

	Defrag(startPercent, amountPercent float64) error

	NewCursor() (Cursor, error)
	NewWriteCursor() (WriteCursor, error)

	Close() error
}

// Cursor is an engine side iterator. Seek and movement calls fail with
// StatusNotFound when the requested position does not exist.
type Cursor interface {
	Seek(key []byte) error
	SeekLower(key []byte) error
	SeekLowerEq(key []byte) error
	SeekHigher(key []byte) error
	SeekHigherEq(key []byte) error
	SeekToFirst() error
	SeekToLast() error

	IsNext() (bool, error)
	IsPrev() (bool, error)
	Next() error
	Prev() error

	// Key and ReadRange return views of engine memory valid until the cursor
	// moves.
	Key() ([]byte, error)
	ReadRange(pos, n int) ([]byte, error)

	Close() error
}

// WriteCursor additionally allows in-place modification of the current value.
// Modified ranges become visible to other readers on Commit; moving the
// cursor or calling Abort drops uncommitted changes.
type WriteCursor interface {
	Cursor
	WriteRange(pos, n int) ([]byte, error)
	Commit() error
	Abort() error
}

// Driver opens an engine. Open takes ownership of cfg whether it succeeds or
// not.
type Driver interface {
	Open(cfg *Config) (Engine, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(cfg *Config) (Engine, error)

func (f DriverFunc) Open(cfg *Config) (Engine, error) { return f(cfg) }
