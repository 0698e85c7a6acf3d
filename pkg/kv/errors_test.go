package kv

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/eigerco/kvbind/pkg/db"
)

func TestMapError(t *testing.T) {
	cause := errors.New("disk on fire")

	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "unknown", err: db.Errorf(db.StatusUnknownError, "x"), kind: KindUnknown},
		{name: "not_found", err: db.Errorf(db.StatusNotFound, "x"), kind: KindNotFound},
		{name: "not_supported", err: db.Errorf(db.StatusNotSupported, "x"), kind: KindNotSupported},
		{name: "invalid_argument", err: db.Errorf(db.StatusInvalidArgument, "x"), kind: KindInvalidArgument},
		{name: "config_parsing", err: db.Errorf(db.StatusConfigParsingError, "x"), kind: KindConfigParsing},
		{name: "config_type", err: db.Errorf(db.StatusConfigTypeError, "x"), kind: KindConfigType},
		{name: "stopped_by_callback", err: db.Errorf(db.StatusStoppedByCallback, "x"), kind: KindStoppedByCallback},
		{name: "out_of_memory", err: db.Errorf(db.StatusOutOfMemory, "x"), kind: KindOutOfMemory},
		{name: "wrong_engine_name", err: db.Errorf(db.StatusWrongEngineName, "x"), kind: KindWrongEngineName},
		{name: "transaction_scope", err: db.Errorf(db.StatusTransactionScopeError, "x"), kind: KindTransactionScope},
		{name: "defrag", err: db.Errorf(db.StatusDefragError, "x"), kind: KindDefrag},
		{name: "unmapped_status", err: db.Errorf(db.Status(99), "x"), kind: KindUnknown},
		{name: "wrapped_status", err: fmt.Errorf("context: %w", db.Wrap(db.StatusOutOfMemory, cause)), kind: KindOutOfMemory},
		{name: "pinned_allocation", err: errors.Join(buffer.ErrOutOfMemory, cause), kind: KindOutOfMemory},
		{name: "pool_closed", err: buffer.ErrPoolClosed, kind: KindStopped},
		{name: "foreign", err: cause, kind: KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError(tc.err, nil)
			assert.Equal(t, tc.kind, KindOf(err))

			var e *Error
			assert.ErrorAs(t, err, &e)
		})
	}

	assert.NoError(t, mapError(nil, []byte("k")))
}

func TestMapErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	key := []byte("key")

	err := mapError(db.Wrap(db.StatusOutOfMemory, cause), key)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.NotErrorIs(t, err, ErrNotFound)

	var e *Error
	assert.ErrorAs(t, err, &e)
	assert.Equal(t, key, e.Key)

	// The key is copied, it usually lives in a pooled buffer.
	key[0] = 'K'
	assert.Equal(t, []byte("key"), e.Key)
	assert.Contains(t, err.Error(), `"key"`)

	// Already mapped errors are not wrapped twice.
	assert.Same(t, err, mapError(err, []byte("other")))
}

func TestErrorIs(t *testing.T) {
	err := &Error{Kind: KindNotFound, Message: "key absent"}
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotSupported)
	assert.NotErrorIs(t, err, &Error{Kind: KindNotFound, Message: "other"})
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "kv: not found: key absent", err.Error())
}
