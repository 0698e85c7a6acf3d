package kv

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/eigerco/kvbind/pkg/converter"
	"github.com/eigerco/kvbind/pkg/db"
	"github.com/eigerco/kvbind/pkg/log"
)

// Builder collects the configuration of a Database. Setters never fail on
// their own; the first invalid setting is reported by Build.
//
// A Builder that is abandoned before Build must be released with Release.
type Builder[K, V any] struct {
	engine     string
	cfg        *db.Config
	keys       converter.Converter[K]
	values     converter.Converter[V]
	bufferSize int
	logger     *zerolog.Logger
	stats      bool
	err        error
}

// NewBuilder starts the configuration of a database on the named engine.
// Keys and values of type []byte, string, uint64, int64 and *buffer.Buffer
// get a converter by default.
func NewBuilder[K, V any](engine string) *Builder[K, V] {
	return &Builder[K, V]{
		engine: engine,
		cfg:    db.NewConfig(),
		keys:   defaultConverter[K](),
		values: defaultConverter[V](),
	}
}

func defaultConverter[T any]() converter.Converter[T] {
	var (
		zero T
		c    any
	)
	switch any(zero).(type) {
	case []byte:
		c = converter.Bytes{}
	case string:
		c = converter.String{}
	case uint64:
		c = converter.Uint64{}
	case int64:
		c = converter.Int64{}
	case *buffer.Buffer:
		c = converter.Buffer{}
	default:
		return nil
	}
	return c.(converter.Converter[T])
}

func (b *Builder[K, V]) fail(err error) *Builder[K, V] {
	if b.err == nil && err != nil {
		b.err = mapError(err, nil)
	}
	return b
}

// SetSize sets the engine size in bytes. It is required together with
// force_create.
func (b *Builder[K, V]) SetSize(size uint64) *Builder[K, V] {
	return b.fail(b.cfg.PutUint64(db.KeySize, size))
}

// SetPath sets the storage location of persistent engines.
func (b *Builder[K, V]) SetPath(path string) *Builder[K, V] {
	return b.fail(b.cfg.PutString(db.KeyPath, path))
}

// SetForceCreate makes open fail if the storage already exists, instead of
// failing if it does not.
func (b *Builder[K, V]) SetForceCreate(force bool) *Builder[K, V] {
	return b.fail(b.cfg.PutBool(db.KeyForceCreate, force))
}

// SetOption passes an engine specific option through. Integers, strings and
// booleans are accepted.
func (b *Builder[K, V]) SetOption(key string, value any) *Builder[K, V] {
	switch v := value.(type) {
	case string:
		return b.fail(b.cfg.PutString(key, v))
	case bool:
		return b.fail(b.cfg.PutBool(key, v))
	case uint64:
		return b.fail(b.cfg.PutUint64(key, v))
	case uint:
		return b.fail(b.cfg.PutUint64(key, uint64(v)))
	case uint32:
		return b.fail(b.cfg.PutUint64(key, uint64(v)))
	case int64:
		return b.putInt(key, v)
	case int:
		return b.putInt(key, int64(v))
	case int32:
		return b.putInt(key, int64(v))
	case float64:
		// Numbers decoded from JSON and YAML files.
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxUint64 {
			if v < 0 {
				return b.putInt(key, int64(v))
			}
			return b.fail(b.cfg.PutUint64(key, uint64(v)))
		}
	}
	return b.fail(newError(KindConfigType, "unsupported value %v (%T) for option %s", value, value, key))
}

// putInt stores non-negative integers as unsigned, which is what engines
// expect for sizes and counts.
func (b *Builder[K, V]) putInt(key string, v int64) *Builder[K, V] {
	if v >= 0 {
		return b.fail(b.cfg.PutUint64(key, uint64(v)))
	}
	return b.fail(b.cfg.PutInt64(key, v))
}

// FromJSON adds every member of a flat JSON object as an option.
func (b *Builder[K, V]) FromJSON(doc string) *Builder[K, V] {
	return b.fail(b.cfg.FromJSON(doc))
}

// FromFile adds the options found in a JSON, YAML or TOML file. Nested
// tables are flattened into dotted keys. A top level "engine" entry
// replaces the engine name given to NewBuilder.
func (b *Builder[K, V]) FromFile(path string) *Builder[K, V] {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return b.fail(&Error{Kind: KindConfigParsing, Message: "unable to read " + path, Err: err})
	}
	for _, key := range v.AllKeys() {
		if key == "engine" {
			if name := v.GetString(key); name != "" {
				b.engine = name
			}
			continue
		}
		b.SetOption(key, v.Get(key))
	}
	return b
}

func (b *Builder[K, V]) SetKeyConverter(c converter.Converter[K]) *Builder[K, V] {
	b.keys = c
	return b
}

func (b *Builder[K, V]) SetValueConverter(c converter.Converter[V]) *Builder[K, V] {
	b.values = c
	return b
}

// SetBufferSize sets the capacity of each pooled buffer. Larger payloads
// still work but are copied into one-off buffers.
func (b *Builder[K, V]) SetBufferSize(size int) *Builder[K, V] {
	b.bufferSize = size
	return b
}

// SetLogger replaces the database logger, which defaults to the binding
// logger of pkg/log.
func (b *Builder[K, V]) SetLogger(logger zerolog.Logger) *Builder[K, V] {
	b.logger = &logger
	return b
}

// EnableStats makes the database record per operation latencies.
func (b *Builder[K, V]) EnableStats() *Builder[K, V] {
	b.stats = true
	return b
}

// Release drops the collected configuration without opening anything.
func (b *Builder[K, V]) Release() {
	b.cfg.Delete()
}

func (b *Builder[K, V]) validate() error {
	switch {
	case b.err != nil:
		return b.err
	case b.keys == nil:
		return newError(KindInvalidArgument, "no key converter set")
	case b.values == nil:
		return newError(KindInvalidArgument, "no value converter set")
	case b.bufferSize < 0:
		return newError(KindInvalidArgument, "negative buffer size %d", b.bufferSize)
	}
	return nil
}

// Build opens the database. The configuration is consumed whether or not
// Build succeeds.
func (b *Builder[K, V]) Build() (*Database[K, V], error) {
	if err := b.validate(); err != nil {
		b.cfg.Delete()
		return nil, err
	}
	engine, err := openEngine(b.engine, b.cfg)
	if err != nil {
		return nil, err
	}
	logger := log.Binding.With().Str("engine", b.engine).Logger()
	if b.logger != nil {
		logger = *b.logger
	}
	return newDatabase(b.engine, engine, b.keys, b.values, b.bufferSize, logger, b.stats), nil
}

// Open opens the named engine with cfg, which it consumes, using default
// buffer sizes and logging.
func Open[K, V any](engine string, cfg *db.Config, keys converter.Converter[K], values converter.Converter[V]) (*Database[K, V], error) {
	if keys == nil || values == nil {
		cfg.Delete()
		return nil, newError(KindInvalidArgument, "key and value converters are required")
	}
	e, err := openEngine(engine, cfg)
	if err != nil {
		return nil, err
	}
	return newDatabase(engine, e, keys, values, buffer.DefaultSize, log.Binding.With().Str("engine", engine).Logger(), false), nil
}
