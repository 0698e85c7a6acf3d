package db

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// Recognized configuration keys. Any other key is passed through to the
// engine untouched.
const (
	KeySize        = "size"
	KeyPath        = "path"
	KeyForceCreate = "force_create"
)

type configState uint8

const (
	configOpen configState = iota
	configConsumed
	configReleased
)

// Config is an opaque bag of engine options. It is consumed exactly once by a
// Driver; a Config that never reaches a driver must be released with Delete.
//
// Values are stored as uint64, int64 or string. Booleans are stored as the
// uint64 values 0 and 1.
type Config struct {
	entries map[string]any
	state   configState
}

func NewConfig() *Config {
	return &Config{entries: make(map[string]any)}
}

func (c *Config) put(key string, value any) error {
	if err := c.usable(); err != nil {
		return err
	}
	if key == "" {
		return Errorf(StatusInvalidArgument, "config: empty key")
	}
	c.entries[key] = value
	return nil
}

func (c *Config) PutUint64(key string, value uint64) error { return c.put(key, value) }

func (c *Config) PutInt64(key string, value int64) error { return c.put(key, value) }

func (c *Config) PutString(key, value string) error { return c.put(key, value) }

func (c *Config) PutBool(key string, value bool) error {
	if value {
		return c.put(key, uint64(1))
	}
	return c.put(key, uint64(0))
}

// FromJSON adds every member of a flat JSON object. Nested objects, arrays and
// nulls are rejected with StatusConfigTypeError; malformed documents with
// StatusConfigParsingError.
func (c *Config) FromJSON(doc string) error {
	if err := c.usable(); err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()

	var members map[string]any
	if err := dec.Decode(&members); err != nil {
		return &StatusError{Status: StatusConfigParsingError, Msg: "config: invalid JSON", Err: err}
	}
	if dec.More() {
		return Errorf(StatusConfigParsingError, "config: trailing data after JSON object")
	}
	for key, raw := range members {
		value, err := jsonValue(key, raw)
		if err != nil {
			return err
		}
		if err := c.put(key, value); err != nil {
			return err
		}
	}
	return nil
}

func jsonValue(key string, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return uint64(1), nil
		}
		return uint64(0), nil
	case json.Number:
		s := v.String()
		if strings.HasPrefix(s, "-") {
			i, err := v.Int64()
			if err != nil {
				return nil, &StatusError{Status: StatusConfigTypeError, Msg: "config: " + key, Err: err}
			}
			return i, nil
		}
		var u uint64
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			return nil, &StatusError{Status: StatusConfigTypeError, Msg: "config: " + key, Err: err}
		}
		return u, nil
	default:
		return nil, Errorf(StatusConfigTypeError, "config: unsupported value type %T for %s", raw, key)
	}
}

// Uint64 returns the value of key. Non-negative int64 values are accepted.
func (c *Config) Uint64(key string) (uint64, bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case uint64:
		return v, true, nil
	case int64:
		if v >= 0 {
			return uint64(v), true, nil
		}
	}
	return 0, true, Errorf(StatusConfigTypeError, "config: %s is %T, expected unsigned integer", key, raw)
}

// Int64 returns the value of key. uint64 values that fit are accepted.
func (c *Config) Int64(key string) (int64, bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int64:
		return v, true, nil
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true, nil
		}
	}
	return 0, true, Errorf(StatusConfigTypeError, "config: %s is %T, expected signed integer", key, raw)
}

func (c *Config) String(key string) (string, bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	v, isString := raw.(string)
	if !isString {
		return "", true, Errorf(StatusConfigTypeError, "config: %s is %T, expected string", key, raw)
	}
	return v, true, nil
}

func (c *Config) Bool(key string) (bool, bool, error) {
	v, ok, err := c.Uint64(key)
	if err != nil || !ok {
		return false, ok, err
	}
	return v != 0, true, nil
}

// Keys returns the configured keys in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each calls fn for every entry in key order and stops at the first error.
func (c *Config) Each(fn func(key string, value any) error) error {
	for _, k := range c.Keys() {
		if err := fn(k, c.entries[k]); err != nil {
			return err
		}
	}
	return nil
}

// Consume transfers ownership to the caller, normally a Driver. A Config can
// be consumed once.
func (c *Config) Consume() error {
	if err := c.usable(); err != nil {
		return err
	}
	c.state = configConsumed
	return nil
}

// Delete releases a Config that was never consumed. It is a no-op otherwise.
func (c *Config) Delete() {
	if c.state == configOpen {
		c.state = configReleased
		c.entries = nil
	}
}

func (c *Config) usable() error {
	switch c.state {
	case configConsumed:
		return Errorf(StatusInvalidArgument, "config: already consumed by an engine")
	case configReleased:
		return Errorf(StatusInvalidArgument, "config: already released")
	}
	return nil
}

// CreateOptions are the recognized options every driver understands.
type CreateOptions struct {
	Path        string
	Size        uint64
	ForceCreate bool
}

// CreateOptions validates the recognized options. The path is required when
// requirePath is set; size is required whenever force_create is set.
func (c *Config) CreateOptions(requirePath bool) (CreateOptions, error) {
	var (
		opts CreateOptions
		err  error
		ok   bool
	)
	if opts.Path, ok, err = c.String(KeyPath); err != nil {
		return opts, err
	} else if requirePath && (!ok || opts.Path == "") {
		return opts, Errorf(StatusInvalidArgument, "config: missing required parameter %q", KeyPath)
	}
	if opts.ForceCreate, _, err = c.Bool(KeyForceCreate); err != nil {
		return opts, err
	}
	if opts.Size, ok, err = c.Uint64(KeySize); err != nil {
		return opts, err
	} else if opts.ForceCreate && (!ok || opts.Size == 0) {
		return opts, Errorf(StatusInvalidArgument, "config: parameter %q is required when %q is set", KeySize, KeyForceCreate)
	}
	return opts, nil
}
