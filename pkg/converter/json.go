package converter

import "encoding/json"

// JSON encodes values with encoding/json.
type JSON[T any] struct{}

func (JSON[T]) ToBytes(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) FromBytes(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, invalid("%v", err)
	}
	return v, nil
}
