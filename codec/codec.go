package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
// Decode must return a value that shares no memory with b: the store relies on
// every decode producing an independent copy.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names lists the codecs ByName understands.
var Names = []string{"json", "cbor", "msgpack"}

// ByName returns a general-purpose codec for V.
// "" selects JSON.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "cbor":
		cb, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		return cb, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q (want one of %v)", name, Names)
	}
}
