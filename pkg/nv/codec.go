package nv

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformed wraps every decode failure
var ErrMalformed = errors.New("malformed message")

// maxAttrs bounds the number of attributes accepted in one message
const maxAttrs = 16384

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("nv: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: maxAttrs,
		MaxMapPairs:      16,
		MaxNestedLevels:  4,
	}.DecMode()
	if err != nil {
		panic("nv: CBOR decoder initialization failed: " + err.Error())
	}
}

// wireAttr is one [name, type, value] triple. A message travels as a
// CBOR array of triples, which keeps the attribute order and is
// self-delimiting on a stream socket.
type wireAttr struct {
	_     struct{} `cbor:",toarray"`
	Name  string
	Type  Type
	Value any
}

// Encode serializes m. Messages that recorded an add error are refused.
func Encode(m *Message) ([]byte, error) {
	if m.err != nil {
		return nil, fmt.Errorf("encoding message: %w", m.err)
	}
	wire := make([]wireAttr, len(m.attrs))
	for i, a := range m.attrs {
		wire[i] = wireAttr{Name: a.Name, Type: a.Type, Value: a.Value}
	}
	return encMode.Marshal(wire)
}

// Decode parses one encoded message
func Decode(data []byte) (*Message, error) {
	var wire *[]wireAttr
	if err := decMode.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromWire(wire)
}

// fromWire validates decoded triples. A CBOR null leaves wire nil.
func fromWire(wire *[]wireAttr) (*Message, error) {
	if wire == nil {
		return nil, fmt.Errorf("%w: not an attribute list", ErrMalformed)
	}
	m := New()
	for _, w := range *wire {
		value, err := convert(w.Type, w.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %v", ErrMalformed, w.Name, err)
		}
		m.add(w.Name, w.Type, value)
		if m.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, m.err)
		}
	}
	return m, nil
}

// convert narrows a generically decoded CBOR value to the Go type
// named by its tag, rejecting values out of range for the tag.
func convert(t Type, v any) (any, error) {
	if t == TypeString {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	}

	if t == TypeInt16 {
		switch n := v.(type) {
		case uint64:
			if n > math.MaxInt16 {
				return nil, fmt.Errorf("value %d overflows int16", n)
			}
			return int16(n), nil
		case int64:
			if n < math.MinInt16 || n > math.MaxInt16 {
				return nil, fmt.Errorf("value %d overflows int16", n)
			}
			return int16(n), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
	}

	n, ok := v.(uint64)
	if !ok {
		return nil, fmt.Errorf("expected unsigned integer, got %T", v)
	}
	switch t {
	case TypeUint8:
		if n > math.MaxUint8 {
			return nil, fmt.Errorf("value %d overflows uint8", n)
		}
		return uint8(n), nil
	case TypeUint16:
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("value %d overflows uint16", n)
		}
		return uint16(n), nil
	case TypeUint32:
		if n > math.MaxUint32 {
			return nil, fmt.Errorf("value %d overflows uint32", n)
		}
		return uint32(n), nil
	case TypeUint64:
		return n, nil
	}
	return nil, fmt.Errorf("unknown type tag %d", uint8(t))
}

// Write encodes m and writes it to w in a single call
func Write(w io.Writer, m *Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decoder reads consecutive messages from a stream. Keep one Decoder
// per connection: it may buffer bytes past the message it returns.
type Decoder struct {
	dec *cbor.Decoder
}

// NewDecoder returns a Decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: decMode.NewDecoder(r)}
}

// Decode reads the next message. I/O errors are returned unwrapped so
// callers can tell io.EOF and timeouts apart from ErrMalformed.
func (d *Decoder) Decode() (*Message, error) {
	var wire *[]wireAttr
	if err := d.dec.Decode(&wire); err != nil {
		var syntaxErr *cbor.SyntaxError
		var typeErr *cbor.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, err
	}
	return fromWire(wire)
}
