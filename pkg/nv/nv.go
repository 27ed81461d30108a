package nv

import (
	"errors"
	"fmt"
	"strconv"
)

// Type is the type tag carried with every attribute value
type Type uint8

const (
	TypeUint8 Type = iota + 1
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt16
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeInt16:
		return "int16"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

var (
	// ErrDuplicateKey is recorded when a key is added twice
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidKey is recorded when an empty key is added
	ErrInvalidKey = errors.New("invalid key")
)

// Attr is one key/value pair. Value always holds the Go type matching
// Type: uint8, uint16, uint32, uint64, int16 or string.
type Attr struct {
	Name  string
	Type  Type
	Value any
}

// Message is an ordered set of typed attributes with unique keys.
//
// Add methods never fail individually. The first error is remembered
// and returned by Err, and every later add is ignored, so a response
// can be built in one pass and checked once at the end.
type Message struct {
	attrs []Attr
	index map[string]int
	err   error
}

// New returns an empty message
func New() *Message {
	return &Message{index: make(map[string]int)}
}

// Key returns the name of element index of a repeated field, e.g.
// Key("resource", 1) is "resource1".
func Key(base string, index int) string {
	return base + strconv.Itoa(index)
}

// Err returns the first error hit while adding attributes
func (m *Message) Err() error {
	return m.err
}

// Len returns the number of attributes
func (m *Message) Len() int {
	return len(m.attrs)
}

// Attrs returns a copy of the attributes in insertion order
func (m *Message) Attrs() []Attr {
	out := make([]Attr, len(m.attrs))
	copy(out, m.attrs)
	return out
}

// Has reports whether name is present with any type
func (m *Message) Has(name string) bool {
	_, ok := m.index[name]
	return ok
}

func (m *Message) add(name string, t Type, value any) {
	if m.err != nil {
		return
	}
	if name == "" {
		m.err = ErrInvalidKey
		return
	}
	if _, exists := m.index[name]; exists {
		m.err = fmt.Errorf("%w: %q", ErrDuplicateKey, name)
		return
	}
	m.index[name] = len(m.attrs)
	m.attrs = append(m.attrs, Attr{Name: name, Type: t, Value: value})
}

func (m *Message) AddUint8(name string, v uint8)   { m.add(name, TypeUint8, v) }
func (m *Message) AddUint16(name string, v uint16) { m.add(name, TypeUint16, v) }
func (m *Message) AddUint32(name string, v uint32) { m.add(name, TypeUint32, v) }
func (m *Message) AddUint64(name string, v uint64) { m.add(name, TypeUint64, v) }
func (m *Message) AddInt16(name string, v int16)   { m.add(name, TypeInt16, v) }
func (m *Message) AddString(name string, v string) { m.add(name, TypeString, v) }

// lookup returns the value of name only if it was stored with type t
func (m *Message) lookup(name string, t Type) (any, bool) {
	i, ok := m.index[name]
	if !ok || m.attrs[i].Type != t {
		return nil, false
	}
	return m.attrs[i].Value, true
}

// GetUint8 returns the uint8 stored under name. A missing key or a key
// of another type reports false.
func (m *Message) GetUint8(name string) (uint8, bool) {
	v, ok := m.lookup(name, TypeUint8)
	if !ok {
		return 0, false
	}
	return v.(uint8), true
}

func (m *Message) GetUint16(name string) (uint16, bool) {
	v, ok := m.lookup(name, TypeUint16)
	if !ok {
		return 0, false
	}
	return v.(uint16), true
}

func (m *Message) GetUint32(name string) (uint32, bool) {
	v, ok := m.lookup(name, TypeUint32)
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

func (m *Message) GetUint64(name string) (uint64, bool) {
	v, ok := m.lookup(name, TypeUint64)
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}

func (m *Message) GetInt16(name string) (int16, bool) {
	v, ok := m.lookup(name, TypeInt16)
	if !ok {
		return 0, false
	}
	return v.(int16), true
}

func (m *Message) GetString(name string) (string, bool) {
	v, ok := m.lookup(name, TypeString)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// GetStringAt is GetString(Key(base, index))
func (m *Message) GetStringAt(base string, index int) (string, bool) {
	return m.GetString(Key(base, index))
}

func (m *Message) GetUint32At(base string, index int) (uint32, bool) {
	return m.GetUint32(Key(base, index))
}

func (m *Message) GetUint64At(base string, index int) (uint64, bool) {
	return m.GetUint64(Key(base, index))
}

func (m *Message) GetInt16At(base string, index int) (int16, bool) {
	return m.GetInt16(Key(base, index))
}

// Strings collects base0, base1, ... up to the first missing index
func (m *Message) Strings(base string) []string {
	var out []string
	for i := 0; ; i++ {
		s, ok := m.GetStringAt(base, i)
		if !ok {
			return out
		}
		out = append(out, s)
	}
}
