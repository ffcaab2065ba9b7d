package queue

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// pickle encodes a small, closed subset of Python pickle protocol 2 well
// enough for a Python Celery worker to unpickle it: None, bool, int,
// string, list, dict and the Tuple wrapper type defined below. No Go
// library in the available ecosystem speaks this wire format (it is a
// CPython-specific serialization, not a general interchange format), so
// this encoder is hand-written; see DESIGN.md for the standard-library
// justification.

// Tuple marks a Go slice as a Python tuple rather than a list when pickled.
// Celery's task envelope is the 3-tuple (args, kwargs, embed).
type Tuple []interface{}

const (
	opProto        = 0x80
	opStop         = '.'
	opNone         = 'N'
	opNewTrue      = 0x88
	opNewFalse     = 0x89
	opBinInt       = 'J'
	opBinUnicode   = 'X'
	opEmptyDict    = '}'
	opEmptyList    = ']'
	opEmptyTuple   = ')'
	opTuple1       = 0x85
	opTuple2       = 0x86
	opTuple3       = 0x87
	opTuple        = 't'
	opMark         = '('
	opSetItem      = 's'
	opSetItems     = 'u'
	opAppend       = 'a'
	opAppends      = 'e'
)

// Dumps serializes v using pickle protocol 2.
func Dumps(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(opProto)
	buf.WriteByte(2)
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	buf.WriteByte(opStop)
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteByte(opNone)
	case bool:
		if t {
			buf.WriteByte(opNewTrue)
		} else {
			buf.WriteByte(opNewFalse)
		}
	case int:
		encodeInt(buf, int64(t))
	case int64:
		encodeInt(buf, t)
	case string:
		encodeUnicode(buf, t)
	case Tuple:
		return encodeTuple(buf, t)
	case []interface{}:
		return encodeList(buf, t)
	case map[string]interface{}:
		return encodeDict(buf, t)
	default:
		return fmt.Errorf("pickle: unsupported type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, n int64) {
	buf.WriteByte(opBinInt)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

func encodeUnicode(buf *bytes.Buffer, s string) {
	buf.WriteByte(opBinUnicode)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
}

func encodeTuple(buf *bytes.Buffer, items Tuple) error {
	switch len(items) {
	case 0:
		buf.WriteByte(opEmptyTuple)
		return nil
	case 1, 2, 3:
		for _, it := range items {
			if err := encode(buf, it); err != nil {
				return err
			}
		}
		switch len(items) {
		case 1:
			buf.WriteByte(opTuple1)
		case 2:
			buf.WriteByte(opTuple2)
		case 3:
			buf.WriteByte(opTuple3)
		}
		return nil
	default:
		buf.WriteByte(opMark)
		for _, it := range items {
			if err := encode(buf, it); err != nil {
				return err
			}
		}
		buf.WriteByte(opTuple)
		return nil
	}
}

func encodeList(buf *bytes.Buffer, items []interface{}) error {
	buf.WriteByte(opEmptyList)
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		if err := encode(buf, items[0]); err != nil {
			return err
		}
		buf.WriteByte(opAppend)
		return nil
	}
	buf.WriteByte(opMark)
	for _, it := range items {
		if err := encode(buf, it); err != nil {
			return err
		}
	}
	buf.WriteByte(opAppends)
	return nil
}

func encodeDict(buf *bytes.Buffer, m map[string]interface{}) error {
	buf.WriteByte(opEmptyDict)
	if len(m) == 0 {
		return nil
	}
	if len(m) == 1 {
		for k, v := range m {
			if err := encode(buf, k); err != nil {
				return err
			}
			if err := encode(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(opSetItem)
		return nil
	}
	buf.WriteByte(opMark)
	for k, v := range m {
		if err := encode(buf, k); err != nil {
			return err
		}
		if err := encode(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(opSetItems)
	return nil
}
