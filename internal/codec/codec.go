// Package codec serializes arbitrary property and eventmeta values into a
// single text column and back, preserving type information. A plain string
// "123" decodes back to the string "123", never the integer.
//
// Encoded values carry a short prefix so stored text can be cheaply
// classified before a full parse: legacy plain strings that predate the
// codec fail the prefix check and are reported as ErrNotEncoded, while text
// that passes the check but cannot be parsed is ErrCorrupt. Callers must be
// able to tell the two apart -- the first is routine, the second should be
// surfaced.
package codec

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scribeworks/scribe/internal/objectref"
)

// Prefix marks a value as codec-encoded. Anything in the value columns that
// does not start with it is legacy plain text.
const Prefix = "!s1:"

var (
	// ErrNotEncoded means the input failed the syntactic pre-check: it is
	// not codec output, just a plain stored string.
	ErrNotEncoded = errors.New("codec: not encoded data")

	// ErrCorrupt means the input looked like codec output but could not be
	// decoded. Unlike ErrNotEncoded this is unexpected and worth logging.
	ErrCorrupt = errors.New("codec: corrupt data")
)

// Field is one entry of a Dict.
type Field struct {
	Key   string
	Value any
}

// Dict is a keyed collection that preserves insertion order, standing in for
// the host platform's ordered associative arrays. Plain map[string]any is
// also accepted by Encode (keys are sorted for determinism) but decodes back
// to a Dict.
type Dict []Field

// Get returns the value for a key, with a presence flag.
func (d Dict) Get(key string) (any, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON renders the dict as a JSON object in insertion order. Used for
// API responses and canonical-form comparison, not for storage encoding.
func (d Dict) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// envelope is the persisted form: a type tag plus a tag-specific payload.
type envelope struct {
	Tag string          `json:"t"`
	Val json.RawMessage `json:"v,omitempty"`
}

// pair is the persisted form of one Dict field.
type pair struct {
	K string   `json:"k"`
	V envelope `json:"v"`
}

// refPayload is the persisted form of an object reference.
type refPayload struct {
	Type string          `json:"type"`
	Key  json.RawMessage `json:"key"`
	Name string          `json:"name"`
}

// IsEncoded reports whether s passes the cheap syntactic pre-check for
// codec output. It does not guarantee a successful decode.
func IsEncoded(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Encode serializes a value into the text form stored in the old/new value
// columns. nil encodes to an explicit null envelope; use EncodeNullable when
// nil should become a database NULL instead.
func Encode(v any) (string, error) {
	env, err := encodeValue(v)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("codec: marshaling envelope: %w", err)
	}
	return Prefix + string(b), nil
}

// EncodeNullable encodes like Encode but maps a nil value to a database
// NULL, which is how ordinary "no value" is persisted.
func EncodeNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := Encode(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// Decode reverses Encode. It returns ErrNotEncoded when s fails the prefix
// pre-check and ErrCorrupt (wrapped with detail) when the payload cannot be
// parsed. A decoded boolean false is a perfectly valid result and is not a
// failure.
func Decode(s string) (any, error) {
	if !IsEncoded(s) {
		return nil, ErrNotEncoded
	}
	var env envelope
	if err := json.Unmarshal([]byte(s[len(Prefix):]), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decodeValue(env)
}

func encodeValue(v any) (envelope, error) {
	switch val := v.(type) {
	case nil:
		return envelope{Tag: "null"}, nil
	case bool:
		return rawEnvelope("bool", val)
	case int:
		return rawEnvelope("int", int64(val))
	case int8:
		return rawEnvelope("int", int64(val))
	case int16:
		return rawEnvelope("int", int64(val))
	case int32:
		return rawEnvelope("int", int64(val))
	case int64:
		return rawEnvelope("int", val)
	case uint:
		return rawEnvelope("int", int64(val))
	case uint8:
		return rawEnvelope("int", int64(val))
	case uint16:
		return rawEnvelope("int", int64(val))
	case uint32:
		return rawEnvelope("int", int64(val))
	case float32:
		return rawEnvelope("float", float64(val))
	case float64:
		return rawEnvelope("float", val)
	case string:
		return rawEnvelope("str", val)
	case time.Time:
		return rawEnvelope("time", val.Format(time.RFC3339Nano))
	case *objectref.Ref:
		return encodeRef(val)
	case objectref.Ref:
		return encodeRef(&val)
	case []any:
		items := make([]envelope, 0, len(val))
		for _, item := range val {
			env, err := encodeValue(item)
			if err != nil {
				return envelope{}, err
			}
			items = append(items, env)
		}
		return rawEnvelope("list", items)
	case Dict:
		return encodeDict(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(Dict, 0, len(val))
		for _, k := range keys {
			d = append(d, Field{Key: k, Value: val[k]})
		}
		return encodeDict(d)
	default:
		return envelope{}, fmt.Errorf("codec: unsupported value type %T", v)
	}
}

func encodeDict(d Dict) (envelope, error) {
	pairs := make([]pair, 0, len(d))
	for _, f := range d {
		env, err := encodeValue(f.Value)
		if err != nil {
			return envelope{}, err
		}
		pairs = append(pairs, pair{K: f.Key, V: env})
	}
	return rawEnvelope("dict", pairs)
}

func encodeRef(r *objectref.Ref) (envelope, error) {
	key, err := encodeRefKey(r.Key)
	if err != nil {
		return envelope{}, err
	}
	return rawEnvelope("ref", refPayload{Type: r.Type, Key: key, Name: r.Name})
}

// encodeRefKey validates and marshals a reference key, which may only be an
// integer, a string, or nil.
func encodeRefKey(key any) (json.RawMessage, error) {
	switch k := key.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case int:
		return json.RawMessage(strconv.FormatInt(int64(k), 10)), nil
	case int64:
		return json.RawMessage(strconv.FormatInt(k, 10)), nil
	case string:
		b, err := json.Marshal(k)
		return b, err
	default:
		return nil, fmt.Errorf("codec: unsupported reference key type %T", key)
	}
}

func rawEnvelope(tag string, payload any) (envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("codec: marshaling %s payload: %w", tag, err)
	}
	return envelope{Tag: tag, Val: b}, nil
}

func decodeValue(env envelope) (any, error) {
	switch env.Tag {
	case "null":
		return nil, nil
	case "bool":
		var v bool
		return decodeInto(env, &v)
	case "int":
		var n json.Number
		if _, err := decodeInto(env, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: int payload %q", ErrCorrupt, n)
		}
		return i, nil
	case "float":
		var v float64
		return decodeInto(env, &v)
	case "str":
		var v string
		return decodeInto(env, &v)
	case "time":
		var s string
		if _, err := decodeInto(env, &s); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: time payload %q", ErrCorrupt, s)
		}
		return t, nil
	case "ref":
		var p refPayload
		if _, err := decodeInto(env, &p); err != nil {
			return nil, err
		}
		key, err := decodeRefKey(p.Key)
		if err != nil {
			return nil, err
		}
		return objectref.NewNamed(p.Type, key, p.Name), nil
	case "list":
		var items []envelope
		if _, err := decodeInto(env, &items); err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "dict":
		var pairs []pair
		if _, err := decodeInto(env, &pairs); err != nil {
			return nil, err
		}
		d := make(Dict, 0, len(pairs))
		for _, p := range pairs {
			v, err := decodeValue(p.V)
			if err != nil {
				return nil, err
			}
			d = append(d, Field{Key: p.K, Value: v})
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %q", ErrCorrupt, env.Tag)
	}
}

// decodeInto unmarshals an envelope payload into target, converting parse
// failures into ErrCorrupt. Returns target's pointee for convenience.
func decodeInto[T any](env envelope, target *T) (T, error) {
	if err := json.Unmarshal(env.Val, target); err != nil {
		return *target, fmt.Errorf("%w: %s payload: %v", ErrCorrupt, env.Tag, err)
	}
	return *target, nil
}

func decodeRefKey(raw json.RawMessage) (any, error) {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		return nil, nil
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: ref key: %v", ErrCorrupt, err)
		}
		return v, nil
	default:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ref key %q", ErrCorrupt, s)
		}
		return i, nil
	}
}
