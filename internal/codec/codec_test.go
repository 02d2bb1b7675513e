package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scribeworks/scribe/internal/objectref"
)

// --- Round Trips ---

func TestDecode_StringStaysString(t *testing.T) {
	// A numeric-looking string must come back as a string, not an int.
	s, err := Encode("123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "123" {
		t.Errorf("expected string %q, got %#v", "123", got)
	}
}

func TestDecode_FalseIsNotFailure(t *testing.T) {
	// Boolean false must survive the trip. A decoder that signals absence
	// with a falsy value would destroy this.
	s, err := Encode(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != false {
		t.Errorf("expected false, got %#v", got)
	}
}

func TestDecode_ExplicitNull(t *testing.T) {
	s, err := Encode(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %#v", got)
	}
}

func TestDecode_IntWidthsNormalize(t *testing.T) {
	// All integer widths store the same way and come back as int64.
	for _, v := range []any{int(7), int8(7), int32(7), uint16(7), int64(7)} {
		s, err := Encode(v)
		if err != nil {
			t.Fatalf("encoding %T: %v", v, err)
		}
		got, err := Decode(s)
		if err != nil {
			t.Fatalf("decoding %T: %v", v, err)
		}
		if got != int64(7) {
			t.Errorf("%T: expected int64(7), got %#v", v, got)
		}
	}
}

func TestDecode_Float(t *testing.T) {
	s, err := Encode(3.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3.25 {
		t.Errorf("expected 3.25, got %#v", got)
	}
}

func TestDecode_TimePreservesInstant(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Copenhagen")
	orig := time.Date(2025, 6, 15, 14, 30, 0, 123456789, loc)

	s, err := Encode(orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, ok := got.(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", got)
	}
	if !ts.Equal(orig) {
		t.Errorf("expected %v, got %v", orig, ts)
	}
}

func TestDecode_NestedList(t *testing.T) {
	s, err := Encode([]any{"a", int64(1), true, []any{nil}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := got.([]any)
	if !ok {
		t.Fatalf("expected []any, got %T", got)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 items, got %d", len(list))
	}
	if list[0] != "a" || list[1] != int64(1) || list[2] != true {
		t.Errorf("unexpected items: %#v", list)
	}
	inner, ok := list[3].([]any)
	if !ok || len(inner) != 1 || inner[0] != nil {
		t.Errorf("expected nested [nil], got %#v", list[3])
	}
}

func TestDecode_DictPreservesOrder(t *testing.T) {
	d := Dict{
		{Key: "zebra", Value: int64(1)},
		{Key: "apple", Value: "x"},
		{Key: "mango", Value: nil},
	}
	s, err := Encode(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := got.(Dict)
	if !ok {
		t.Fatalf("expected Dict, got %T", got)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(out))
	}
	// Insertion order must survive, not alphabetical order.
	if out[0].Key != "zebra" || out[1].Key != "apple" || out[2].Key != "mango" {
		t.Errorf("field order not preserved: %#v", out)
	}
	if out[0].Value != int64(1) {
		t.Errorf("expected zebra=1, got %#v", out[0].Value)
	}
}

func TestEncode_MapSortsKeys(t *testing.T) {
	// Plain maps have no order; encoding sorts keys so identical maps
	// always produce identical stored text.
	s1, err := Encode(map[string]any{"b": int64(2), "a": int64(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := Encode(map[string]any{"a": int64(1), "b": int64(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1 != s2 {
		t.Errorf("map encoding not deterministic:\n%s\n%s", s1, s2)
	}

	got, err := Decode(s1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := got.(Dict)
	if !ok {
		t.Fatalf("expected Dict, got %T", got)
	}
	if d[0].Key != "a" || d[1].Key != "b" {
		t.Errorf("expected sorted keys, got %#v", d)
	}
}

func TestDecode_Ref(t *testing.T) {
	ref := objectref.NewNamed("user", int64(42), "Alice")
	s, err := Encode(ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := got.(*objectref.Ref)
	if !ok {
		t.Fatalf("expected *objectref.Ref, got %T", got)
	}
	if out.Type != "user" || out.Key != int64(42) || out.Name != "Alice" {
		t.Errorf("unexpected ref: %+v", out)
	}
}

func TestEncode_RefKeyMustBeScalar(t *testing.T) {
	ref := objectref.NewNamed("user", []any{1}, "bad")
	if _, err := Encode(ref); err == nil {
		t.Error("expected error for composite reference key")
	}
}

func TestEncode_UnsupportedType(t *testing.T) {
	if _, err := Encode(struct{ X int }{1}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

// --- Failure Classification ---

func TestDecode_PlainStringIsNotEncoded(t *testing.T) {
	_, err := Decode("just a legacy value")
	if !errors.Is(err, ErrNotEncoded) {
		t.Errorf("expected ErrNotEncoded, got %v", err)
	}
}

func TestDecode_MangledPayloadIsCorrupt(t *testing.T) {
	// Passes the prefix check, fails the parse. Must be distinguishable
	// from the legacy-string case above.
	_, err := Decode(Prefix + `{"t":"int","v":`)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
	if errors.Is(err, ErrNotEncoded) {
		t.Error("corrupt data must not be classified as not-encoded")
	}
}

func TestDecode_UnknownTagIsCorrupt(t *testing.T) {
	_, err := Decode(Prefix + `{"t":"wat","v":1}`)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestIsEncoded(t *testing.T) {
	if !IsEncoded(Prefix + "{}") {
		t.Error("prefixed text should pass the pre-check")
	}
	if IsEncoded("plain") {
		t.Error("plain text should fail the pre-check")
	}
	if IsEncoded("") {
		t.Error("empty string should fail the pre-check")
	}
}

// --- Nullable Encoding ---

func TestEncodeNullable(t *testing.T) {
	ns, err := EncodeNullable(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns.Valid {
		t.Error("nil should map to database NULL")
	}

	ns, err = EncodeNullable("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ns.Valid || !strings.HasPrefix(ns.String, Prefix) {
		t.Errorf("expected encoded non-NULL value, got %+v", ns)
	}
}
