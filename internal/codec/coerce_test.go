package codec

import (
	"errors"
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("loading location %s: %v", name, err)
	}
	return loc
}

func TestCoerce_EncodedValueWins(t *testing.T) {
	// An encoded string "123" must stay a string even though the raw text
	// inside the envelope would sniff as an integer.
	s, err := Encode("123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Coerce("some_key", s, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "123" {
		t.Errorf("expected string, got %#v", got)
	}
}

func TestCoerce_LegacyNullTokens(t *testing.T) {
	for _, raw := range []string{"", "null", "NULL", "nil", "  null  "} {
		got, err := Coerce("k", raw, time.UTC)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", raw, err)
		}
		if got != nil {
			t.Errorf("%q: expected nil, got %#v", raw, got)
		}
	}
}

func TestCoerce_LegacyBooleans(t *testing.T) {
	got, err := Coerce("k", "true", time.UTC)
	if err != nil || got != true {
		t.Errorf("expected true, got %#v (err %v)", got, err)
	}
	got, err = Coerce("k", "FALSE", time.UTC)
	if err != nil || got != false {
		t.Errorf("expected false, got %#v (err %v)", got, err)
	}
}

func TestCoerce_LegacyNumbers(t *testing.T) {
	got, err := Coerce("k", "-42", time.UTC)
	if err != nil || got != int64(-42) {
		t.Errorf("expected int64(-42), got %#v (err %v)", got, err)
	}
	got, err = Coerce("k", "3.5", time.UTC)
	if err != nil || got != 3.5 {
		t.Errorf("expected 3.5, got %#v (err %v)", got, err)
	}
	// Overflowing int64 stays a string rather than losing digits.
	huge := "99999999999999999999999999"
	got, err = Coerce("k", huge, time.UTC)
	if err != nil || got != huge {
		t.Errorf("expected untouched string, got %#v (err %v)", got, err)
	}
}

func TestCoerce_LegacyTimestampUsesLocalZone(t *testing.T) {
	cph := mustLocation(t, "Europe/Copenhagen")

	got, err := Coerce("post_date", "2025-06-15 14:30:00", cph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, ok := got.(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", got)
	}
	want := time.Date(2025, 6, 15, 14, 30, 0, 0, cph)
	if !ts.Equal(want) {
		t.Errorf("expected %v, got %v", want, ts)
	}
}

func TestCoerce_GMTKeyUsesUTC(t *testing.T) {
	cph := mustLocation(t, "Europe/Copenhagen")

	got, err := Coerce("post_date_gmt", "2025-06-15 12:30:00", cph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := got.(time.Time)
	want := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("expected UTC reading %v, got %v", want, ts)
	}
}

func TestCoerce_PlainTextStaysString(t *testing.T) {
	got, err := Coerce("k", "hello world", time.UTC)
	if err != nil || got != "hello world" {
		t.Errorf("expected passthrough, got %#v (err %v)", got, err)
	}
	// Version-like strings are neither ints nor floats.
	got, err = Coerce("k", "1.2.3", time.UTC)
	if err != nil || got != "1.2.3" {
		t.Errorf("expected passthrough, got %#v (err %v)", got, err)
	}
}

func TestCoerce_CorruptKeepsRawValue(t *testing.T) {
	raw := Prefix + `{"t":"int","v":`
	got, err := Coerce("k", raw, time.UTC)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	// The display value survives so callers can log and still render.
	if got != raw {
		t.Errorf("expected raw value back, got %#v", got)
	}
}

// --- Equal ---

func TestEqual_IntWidths(t *testing.T) {
	if !Equal(int(5), int64(5)) {
		t.Error("int and int64 of same value should be equal")
	}
	if Equal(int64(5), float64(5)) {
		t.Error("int64 and float64 are different types, never equal")
	}
	if Equal(int64(5), "5") {
		t.Error("number and numeric string are never equal")
	}
}

func TestEqual_TimesCompareAsInstants(t *testing.T) {
	cph := mustLocation(t, "Europe/Copenhagen")
	a := time.Date(2025, 6, 15, 14, 30, 0, 0, cph)
	b := a.UTC()
	if !Equal(a, b) {
		t.Error("same instant in different zones should be equal")
	}
	if Equal(a, a.Add(time.Second)) {
		t.Error("different instants should not be equal")
	}
}

func TestEqual_Composites(t *testing.T) {
	a := Dict{{Key: "x", Value: int64(1)}}
	b := Dict{{Key: "x", Value: int64(1)}}
	if !Equal(a, b) {
		t.Error("structurally identical dicts should be equal")
	}
	c := Dict{{Key: "x", Value: int64(2)}}
	if Equal(a, c) {
		t.Error("dicts with different values should not be equal")
	}
	if !Equal([]any{int64(1), "a"}, []any{int64(1), "a"}) {
		t.Error("identical lists should be equal")
	}
}

func TestEqual_Nils(t *testing.T) {
	if !Equal(nil, nil) {
		t.Error("nil equals nil")
	}
	if Equal(nil, "") {
		t.Error("nil does not equal empty string")
	}
	if Equal(nil, false) {
		t.Error("nil does not equal false")
	}
}
