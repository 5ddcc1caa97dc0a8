// Package decode turns raw ledger object responses into typed field values.
//
// Every accessor fails with a *model.Error of kind KindDecode naming the
// object id and the dotted field path. Missing or mistyped fields are never
// replaced by zero values.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
)

// Fields is one level of a Move struct's fields.
type Fields struct {
	objectID string
	prefix   string
	m        map[string]any
}

// Object returns the top-level fields of a Move object response.
//
// Not-found responses yield a KindNotFound error.
func Object(resp ledger.ObjectResponse) (Fields, error) {
	id := resp.ID()
	if resp.NotFound() {
		return Fields{}, model.NotFound(id)
	}
	if resp.Error != nil {
		return Fields{}, model.DecodeError(id, "", "object error "+resp.Error.Code)
	}
	c := resp.Data.Content
	if c == nil {
		return Fields{}, model.DecodeError(id, "content", "missing content")
	}
	if c.DataType != ledger.DataTypeMoveObject {
		return Fields{}, model.DecodeError(id, "content.dataType", fmt.Sprintf("unexpected data type %q", c.DataType))
	}
	if len(c.Fields) == 0 {
		return Fields{}, model.DecodeError(id, "content.fields", "missing fields")
	}
	m, err := parseObject(c.Fields)
	if err != nil {
		return Fields{}, &model.Error{Kind: model.KindDecode, ObjectID: id, Field: "content.fields", Message: "invalid fields", Cause: err}
	}
	return Fields{objectID: id, m: m}, nil
}

// Type returns the Move type of a present object, or "".
func Type(resp ledger.ObjectResponse) string {
	if resp.Data == nil {
		return ""
	}
	if resp.Data.Content != nil && resp.Data.Content.Type != "" {
		return resp.Data.Content.Type
	}
	return resp.Data.Type
}

func parseObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("fields are null")
	}
	return m, nil
}

func (f Fields) ObjectID() string { return f.objectID }

func (f Fields) path(name string) string {
	if f.prefix == "" {
		return name
	}
	return f.prefix + "." + name
}

func (f Fields) fail(name, msg string) error {
	return model.DecodeError(f.objectID, f.path(name), msg)
}

// Has reports whether name is present and not null.
func (f Fields) Has(name string) bool {
	v, ok := f.m[name]
	return ok && v != nil
}

// Raw returns the decoded JSON value of name. Numbers are json.Number.
func (f Fields) Raw(name string) (any, bool) {
	v, ok := f.m[name]
	return v, ok
}

func (f Fields) String(name string) (string, error) {
	v, ok := f.m[name]
	if !ok || v == nil {
		return "", f.fail(name, "missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", f.fail(name, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// OptString returns nil for an absent or null field.
func (f Fields) OptString(name string) (*string, error) {
	if !f.Has(name) {
		return nil, nil
	}
	s, err := f.String(name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Uint64 reads a u64. The ledger encodes u64 as a decimal string; plain JSON
// numbers are accepted too.
func (f Fields) Uint64(name string) (uint64, error) {
	v, ok := f.m[name]
	if !ok || v == nil {
		return 0, f.fail(name, "missing")
	}
	n, err := toUint64(v)
	if err != nil {
		return 0, f.fail(name, err.Error())
	}
	return n, nil
}

// OptUint64 reads Option<u64>; null or absent is nil.
func (f Fields) OptUint64(name string) (*uint64, error) {
	if !f.Has(name) {
		return nil, nil
	}
	n, err := f.Uint64(name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UnixMillis reads a u64 millisecond timestamp.
func (f Fields) UnixMillis(name string) (time.Time, error) {
	ms, err := f.Uint64(name)
	if err != nil {
		return time.Time{}, err
	}
	if ms > uint64(1<<63-1) {
		return time.Time{}, f.fail(name, "timestamp out of range")
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// Address reads an address-typed field.
func (f Fields) Address(name string) (ledger.Address, error) {
	s, err := f.String(name)
	if err != nil {
		return "", err
	}
	a, err := ledger.ParseAddress(s)
	if err != nil {
		return "", f.fail(name, err.Error())
	}
	return a, nil
}

// ID reads an object id stored as a plain ID field.
func (f Fields) ID(name string) (string, error) {
	a, err := f.Address(name)
	return string(a), err
}

// UID reads the object's own id from the "id": {"id": "0x…"} wrapper.
func (f Fields) UID() (string, error) {
	v, ok := f.m["id"]
	if !ok || v == nil {
		return "", f.fail("id", "missing")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return "", f.fail("id", fmt.Sprintf("expected UID object, got %T", v))
	}
	inner := Fields{objectID: f.objectID, prefix: f.path("id"), m: m}
	return inner.ID("id")
}

// Struct unwraps one nested struct value, {"type": …, "fields": {…}}.
func (f Fields) Struct(name string) (Fields, error) {
	v, ok := f.m[name]
	if !ok || v == nil {
		return Fields{}, f.fail(name, "missing")
	}
	m, err := unwrapFields(v)
	if err != nil {
		return Fields{}, f.fail(name, err.Error())
	}
	return Fields{objectID: f.objectID, prefix: f.path(name), m: m}, nil
}

func unwrapFields(v any) (map[string]any, error) {
	outer, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected struct, got %T", v)
	}
	inner, ok := outer["fields"]
	if !ok {
		return nil, fmt.Errorf("struct has no fields")
	}
	m, ok := inner.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected struct fields, got %T", inner)
	}
	return m, nil
}

// VecSet reads a VecSet of strings (ids or addresses) in stored order.
func (f Fields) VecSet(name string) ([]string, error) {
	s, err := f.Struct(name)
	if err != nil {
		return nil, err
	}
	items, err := s.array("contents")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		str, ok := it.(string)
		if !ok {
			return nil, s.fail("contents["+strconv.Itoa(i)+"]", fmt.Sprintf("expected string, got %T", it))
		}
		out = append(out, str)
	}
	return out, nil
}

func (f Fields) array(name string) ([]any, error) {
	v, ok := f.m[name]
	if !ok || v == nil {
		return nil, f.fail(name, "missing")
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, f.fail(name, fmt.Sprintf("expected array, got %T", v))
	}
	return arr, nil
}

// Entry is one VecMap entry. Key and Value are raw JSON values.
type Entry struct {
	Key   any
	Value any
	// Path locates the entry for error reporting.
	Path string
}

// VecMap reads a VecMap's entries in stored order.
func (f Fields) VecMap(name string) ([]Entry, error) {
	s, err := f.Struct(name)
	if err != nil {
		return nil, err
	}
	items, err := s.array("contents")
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for i, it := range items {
		p := s.path("contents[" + strconv.Itoa(i) + "]")
		m, err := unwrapFields(it)
		if err != nil {
			return nil, model.DecodeError(f.objectID, p, err.Error())
		}
		k, kok := m["key"]
		v, vok := m["value"]
		if !kok || !vok {
			return nil, model.DecodeError(f.objectID, p, "entry missing key or value")
		}
		out = append(out, Entry{Key: k, Value: v, Path: p})
	}
	return out, nil
}

// Uint64Value reads v as a u64 the way Fields.Uint64 does.
func Uint64Value(v any) (uint64, error) {
	return toUint64(v)
}

func toUint64(v any) (uint64, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return 0, fmt.Errorf("expected u64, got %T", v)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid u64 %q", s)
	}
	return n, nil
}

// Variant reads a Move enum value, {"variant": "Helpful", "fields": {}}, or a
// bare string tag.
func Variant(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case map[string]any:
		s, ok := t["variant"].(string)
		return s, ok && s != ""
	default:
		return "", false
	}
}
