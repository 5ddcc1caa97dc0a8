package memledger

import (
	"fmt"
	"strconv"

	"onigiri.dev/shake/ledger"
)

// UID renders an object's id field.
func UID(id string) map[string]any {
	return map[string]any{"id": id}
}

// U64 renders a u64 the way the read service does: as a decimal string.
func U64(n uint64) string { return strconv.FormatUint(n, 10) }

// OptionU64 renders Option<u64>.
func OptionU64(n *uint64) any {
	if n == nil {
		return nil
	}
	return U64(*n)
}

// Struct renders a nested struct value.
func Struct(typ string, fields map[string]any) map[string]any {
	return map[string]any{"type": typ, "fields": fields}
}

// Variant renders a field-less enum value.
func Variant(tag string) map[string]any {
	return map[string]any{"variant": tag, "fields": map[string]any{}}
}

// VecSet renders a VecSet<elemType> holding items in order.
func VecSet(elemType string, items []string) map[string]any {
	contents := make([]any, len(items))
	for i, it := range items {
		contents[i] = it
	}
	return Struct("0x2::vec_set::VecSet<"+elemType+">", map[string]any{"contents": contents})
}

// MapEntry is one VecMap entry in rendered form.
type MapEntry struct {
	Key   any
	Value any
}

// VecMap renders a VecMap<keyType, valueType> holding entries in order.
func VecMap(keyType, valueType string, entries []MapEntry) map[string]any {
	entryType := "0x2::vec_map::Entry<" + keyType + ", " + valueType + ">"
	contents := make([]any, len(entries))
	for i, e := range entries {
		contents[i] = Struct(entryType, map[string]any{"key": e.Key, "value": e.Value})
	}
	return Struct("0x2::vec_map::VecMap<"+keyType+", "+valueType+">", map[string]any{"contents": contents})
}

// Args checks a call's arity and returns its arguments.
func Args(call ledger.MoveCall, n int) ([]ledger.Argument, error) {
	if len(call.Arguments) != n {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", call.Target(), n, len(call.Arguments))
	}
	return call.Arguments, nil
}

// Abort is a Move abort raised by a Handler.
type Abort struct {
	Function string
	Code     uint64
	Message  string
}

func (a *Abort) Error() string {
	return fmt.Sprintf("MoveAbort(%s, %d): %s", a.Function, a.Code, a.Message)
}
