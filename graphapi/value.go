package graphapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ValueKind identifies what an InputValue holds.
type ValueKind int

const (
	NullKind ValueKind = iota
	StringKind
	NumberKind
	BoolKind
	ArrayKind
	LinkKind
	// ObjectKind values are kept as raw JSON and never interpreted.
	ObjectKind
)

func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BoolKind:
		return "bool"
	case ArrayKind:
		return "array"
	case LinkKind:
		return "link"
	case ObjectKind:
		return "object"
	}
	return "unknown"
}

// NodeLink references output slot Slot of the node NodeID.
type NodeLink struct {
	NodeID string
	Slot   int
}

// InputValue is the value of a single node input. Node schemas are owned by
// the server, so the value is carried as-is and never validated here.
//
// On the wire a link is a two element array of [node id string, slot index],
// which is also how ComfyUI itself tells links from literal values.
type InputValue struct {
	kind ValueKind
	str  string
	num  json.Number
	b    bool
	arr  []InputValue
	link NodeLink
	raw  json.RawMessage
}

func StringValue(s string) InputValue { return InputValue{kind: StringKind, str: s} }

func BoolValue(b bool) InputValue { return InputValue{kind: BoolKind, b: b} }

func IntValue(i int64) InputValue {
	return InputValue{kind: NumberKind, num: json.Number(strconv.FormatInt(i, 10))}
}

func FloatValue(f float64) InputValue {
	return InputValue{kind: NumberKind, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

func ArrayValue(values ...InputValue) InputValue {
	return InputValue{kind: ArrayKind, arr: values}
}

func LinkValue(nodeID string, slot int) InputValue {
	return InputValue{kind: LinkKind, link: NodeLink{NodeID: nodeID, Slot: slot}}
}

func (v InputValue) Kind() ValueKind { return v.kind }

func (v InputValue) IsNull() bool { return v.kind == NullKind }

func (v InputValue) AsString() (string, bool) {
	return v.str, v.kind == StringKind
}

func (v InputValue) AsBool() (bool, bool) {
	return v.b, v.kind == BoolKind
}

// AsInt returns the value as an int64. It fails for non numbers and for numbers
// with a fractional part.
func (v InputValue) AsInt() (int64, bool) {
	if v.kind != NumberKind {
		return 0, false
	}
	i, err := v.num.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

func (v InputValue) AsFloat() (float64, bool) {
	if v.kind != NumberKind {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func (v InputValue) AsArray() ([]InputValue, bool) {
	return v.arr, v.kind == ArrayKind
}

func (v InputValue) AsLink() (NodeLink, bool) {
	return v.link, v.kind == LinkKind
}

// AsRaw returns the JSON of an object value.
func (v InputValue) AsRaw() (json.RawMessage, bool) {
	return v.raw, v.kind == ObjectKind
}

func (v InputValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case NullKind:
		return []byte("null"), nil
	case StringKind:
		return json.Marshal(v.str)
	case NumberKind:
		return []byte(v.num.String()), nil
	case BoolKind:
		return json.Marshal(v.b)
	case ArrayKind:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case LinkKind:
		return json.Marshal([]interface{}{v.link.NodeID, v.link.Slot})
	case ObjectKind:
		return v.raw, nil
	}
	return nil, fmt.Errorf("graphapi: cannot marshal input value of kind %d", v.kind)
}

func (v *InputValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("graphapi: empty input value")
	}

	switch b[0] {
	case 'n':
		if string(b) != "null" {
			return fmt.Errorf("graphapi: invalid input value %q", b)
		}
		*v = InputValue{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case 't', 'f':
		var bv bool
		if err := json.Unmarshal(b, &bv); err != nil {
			return err
		}
		*v = BoolValue(bv)
		return nil
	case '{':
		raw := make(json.RawMessage, len(b))
		copy(raw, b)
		*v = InputValue{kind: ObjectKind, raw: raw}
		return nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(b, &elems); err != nil {
			return err
		}
		if link, ok := decodeLink(elems); ok {
			*v = InputValue{kind: LinkKind, link: link}
			return nil
		}
		arr := make([]InputValue, len(elems))
		for i, e := range elems {
			if err := arr[i].UnmarshalJSON(e); err != nil {
				return err
			}
		}
		*v = InputValue{kind: ArrayKind, arr: arr}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("graphapi: invalid input value %q: %w", b, err)
	}
	*v = InputValue{kind: NumberKind, num: n}
	return nil
}

// decodeLink reports whether elems has the [string, integer] shape of a link.
func decodeLink(elems []json.RawMessage) (NodeLink, bool) {
	if len(elems) != 2 {
		return NodeLink{}, false
	}
	idJSON := bytes.TrimSpace(elems[0])
	slotJSON := bytes.TrimSpace(elems[1])
	if len(idJSON) == 0 || idJSON[0] != '"' || len(slotJSON) == 0 || slotJSON[0] == '"' {
		return NodeLink{}, false
	}
	var id string
	if err := json.Unmarshal(idJSON, &id); err != nil {
		return NodeLink{}, false
	}
	var slot json.Number
	dec := json.NewDecoder(bytes.NewReader(slotJSON))
	dec.UseNumber()
	if err := dec.Decode(&slot); err != nil {
		return NodeLink{}, false
	}
	i, err := slot.Int64()
	if err != nil {
		return NodeLink{}, false
	}
	return NodeLink{NodeID: id, Slot: int(i)}, true
}
