package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/smilemakc/chainflow/pkg/bigmath"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

// Tag markers used to round-trip Go types that encoding/json cannot
// represent losslessly when they pass through an interface{} hole, such
// as RuntimeTree leaves or EngineCheckpoint's runtime snapshot.
const (
	tagBigInt  = "$bigint"
	tagDecimal = "$decimal"
	tagBytes   = "$bytes"
	tagError   = "$error"
)

var (
	bigIntPtrType = reflect.TypeOf((*big.Int)(nil))
	decimalType   = reflect.TypeOf(bigmath.Decimal{})
	bytesType     = reflect.TypeOf([]byte(nil))
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
)

// MarshalTagged encodes v as JSON, replacing every *big.Int, bigmath.Decimal,
// []byte, and error value encountered anywhere in v's value tree (including
// inside map[string]interface{} and []interface{} holes) with a small
// tagged object, so UnmarshalTagged can restore the original Go type even
// when the surrounding field is declared as interface{}.
func MarshalTagged(v interface{}) ([]byte, error) {
	tagged, err := tagValue(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged)
}

// UnmarshalTagged decodes tagged JSON produced by MarshalTagged into v.
// Tag markers nested under dynamic (interface{}) fields are restored to
// their original Go type; fields with a concrete static type are decoded
// by encoding/json as usual.
func UnmarshalTagged(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytesReader(data))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("codec: decode tagged json: %w", err)
	}

	untagged := untagValue(generic)
	intermediate, err := json.Marshal(untagged)
	if err != nil {
		return fmt.Errorf("codec: re-marshal untagged value: %w", err)
	}
	if err := json.Unmarshal(intermediate, v); err != nil {
		return fmt.Errorf("codec: unmarshal into destination: %w", err)
	}
	return nil
}

func tagValue(rv reflect.Value) (interface{}, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	switch {
	case rv.Type() == bigIntPtrType:
		if rv.IsNil() {
			return nil, nil
		}
		return map[string]interface{}{tagBigInt: rv.Interface().(*big.Int).String()}, nil
	case rv.Type() == decimalType:
		return map[string]interface{}{tagDecimal: rv.Interface().(bigmath.Decimal).String()}, nil
	case rv.Type() == bytesType:
		if rv.IsNil() {
			return nil, nil
		}
		return map[string]interface{}{tagBytes: base64.StdEncoding.EncodeToString(rv.Bytes())}, nil
	case rv.Type().Implements(errorType) && !rv.IsZero():
		return map[string]interface{}{tagError: rv.Interface().(error).Error()}, nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return tagValue(rv.Elem())
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			val, err := tagValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := tagValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case reflect.Struct:
		// Structs carry their own json tags and no dynamic holes beyond
		// what their declared field types already allow; let
		// encoding/json handle them directly via a marshal round-trip,
		// then recurse into the result so any interface{}-typed fields
		// still get their special values tagged.
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, fmt.Errorf("codec: marshal struct %s: %w", rv.Type(), err)
		}
		// Re-marshal concrete special-typed fields first: walk the
		// struct's fields directly so *big.Int/Decimal/[]byte/error
		// fields get tagged even though the above Marshal already
		// flattened them to plain JSON.
		return tagStructFields(rv, data)
	default:
		return rv.Interface(), nil
	}
}

// tagStructFields re-decodes a struct's plain JSON encoding into a generic
// map and overwrites each field whose static Go type is one of the
// special types with its tagged form, keyed by the field's JSON name.
func tagStructFields(rv reflect.Value, plainJSON []byte) (interface{}, error) {
	dec := json.NewDecoder(bytesReader(plainJSON))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: decode struct json: %w", err)
	}
	obj, ok := generic.(map[string]interface{})
	if !ok {
		// Not a JSON object (e.g. struct marshaled via a custom
		// MarshalJSON into a scalar) — nothing to tag further.
		return generic, nil
	}

	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		jsonName, omit := jsonFieldName(field)
		if jsonName == "-" {
			continue
		}
		fv := rv.Field(i)
		if omit && isEmptyValue(fv) {
			continue
		}
		switch {
		case fv.Type() == bigIntPtrType, fv.Type() == decimalType, fv.Type() == bytesType,
			fv.Type().Implements(errorType):
			tagged, err := tagValue(fv)
			if err != nil {
				return nil, err
			}
			if tagged != nil {
				obj[jsonName] = tagged
			}
		case fv.Kind() == reflect.Map, fv.Kind() == reflect.Slice, fv.Kind() == reflect.Interface:
			tagged, err := tagValue(fv)
			if err != nil {
				return nil, err
			}
			obj[jsonName] = tagged
		}
	}
	return obj, nil
}

func jsonFieldName(f reflect.StructField) (name string, omitempty bool) {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name, false
	}
	name = f.Name
	parts := splitComma(tag)
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// untagValue reverses tagValue: any map carrying exactly one of the tag
// markers is converted back into the corresponding Go type.
func untagValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if raw, ok := val[tagBigInt]; ok && len(val) == 1 {
			n := new(big.Int)
			n.SetString(fmt.Sprintf("%v", raw), 10)
			return n
		}
		if raw, ok := val[tagDecimal]; ok && len(val) == 1 {
			d, err := bigmath.Parse(fmt.Sprintf("%v", raw))
			if err == nil {
				return d
			}
			return raw
		}
		if raw, ok := val[tagBytes]; ok && len(val) == 1 {
			b, err := base64.StdEncoding.DecodeString(fmt.Sprintf("%v", raw))
			if err == nil {
				return b
			}
			return raw
		}
		if raw, ok := val[tagError]; ok && len(val) == 1 {
			return errors.New(fmt.Sprintf("%v", raw))
		}

		out := make(map[string]interface{}, len(val))
		for k, v2 := range val {
			out[k] = untagValue(v2)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = untagValue(item)
		}
		return out
	default:
		return val
	}
}
