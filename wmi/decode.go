package wmi

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrPropertyNotFound is carried by a FieldError for a struct field with no
// matching property.
var ErrPropertyNotFound = stderrors.New("wmi: property not found")

// FieldError describes a struct field DecodeStrict could not fill.
type FieldError struct {
	Field    string
	Property string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("wmi: field %s (property %s): %v", e.Field, e.Property, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

var (
	valueType = reflect.TypeOf(Value{})
	timeType  = reflect.TypeOf(time.Time{})
)

// Decode fills the struct dst points to from the record's properties.
//
// The property name is the field name or the first element of a
// `wmi:"Name"` tag; `wmi:"-"` skips the field. Null values leave the field
// untouched (pointer fields stay nil). Fields whose property is missing or
// does not convert are skipped and logged; use DecodeStrict to have them
// reported.
func (r *Record) Decode(dst interface{}) error {
	return r.decode(dst, false)
}

// DecodeStrict is Decode but returns every field it could not fill, each
// as a *FieldError, combined in a *multierror.Error.
func (r *Record) DecodeStrict(dst interface{}) error {
	return r.decode(dst, true)
}

func (r *Record) decode(dst interface{}, strict bool) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("wmi: decode destination must be a non-nil pointer to a struct, got %T", dst)
	}

	var result *multierror.Error
	r.decodeStruct(dv.Elem(), func(fe *FieldError) {
		if strict {
			result = multierror.Append(result, fe)
			return
		}
		r.logger().Warn("field skipped", "field", fe.Field, "property", fe.Property, "err", fe.Err)
	})

	return result.ErrorOrNil()
}

func (r *Record) decodeStruct(sv reflect.Value, report func(*FieldError)) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		fv := sv.Field(i)

		name := propertyName(f)
		if name == "-" {
			continue
		}

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("wmi") == "" {
			r.decodeStruct(fv, report)
			continue
		}

		if !f.IsExported() {
			continue
		}

		v, ok := r.Property(name)
		if !ok {
			report(&FieldError{Field: f.Name, Property: name, Err: ErrPropertyNotFound})
			continue
		}

		if err := assign(fv, v); err != nil {
			report(&FieldError{Field: f.Name, Property: name, Err: err})
		}
	}
}

func propertyName(f reflect.StructField) string {
	tag := f.Tag.Get("wmi")
	if idx := strings.Index(tag, ","); idx != -1 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name
	}

	return tag
}

// assign stores v into fv, converting it to the field's type.
func assign(fv reflect.Value, v Value) error {
	ft := fv.Type()

	if ft == valueType {
		fv.Set(reflect.ValueOf(v))
		return nil
	}

	if v.IsNull() {
		return nil
	}

	if ft.Kind() == reflect.Ptr {
		nv := reflect.New(ft.Elem())
		if err := assign(nv.Elem(), v); err != nil {
			return err
		}
		fv.Set(nv)

		return nil
	}

	if ft == timeType {
		t, err := As[time.Time](v)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))

		return nil
	}

	switch ft.Kind() {
	case reflect.String:
		s, err := As[string](v)
		if err != nil {
			return err
		}
		fv.SetString(s)
	case reflect.Bool:
		b, err := As[bool](v)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := As[int64](v)
		if err != nil {
			return err
		}
		if fv.OverflowInt(n) {
			return overflow(v, ft.String())
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := As[uint64](v)
		if err != nil {
			return err
		}
		if fv.OverflowUint(n) {
			return overflow(v, ft.String())
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := As[float64](v)
		if err != nil {
			return err
		}
		if fv.OverflowFloat(f) {
			return overflow(v, ft.String())
		}
		fv.SetFloat(f)
	case reflect.Slice:
		elems, ok := v.Val.([]interface{})
		if !v.IsArray() || !ok {
			return mismatch(v, ft.String())
		}

		out := reflect.MakeSlice(ft, 0, len(elems))
		for _, e := range elems {
			if e == nil {
				continue
			}

			ev := reflect.New(ft.Elem()).Elem()
			if err := assign(ev, Value{VT: v.ElemType(), Val: e}); err != nil {
				return err
			}
			out = reflect.Append(out, ev)
		}
		fv.Set(out)
	default:
		return mismatch(v, ft.String())
	}

	return nil
}
