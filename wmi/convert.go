package wmi

import (
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// PropertyType is the closed set of Go types a property can be read as.
type PropertyType interface {
	Value | string | []string | bool |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | time.Time
}

var (
	// ErrNull is returned by As for a null property.
	ErrNull = stderrors.New("wmi: property is null")

	// ErrTypeMismatch is returned by As when the VARIANT cannot be
	// represented as the requested type.
	ErrTypeMismatch = stderrors.New("wmi: type mismatch")
)

// Property reads name from r as T. It returns false when the lookup fails,
// the value is null or it does not convert to T; conversion failures are
// logged at warn level on the session logger.
func Property[T PropertyType](r *Record, name string) (T, bool) {
	var zero T

	v, ok := r.Property(name)
	if !ok {
		return zero, false
	}

	out, err := As[T](v)
	if err != nil {
		if stderrors.Is(err, ErrNull) {
			r.logger().Debug("null property", "property", name)
		} else {
			r.logger().Warn("property conversion failed",
				"property", name, "vt", v.VT.String(), "err", err)
		}

		return zero, false
	}

	return out, true
}

// As converts v to T.
//
// string accepts only a non-null VT_BSTR and []string only a BSTR array
// (null elements are dropped). Numbers and bools are coerced from any
// scalar, including numeric strings, and fail when the value does not fit.
// time.Time accepts VT_DATE and CIM_DATETIME strings.
func As[T PropertyType](v Value) (T, error) {
	var out T

	if p, ok := any(&out).(*Value); ok {
		*p = v
		return out, nil
	}

	if v.IsNull() {
		return out, ErrNull
	}

	var err error
	switch p := any(&out).(type) {
	case *string:
		*p, err = asString(v)
	case *[]string:
		*p, err = asStringSlice(v)
	case *bool:
		*p, err = asBool(v)
	case *int:
		*p, err = asSigned[int](v)
	case *int8:
		*p, err = asSigned[int8](v)
	case *int16:
		*p, err = asSigned[int16](v)
	case *int32:
		*p, err = asSigned[int32](v)
	case *int64:
		*p, err = asSigned[int64](v)
	case *uint:
		*p, err = asUnsigned[uint](v)
	case *uint8:
		*p, err = asUnsigned[uint8](v)
	case *uint16:
		*p, err = asUnsigned[uint16](v)
	case *uint32:
		*p, err = asUnsigned[uint32](v)
	case *uint64:
		*p, err = asUnsigned[uint64](v)
	case *float32:
		*p, err = asFloat32(v)
	case *float64:
		*p, err = asFloat64(v)
	case *time.Time:
		*p, err = asTime(v)
	}

	return out, err
}

func mismatch(v Value, target string) error {
	return errors.Wrapf(ErrTypeMismatch, "%s to %s", v.VT.String(), target)
}

func asString(v Value) (string, error) {
	s, ok := v.Val.(string)
	if v.VT != ole.VT_BSTR || !ok {
		return "", mismatch(v, "string")
	}

	return s, nil
}

func asStringSlice(v Value) ([]string, error) {
	elems, ok := v.Val.([]interface{})
	if v.VT != ole.VT_ARRAY|ole.VT_BSTR || !ok {
		return nil, mismatch(v, "[]string")
	}

	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}

	return out, nil
}

// scalar returns the payload if it can take part in numeric coercion.
func scalar(v Value, target string) (interface{}, error) {
	if v.IsArray() {
		return nil, mismatch(v, target)
	}

	switch x := v.Val.(type) {
	case string:
		if x == "" {
			return nil, mismatch(v, target)
		}
	case time.Time, *ole.IUnknown, *ole.IDispatch:
		return nil, mismatch(v, target)
	}

	return v.Val, nil
}

// integral prepares a scalar for integer coercion the way VariantChangeType
// does: strings are parsed as base 10 (leading zeros are not an octal
// prefix) and fractions round half to even.
func integral(v Value, target string) (interface{}, error) {
	val, err := scalar(v, target)
	if err != nil {
		return nil, err
	}

	switch x := val.(type) {
	case float64:
		return math.RoundToEven(x), nil
	case float32:
		return math.RoundToEven(float64(x)), nil
	case string:
		return decimal(v, x, target)
	}

	return val, nil
}

func decimal(v Value, s, target string) (interface{}, error) {
	s = strings.TrimSpace(s)

	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && frac == "" || !digits(whole) || !digits(frac) || hasFrac && frac == "" {
		return nil, mismatch(v, target)
	}

	if hasFrac {
		f, err := strconv.ParseFloat(sign+whole+"."+frac, 64)
		if err != nil {
			return nil, mismatch(v, target)
		}
		return math.RoundToEven(f), nil
	}

	if sign == "-" {
		n, err := strconv.ParseInt(sign+whole, 10, 64)
		if err != nil {
			return nil, overflow(v, target)
		}
		return n, nil
	}

	n, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return nil, overflow(v, target)
	}

	return n, nil
}

func digits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func asBool(v Value) (bool, error) {
	val, err := scalar(v, "bool")
	if err != nil {
		return false, err
	}

	b, err := cast.ToBoolE(val)
	if err != nil {
		return false, errors.Wrap(ErrTypeMismatch, err.Error())
	}

	return b, nil
}

func asSigned[T int | int8 | int16 | int32 | int64](v Value) (T, error) {
	target := fmt.Sprintf("%T", T(0))

	val, err := integral(v, target)
	if err != nil {
		return 0, err
	}

	switch u := val.(type) {
	case uint64:
		if u > math.MaxInt64 {
			return 0, overflow(v, target)
		}
	case uint:
		if uint64(u) > math.MaxInt64 {
			return 0, overflow(v, target)
		}
	case float64:
		if u < math.MinInt64 || u >= math.MaxInt64 || math.IsNaN(u) {
			return 0, overflow(v, target)
		}
	}

	n, err := cast.ToInt64E(val)
	if err != nil {
		return 0, errors.Wrap(ErrTypeMismatch, err.Error())
	}

	if int64(T(n)) != n {
		return 0, overflow(v, target)
	}

	return T(n), nil
}

func asUnsigned[T uint | uint8 | uint16 | uint32 | uint64](v Value) (T, error) {
	target := fmt.Sprintf("%T", T(0))

	val, err := integral(v, target)
	if err != nil {
		return 0, err
	}

	if f, ok := val.(float64); ok && (f >= math.MaxUint64 || math.IsNaN(f)) {
		return 0, overflow(v, target)
	}

	n, err := cast.ToUint64E(val)
	if err != nil {
		return 0, errors.Wrap(ErrTypeMismatch, err.Error())
	}

	if uint64(T(n)) != n {
		return 0, overflow(v, target)
	}

	return T(n), nil
}

func asFloat64(v Value) (float64, error) {
	val, err := scalar(v, "float64")
	if err != nil {
		return 0, err
	}

	f, err := cast.ToFloat64E(val)
	if err != nil {
		return 0, errors.Wrap(ErrTypeMismatch, err.Error())
	}

	return f, nil
}

func asFloat32(v Value) (float32, error) {
	f, err := asFloat64(v)
	if err != nil {
		return 0, err
	}

	if !math.IsInf(f, 0) && math.IsInf(float64(float32(f)), 0) {
		return 0, overflow(v, "float32")
	}

	return float32(f), nil
}

func overflow(v Value, target string) error {
	return errors.Wrapf(ErrTypeMismatch, "%v overflows %s", v.Val, target)
}

func asTime(v Value) (time.Time, error) {
	switch x := v.Val.(type) {
	case time.Time:
		return x, nil
	case string:
		if v.VT != ole.VT_BSTR {
			break
		}

		t, err := ParseDateTime(x)
		if err != nil {
			return time.Time{}, errors.Wrap(ErrTypeMismatch, err.Error())
		}

		return t, nil
	}

	return time.Time{}, mismatch(v, "time.Time")
}

// ParseDateTime parses a CIM_DATETIME string, "yyyymmddHHMMSS.mmmmmmsUUU",
// where sUUU is the UTC offset in minutes.
func ParseDateTime(s string) (time.Time, error) {
	const (
		signPos = 21
		length  = 25
	)

	if len(s) != length {
		return time.Time{}, fmt.Errorf("invalid CIM_DATETIME %q", s)
	}

	if sign := s[signPos]; sign == '+' || sign == '-' {
		minutes, err := strconv.Atoi(s[signPos+1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid CIM_DATETIME offset %q", s)
		}
		s = s[:signPos+1] + fmt.Sprintf("%02d%02d", minutes/60, minutes%60)
	}

	return time.Parse("20060102150405.000000-0700", s)
}
