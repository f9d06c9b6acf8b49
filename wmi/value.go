package wmi

import (
	"fmt"
	"strings"

	"github.com/go-ole/go-ole"
)

// Value is a property value as returned by WMI: the VARIANT type tag and
// its payload converted to Go.
//
// Scalars carry the Go type go-ole produces for the tag (int32 for VT_I4,
// string for VT_BSTR and so on). Arrays (VT_ARRAY|elem) carry
// []interface{}, with nil for null elements. A null BSTR and VT_NULL carry
// a nil payload.
type Value struct {
	VT  ole.VT
	Val interface{}
}

// IsNull reports whether the value has no payload.
func (v Value) IsNull() bool {
	return v.VT == ole.VT_NULL || v.VT == ole.VT_EMPTY || v.Val == nil
}

// IsArray reports whether the value is a SAFEARRAY.
func (v Value) IsArray() bool {
	return v.VT&ole.VT_ARRAY != 0
}

// ElemType returns the element tag of an array value, or the tag itself.
func (v Value) ElemType() ole.VT {
	return v.VT &^ ole.VT_ARRAY
}

// String formats the payload for display; nulls render empty.
func (v Value) String() string {
	if v.IsNull() {
		return ""
	}

	if elems, ok := v.Val.([]interface{}); ok {
		parts := make([]string, 0, len(elems))
		for _, e := range elems {
			if e == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(e))
		}

		return "{" + strings.Join(parts, ", ") + "}"
	}

	return fmt.Sprint(v.Val)
}
