package wmi

import (
	"reflect"
	"strings"
)

// CreateQuery returns a WQL query selecting the properties of the struct
// src (or the element type of a slice src) from class. An empty class uses
// the struct type name. where is appended verbatim when not empty.
func CreateQuery(src interface{}, class, where string) string {
	t := reflect.TypeOf(src)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return ""
	}

	if class == "" {
		class = t.Name()
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(fieldNames(t), ", "))
	b.WriteString(" FROM ")
	b.WriteString(class)
	if where != "" {
		b.WriteString(" ")
		b.WriteString(where)
	}

	return b.String()
}

func fieldNames(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		name := propertyName(f)
		if name == "-" {
			continue
		}

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("wmi") == "" {
			names = append(names, fieldNames(f.Type)...)
			continue
		}

		if f.IsExported() {
			names = append(names, name)
		}
	}

	return names
}

// SelectedProperties returns the property list of a SELECT query. all is
// true for SELECT *, in which case names is nil. ok is false when query is
// not a SELECT ... FROM statement.
func SelectedProperties(query string) (names []string, all bool, ok bool) {
	fields := strings.Fields(query)
	if len(fields) < 4 || !strings.EqualFold(fields[0], "SELECT") {
		return nil, false, false
	}

	from := -1
	for i := 1; i < len(fields); i++ {
		if strings.EqualFold(fields[i], "FROM") {
			from = i
			break
		}
	}
	if from < 2 {
		return nil, false, false
	}

	list := strings.Join(fields[1:from], " ")
	if strings.TrimSpace(list) == "*" {
		return nil, true, true
	}

	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}

	return names, false, len(names) > 0
}
