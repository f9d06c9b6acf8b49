package report

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/42wim/wmix/wmi"
)

// Table is the generic result of an ad-hoc query: one row per WMI object,
// one cell per property, in column order.
type Table struct {
	Query   string
	Columns []string
	Rows    [][]string
}

// Collect reads every record of rs into a Table. Without explicit columns
// the SELECT list of the query is used; for SELECT * the non-system
// properties of the first record are used.
func Collect(rs *wmi.ResultSet, columns []string) (*Table, error) {
	t := &Table{Query: rs.Query(), Columns: columns, Rows: [][]string{}}

	if len(t.Columns) == 0 {
		if names, all, ok := wmi.SelectedProperties(rs.Query()); ok && !all {
			t.Columns = names
		}
	}

	err := rs.Each(func(r *wmi.Record) error {
		if len(t.Columns) == 0 {
			names, err := r.Names()
			if err != nil {
				return err
			}
			t.Columns = userProperties(names)
		}

		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if v, ok := r.Property(c); ok {
				row[i] = v.String()
			}
		}
		t.Rows = append(t.Rows, row)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// userProperties drops system properties such as __CLASS.
func userProperties(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !strings.HasPrefix(n, "__") {
			out = append(out, n)
		}
	}
	sort.Strings(out)

	return out
}

// MarshalJSON encodes the rows as an array of objects, keeping the column
// order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(row[j])
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	return buf.Bytes(), nil
}

// MarshalYAML encodes the rows as a sequence of mappings, keeping the
// column order.
func (t *Table) MarshalYAML() (interface{}, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, row := range t.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for i, c := range t.Columns {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: row[i]},
			)
		}
		seq.Content = append(seq.Content, m)
	}

	return seq, nil
}
