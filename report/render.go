package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format selects how Render prints a report.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}

	return "", errors.Wrapf(ErrUnknownFormat, "%q (want text, table, json or yaml)", s)
}

// textRenderer is implemented by the reports that have a human layout.
type textRenderer interface {
	renderText(w io.Writer) error
	renderTable(w io.Writer) error
}

// Render writes v to w in format f. JSON and YAML accept any value; text and
// table need one of the report types.
func Render(w io.Writer, f Format, v interface{}) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return errors.Wrap(enc.Close(), "encode yaml")
	case FormatText, FormatTable:
		r, ok := v.(textRenderer)
		if !ok {
			return errors.Errorf("%T cannot be rendered as %s", v, f)
		}
		if f == FormatTable {
			return r.renderTable(w)
		}
		return r.renderText(w)
	}

	return errors.Wrapf(ErrUnknownFormat, "%q", f)
}

const (
	kb = 1024
	gb = 1024 * 1024 * 1024
)

func toMB(kilobytes uint64) float64 { return float64(kilobytes) / kb }
func toGB(bytes uint64) float64     { return float64(bytes) / gb }

// printer accumulates the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func newTable(w io.Writer, header ...interface{}) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.Header(header...)

	return t
}

func appendRows(t *tablewriter.Table, rows [][]string) error {
	for _, row := range rows {
		if err := t.Append(row); err != nil {
			return errors.Wrap(err, "table row")
		}
	}

	return errors.Wrap(t.Render(), "render table")
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func gbCell(b *uint64) string {
	if b == nil {
		return ""
	}

	return fmt.Sprintf("%.2f GB", toGB(*b))
}

func (m *MemoryReport) renderText(w io.Writer) error {
	p := &printer{w: w}

	p.printf("Operating system memory:\n")
	for _, s := range m.System {
		p.printf("  Total Physical Memory: %.2f MB\n", toMB(s.TotalKB))
		p.printf("  Free Physical Memory:  %.2f MB\n", toMB(s.FreeKB))
		p.printf("  Used Physical Memory:  %.2f MB\n", toMB(s.UsedKB))
		p.printf("  Memory Usage:          %.2f%%\n", s.UsagePercent)
	}
	p.printf("\n")

	p.printf("Physical memory modules:\n")
	for i, mod := range m.Modules {
		p.printf("  Module %d:\n", i+1)
		if mod.CapacityBytes != nil {
			p.printf("    Capacity: %.1f GB\n", toGB(*mod.CapacityBytes))
		}
		if mod.SpeedMHz != nil {
			p.printf("    Speed: %d MHz\n", *mod.SpeedMHz)
		}
		if mod.Manufacturer != nil {
			p.printf("    Manufacturer: %s\n", *mod.Manufacturer)
		}
		if mod.PartNumber != nil {
			p.printf("    Part Number: %s\n", *mod.PartNumber)
		}
		p.printf("\n")
	}
	if len(m.Modules) == 0 {
		p.printf("  No physical memory modules found.\n")
	}

	return p.err
}

func (m *MemoryReport) renderTable(w io.Writer) error {
	sys := newTable(w, "Total (MB)", "Free (MB)", "Used (MB)", "Usage")
	rows := make([][]string, 0, len(m.System))
	for _, s := range m.System {
		rows = append(rows, []string{
			fmt.Sprintf("%.2f", toMB(s.TotalKB)),
			fmt.Sprintf("%.2f", toMB(s.FreeKB)),
			fmt.Sprintf("%.2f", toMB(s.UsedKB)),
			fmt.Sprintf("%.2f%%", s.UsagePercent),
		})
	}
	if err := appendRows(sys, rows); err != nil {
		return err
	}

	mods := newTable(w, "Module", "Capacity", "Speed", "Manufacturer", "Part Number")
	rows = nil
	for i, mod := range m.Modules {
		capacity, speed := "", ""
		if mod.CapacityBytes != nil {
			capacity = fmt.Sprintf("%.1f GB", toGB(*mod.CapacityBytes))
		}
		if mod.SpeedMHz != nil {
			speed = fmt.Sprintf("%d MHz", *mod.SpeedMHz)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1), capacity, speed, orEmpty(mod.Manufacturer), orEmpty(mod.PartNumber),
		})
	}

	return appendRows(mods, rows)
}

func (s *StorageReport) renderText(w io.Writer) error {
	p := &printer{w: w}

	p.printf("Logical disks:\n")
	for _, d := range s.LogicalDisks {
		p.printf("  Drive %s:\n", d.DeviceID)
		if d.UsedBytes != nil {
			p.printf("    Total Size: %.2f GB\n", toGB(*d.SizeBytes))
			p.printf("    Free Space: %.2f GB\n", toGB(*d.FreeBytes))
			p.printf("    Used Space: %.2f GB\n", toGB(*d.UsedBytes))
			p.printf("    Usage:      %.2f%%\n", *d.UsagePercent)
		}
		if d.FileSystem != nil {
			p.printf("    File System: %s\n", *d.FileSystem)
		}
		if d.DriveType != nil {
			p.printf("    Drive Type: %s\n", d.DriveTypeName)
		}
		p.printf("\n")
	}
	p.printf("\n")

	p.printf("Physical disks:\n")
	for i, d := range s.PhysicalDisks {
		p.printf("  Physical Disk %d:\n", i+1)
		if d.Model != nil {
			p.printf("    Model: %s\n", *d.Model)
		}
		if d.SizeBytes != nil {
			p.printf("    Size: %.2f GB\n", toGB(*d.SizeBytes))
		}
		if d.MediaType != nil {
			p.printf("    Media Type: %s\n", *d.MediaType)
		}
		if d.InterfaceType != nil {
			p.printf("    Interface: %s\n", *d.InterfaceType)
		}
		p.printf("\n")
	}
	if len(s.PhysicalDisks) == 0 {
		p.printf("  No physical disks found.\n")
	}

	return p.err
}

func (s *StorageReport) renderTable(w io.Writer) error {
	logical := newTable(w, "Drive", "Size", "Free", "Used", "Usage", "File System", "Type")
	rows := make([][]string, 0, len(s.LogicalDisks))
	for _, d := range s.LogicalDisks {
		pct := ""
		if d.UsagePercent != nil {
			pct = fmt.Sprintf("%.2f%%", *d.UsagePercent)
		}
		rows = append(rows, []string{
			d.DeviceID, gbCell(d.SizeBytes), gbCell(d.FreeBytes), gbCell(d.UsedBytes),
			pct, orEmpty(d.FileSystem), d.DriveTypeName,
		})
	}
	if err := appendRows(logical, rows); err != nil {
		return err
	}

	physical := newTable(w, "Disk", "Model", "Size", "Media Type", "Interface")
	rows = nil
	for i, d := range s.PhysicalDisks {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), orEmpty(d.Model), gbCell(d.SizeBytes), orEmpty(d.MediaType), orEmpty(d.InterfaceType),
		})
	}

	return appendRows(physical, rows)
}

func (t *Table) renderText(w io.Writer) error {
	p := &printer{w: w}

	for i, row := range t.Rows {
		p.printf("Instance %d:\n", i+1)
		for j, c := range t.Columns {
			p.printf("  %s: %s\n", c, row[j])
		}
		p.printf("\n")
	}
	if len(t.Rows) == 0 {
		p.printf("No instances found.\n")
	}

	return p.err
}

func (t *Table) renderTable(w io.Writer) error {
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}

	return appendRows(newTable(w, header...), t.Rows)
}
