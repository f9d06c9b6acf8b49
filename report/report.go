// Package report builds the memory and storage summaries wmix prints from
// Win32 classes in root\cimv2.
package report

import (
	"github.com/42wim/wmix/wmi"
)

// Queries issued by the reports.
const (
	OperatingSystemQuery = "SELECT TotalVisibleMemorySize, FreePhysicalMemory FROM Win32_OperatingSystem"
	PhysicalMemoryQuery  = "SELECT Capacity, Speed, Manufacturer, PartNumber FROM Win32_PhysicalMemory"
	LogicalDiskQuery     = "SELECT DeviceID, Size, FreeSpace, FileSystem, DriveType FROM Win32_LogicalDisk"
	DiskDriveQuery       = "SELECT Model, Size, MediaType, InterfaceType FROM Win32_DiskDrive"
)

// Querier runs WQL queries. *wmi.Session implements it.
type Querier interface {
	ExecuteQuery(query string) (*wmi.ResultSet, error)
}

// each runs query and calls fn for every record.
func each(q Querier, query string, fn func(*wmi.Record)) error {
	rs, err := q.ExecuteQuery(query)
	if err != nil {
		return err
	}
	defer rs.Close()

	return rs.Each(func(r *wmi.Record) error {
		fn(r)
		return nil
	})
}

// optional returns a pointer to the property value, nil when absent.
func optional[T wmi.PropertyType](r *wmi.Record, name string) *T {
	v, ok := wmi.Property[T](r, name)
	if !ok {
		return nil
	}

	return &v
}

// usage returns used = total - free clamped to [0, total] and the used
// share in percent, 0 for an empty total.
func usage(total, free uint64) (uint64, float64) {
	if free > total {
		free = total
	}
	used := total - free

	if total == 0 {
		return used, 0
	}

	return used, float64(used) / float64(total) * 100
}
