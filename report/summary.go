package report

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
)

// HostInfo identifies the machine a report was taken on.
type HostInfo struct {
	Hostname        string `json:"hostname" yaml:"hostname"`
	OS              string `json:"os" yaml:"os"`
	Platform        string `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty" yaml:"platform_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty" yaml:"kernel_arch,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_seconds" yaml:"uptime_seconds"`
}

// Host reads the local host identity.
func Host(ctx context.Context) (*HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "host info")
	}

	return &HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
		UptimeSeconds:   info.Uptime,
	}, nil
}

// Summary is the combined memory and storage report. A section whose
// queries failed is nil and its error is kept in Errors.
type Summary struct {
	Host    *HostInfo      `json:"host,omitempty" yaml:"host,omitempty"`
	Memory  *MemoryReport  `json:"memory" yaml:"memory"`
	Storage *StorageReport `json:"storage" yaml:"storage"`
	Errors  []string       `json:"errors,omitempty" yaml:"errors,omitempty"`

	memoryErr  error
	storageErr error
}

// NewSummary runs both reports against q. A failing section does not stop
// the other one; the returned error combines the section failures and the
// Summary is always usable.
func NewSummary(q Querier, h *HostInfo) (*Summary, error) {
	s := &Summary{Host: h}
	var result *multierror.Error

	s.Memory, s.memoryErr = Memory(q)
	if s.memoryErr != nil {
		result = multierror.Append(result, s.memoryErr)
		s.Errors = append(s.Errors, "memory: "+s.memoryErr.Error())
	}

	s.Storage, s.storageErr = Storage(q)
	if s.storageErr != nil {
		result = multierror.Append(result, s.storageErr)
		s.Errors = append(s.Errors, "storage: "+s.storageErr.Error())
	}

	return s, result.ErrorOrNil()
}

func (s *Summary) renderText(w io.Writer) error {
	p := &printer{w: w}
	if s.Host != nil {
		p.printf("Host: %s (%s %s)\n\n", s.Host.Hostname, s.Host.Platform, s.Host.PlatformVersion)
	}

	p.printf("Memory Information\n")
	if s.memoryErr != nil {
		p.printf("Memory query error: %s\n", s.memoryErr)
	}
	if p.err != nil {
		return p.err
	}
	if s.Memory != nil {
		if err := s.Memory.renderText(w); err != nil {
			return err
		}
	}

	p.printf("\nStorage Information\n")
	if s.storageErr != nil {
		p.printf("Storage query error: %s\n", s.storageErr)
	}
	if p.err != nil {
		return p.err
	}
	if s.Storage != nil {
		return s.Storage.renderText(w)
	}

	return nil
}

func (s *Summary) renderTable(w io.Writer) error {
	if s.Memory != nil {
		if err := s.Memory.renderTable(w); err != nil {
			return err
		}
	}
	if s.Storage != nil {
		return s.Storage.renderTable(w)
	}

	return nil
}
