// Package exporter publishes the memory and storage reports as Prometheus
// metrics.
package exporter

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/42wim/wmix/report"
)

const namespace = "wmix"

// Collector queries WMI on every scrape. Scrapes are serialized.
type Collector struct {
	q   report.Querier
	log *slog.Logger
	mu  sync.Mutex

	memTotal       *prometheus.Desc
	memFree        *prometheus.Desc
	memUsed        *prometheus.Desc
	moduleCapacity *prometheus.Desc
	moduleSpeed    *prometheus.Desc
	diskSize       *prometheus.Desc
	diskFree       *prometheus.Desc
	physicalSize   *prometheus.Desc
	scrapeSuccess  *prometheus.Desc
	scrapeDuration *prometheus.Desc
}

func NewCollector(q report.Querier, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	diskLabels := []string{"volume", "filesystem", "type"}

	return &Collector{
		q:   q,
		log: logger,

		memTotal: prometheus.NewDesc(prometheus.BuildFQName(namespace, "memory", "total_bytes"),
			"Total visible physical memory.", nil, nil),
		memFree: prometheus.NewDesc(prometheus.BuildFQName(namespace, "memory", "free_bytes"),
			"Free physical memory.", nil, nil),
		memUsed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "memory", "used_bytes"),
			"Used physical memory.", nil, nil),
		moduleCapacity: prometheus.NewDesc(prometheus.BuildFQName(namespace, "memory_module", "capacity_bytes"),
			"Capacity of an installed memory module.", []string{"module", "manufacturer", "part_number"}, nil),
		moduleSpeed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "memory_module", "speed_mhz"),
			"Speed of an installed memory module.", []string{"module", "manufacturer", "part_number"}, nil),
		diskSize: prometheus.NewDesc(prometheus.BuildFQName(namespace, "logical_disk", "size_bytes"),
			"Size of a logical disk.", diskLabels, nil),
		diskFree: prometheus.NewDesc(prometheus.BuildFQName(namespace, "logical_disk", "free_bytes"),
			"Free space on a logical disk.", diskLabels, nil),
		physicalSize: prometheus.NewDesc(prometheus.BuildFQName(namespace, "physical_disk", "size_bytes"),
			"Size of a physical disk.", []string{"disk", "model", "interface"}, nil),
		scrapeSuccess: prometheus.NewDesc(prometheus.BuildFQName(namespace, "scrape", "success"),
			"Whether every WMI query of the last scrape succeeded.", nil, nil),
		scrapeDuration: prometheus.NewDesc(prometheus.BuildFQName(namespace, "scrape", "duration_seconds"),
			"Time spent querying WMI.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memTotal
	ch <- c.memFree
	ch <- c.memUsed
	ch <- c.moduleCapacity
	ch <- c.moduleSpeed
	ch <- c.diskSize
	ch <- c.diskFree
	ch <- c.physicalSize
	ch <- c.scrapeSuccess
	ch <- c.scrapeDuration
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	var result *multierror.Error

	if mem, err := report.Memory(c.q); err != nil {
		result = multierror.Append(result, err)
	} else {
		c.collectMemory(ch, mem)
	}

	if disks, err := report.LogicalDisks(c.q); err != nil {
		result = multierror.Append(result, err)
	} else {
		c.collectLogicalDisks(ch, disks)
	}

	if disks, err := report.PhysicalDisks(c.q); err != nil {
		result = multierror.Append(result, err)
	} else {
		c.collectPhysicalDisks(ch, disks)
	}

	success := 1.0
	if err := result.ErrorOrNil(); err != nil {
		success = 0
		c.log.Error("scrape failed", "err", err)
	}

	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(c.scrapeDuration, prometheus.GaugeValue, time.Since(start).Seconds())
}

func (c *Collector) collectMemory(ch chan<- prometheus.Metric, m *report.MemoryReport) {
	if len(m.System) > 0 {
		var total, free, used uint64
		for _, s := range m.System {
			total += s.TotalKB
			free += s.FreeKB
			used += s.UsedKB
		}

		ch <- prometheus.MustNewConstMetric(c.memTotal, prometheus.GaugeValue, float64(total*1024))
		ch <- prometheus.MustNewConstMetric(c.memFree, prometheus.GaugeValue, float64(free*1024))
		ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, float64(used*1024))
	}

	for i, mod := range m.Modules {
		labels := []string{strconv.Itoa(i), deref(mod.Manufacturer), deref(mod.PartNumber)}
		if mod.CapacityBytes != nil {
			ch <- prometheus.MustNewConstMetric(c.moduleCapacity, prometheus.GaugeValue, float64(*mod.CapacityBytes), labels...)
		}
		if mod.SpeedMHz != nil {
			ch <- prometheus.MustNewConstMetric(c.moduleSpeed, prometheus.GaugeValue, float64(*mod.SpeedMHz), labels...)
		}
	}
}

func (c *Collector) collectLogicalDisks(ch chan<- prometheus.Metric, disks []report.LogicalDisk) {
	for _, d := range disks {
		labels := []string{d.DeviceID, deref(d.FileSystem), d.DriveTypeName}
		if d.SizeBytes != nil {
			ch <- prometheus.MustNewConstMetric(c.diskSize, prometheus.GaugeValue, float64(*d.SizeBytes), labels...)
		}
		if d.FreeBytes != nil {
			ch <- prometheus.MustNewConstMetric(c.diskFree, prometheus.GaugeValue, float64(*d.FreeBytes), labels...)
		}
	}
}

func (c *Collector) collectPhysicalDisks(ch chan<- prometheus.Metric, disks []report.PhysicalDisk) {
	for i, d := range disks {
		if d.SizeBytes == nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.physicalSize, prometheus.GaugeValue, float64(*d.SizeBytes),
			strconv.Itoa(i), deref(d.Model), deref(d.InterfaceType))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
