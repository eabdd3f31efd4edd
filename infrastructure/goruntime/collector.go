package goruntime

import (
	"runtime"
	"sync/atomic"
)

// Collector forces garbage collection.
type Collector struct {
	collections atomic.Int64
}

// NewCollector creates a collector.
func NewCollector() *Collector {
	return &Collector{}
}

// CollectNow runs a full, blocking collection.
func (c *Collector) CollectNow() error {
	runtime.GC()
	c.collections.Add(1)
	return nil
}

// Collections returns how many collections this collector requested.
func (c *Collector) Collections() int64 {
	return c.collections.Load()
}
