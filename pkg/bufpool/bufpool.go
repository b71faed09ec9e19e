// Package bufpool recycles the byte slices the SMB transport frames
// responses into.
//
// Buffers come in power-of-two size classes from MinSize up to MaxSize.
// A request is rounded up to the next class; requests above MaxSize are
// allocated directly and never pooled.
//
// Thread safety: all operations are safe for concurrent use.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	// MinSize is the smallest pooled class. An SMB2 header plus a short
	// error body fits.
	MinSize = 512

	// MaxSize is the largest pooled class: a NetBIOS header plus a full
	// 1 MiB READ response and its SMB2 header.
	MaxSize = 2 << 20
)

var (
	minShift = bits.Len(MinSize - 1)
	maxShift = bits.Len(MaxSize - 1)
)

// Stats counts pool traffic.
type Stats struct {
	Hits      uint64 // Get served from a pooled buffer
	Misses    uint64 // Get that allocated
	Oversized uint64 // Get above MaxSize
}

// Pool is a set of sync.Pools, one per size class.
type Pool struct {
	classes []sync.Pool

	hits      atomic.Uint64
	misses    atomic.Uint64
	oversized atomic.Uint64
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	p := &Pool{classes: make([]sync.Pool, maxShift-minShift+1)}
	for i := range p.classes {
		size := 1 << (minShift + i)
		p.classes[i].New = func() any {
			p.misses.Add(1)
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// classOf returns the class index for a buffer of size bytes, or -1 when
// size is above MaxSize.
func classOf(size int) int {
	if size > MaxSize {
		return -1
	}
	if size <= MinSize {
		return 0
	}
	return bits.Len(uint(size-1)) - minShift
}

// Get returns a slice of length size. Its capacity is the size class, so
// the caller must not rely on cap.
func (p *Pool) Get(size int) []byte {
	idx := classOf(size)
	if idx < 0 {
		p.oversized.Add(1)
		return make([]byte, size)
	}

	before := p.misses.Load()
	buf := *(p.classes[idx].Get().(*[]byte))
	if p.misses.Load() == before {
		p.hits.Add(1)
	}
	return buf[:size]
}

// Put returns buf to its class. Slices whose capacity is not exactly a
// class size (oversized or foreign slices) are dropped.
func (p *Pool) Put(buf []byte) {
	c := cap(buf)
	if c < MinSize || c > MaxSize || c&(c-1) != 0 {
		return
	}
	full := buf[:c]
	p.classes[classOf(c)].Put(&full)
}

// Stats returns a snapshot of the counters. Hits and misses are
// approximate under concurrency.
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Oversized: p.oversized.Load(),
	}
}

// =============================================================================
// Global Pool
// =============================================================================

var global = NewPool()

// Get returns a buffer from the package pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns a buffer to the package pool.
func Put(buf []byte) { global.Put(buf) }

// GlobalStats returns the package pool counters.
func GlobalStats() Stats { return global.Stats() }
