package cache

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"
)

// benchPayload is a representative cached weather document.
var benchPayload = []byte(`{"location":"london","temperature":15.5,"conditions":"clear sky","humidity":65,"windSpeed":3.2,"timestamp":"2026-08-25T12:00:00Z"}`)

// BenchmarkInMemoryCache_Get_Hit benchmarks cache Get operation on cache hit.
func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	cache := NewInMemoryCache(0)
	ctx := context.Background()

	// Pre-populate cache
	cache.Set(ctx, "weather:london", benchPayload, 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "weather:london")
	}
}

// BenchmarkInMemoryCache_Get_Miss benchmarks cache Get operation on cache miss.
func BenchmarkInMemoryCache_Get_Miss(b *testing.B) {
	cache := NewInMemoryCache(0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "nonexistent")
	}
}

// BenchmarkInMemoryCache_Set benchmarks cache Set operation.
func BenchmarkInMemoryCache_Set(b *testing.B) {
	cache := NewInMemoryCache(0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cache.Set(ctx, "weather:london", benchPayload, 5*time.Minute)
	}
}

// BenchmarkInMemoryCache_Concurrent benchmarks concurrent cache reads.
func BenchmarkInMemoryCache_Concurrent(b *testing.B) {
	cache := NewInMemoryCache(0)
	ctx := context.Background()
	cache.Set(ctx, "weather:london", benchPayload, 5*time.Minute)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = cache.Get(ctx, "weather:london")
		}
	})
}

// BenchmarkMemcachedCache_Get_Hit benchmarks Memcached Get on cache hit.
// Requires: Memcached running (skip if unavailable).
func BenchmarkMemcachedCache_Get_Hit(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping Memcached benchmark in short mode")
	}

	cache, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2, 0)
	if err != nil {
		b.Skipf("Memcached not available: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "weather:london", benchPayload, 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "weather:london")
	}
}

// BenchmarkMemcachedCache_Get_Miss benchmarks Memcached Get on cache miss.
func BenchmarkMemcachedCache_Get_Miss(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping Memcached benchmark in short mode")
	}

	cache, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2, 0)
	if err != nil {
		b.Skipf("Memcached not available: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "nonexistent")
	}
}

// BenchmarkMemcachedCache_Set benchmarks Memcached Set operation.
func BenchmarkMemcachedCache_Set(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping Memcached benchmark in short mode")
	}

	cache, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2, 0)
	if err != nil {
		b.Skipf("Memcached not available: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cache.Set(ctx, "weather:london", benchPayload, 5*time.Minute)
	}
}

// BenchmarkInMemoryCache_MemoryPerEntry estimates memory usage per cache entry.
func BenchmarkInMemoryCache_MemoryPerEntry(b *testing.B) {
	cache := NewInMemoryCache(0)
	ctx := context.Background()

	var m1, m2 runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m1)

	for i := 0; i < b.N; i++ {
		cache.Set(ctx, fmt.Sprintf("key%d", i), benchPayload, 5*time.Minute)
	}

	runtime.GC()
	runtime.ReadMemStats(&m2)

	bytesPerEntry := float64(m2.Alloc-m1.Alloc) / float64(b.N)
	b.ReportMetric(bytesPerEntry, "bytes/entry")
}
