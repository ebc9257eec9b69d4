//go:build !whisper_cpp

package whisper

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemInfo reports host facts in the spirit of whisper_print_system_info.
// The native build returns the library's own capability string instead.
func SystemInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "WHISPER : build = stub | GOOS = %s | GOARCH = %s | NCPU = %d",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		fmt.Fprintf(&b, " | CPU = %s", strings.TrimSpace(info[0].ModelName))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&b, " | MEM = %d MB", vm.Total/(1<<20))
	}
	if h, err := host.Info(); err == nil {
		fmt.Fprintf(&b, " | OS = %s %s", h.Platform, h.PlatformVersion)
	}
	return b.String()
}

// BenchMemcpy times a sharded memory copy at the requested parallelism,
// standing in for whisper_bench_memcpy_str.
func BenchMemcpy(threads int) string {
	if threads <= 0 {
		threads = 1
	}
	const size = 32 << 20
	const rounds = 8
	src := make([]byte, size)
	dst := make([]byte, size)

	start := time.Now()
	for r := 0; r < rounds; r++ {
		var wg sync.WaitGroup
		shard := size / threads
		for t := 0; t < threads; t++ {
			lo := t * shard
			hi := lo + shard
			if t == threads-1 {
				hi = size
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				copy(dst[lo:hi], src[lo:hi])
			}(lo, hi)
		}
		wg.Wait()
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	gb := float64(size) * rounds / (1 << 30)
	return fmt.Sprintf("memcpy: %8.2f GB/s (stub build, %d threads)", gb/elapsed, threads)
}

// BenchMatMul times dense float32 multiplies at the requested parallelism,
// standing in for whisper_bench_ggml_mul_mat_str. It is a timing probe, not
// an inference path.
func BenchMatMul(threads int) string {
	if threads <= 0 {
		threads = 1
	}
	const n = 192
	const rounds = 4

	start := time.Now()
	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func(seed float32) {
			defer wg.Done()
			a := make([]float32, n*n)
			b := make([]float32, n*n)
			c := make([]float32, n*n)
			for i := range a {
				a[i] = seed
				b[i] = seed + 1
			}
			for r := 0; r < rounds; r++ {
				for i := 0; i < n; i++ {
					for j := 0; j < n; j++ {
						var sum float32
						for k := 0; k < n; k++ {
							sum += a[i*n+k] * b[k*n+j]
						}
						c[i*n+j] = sum
					}
				}
			}
		}(float32(t + 1))
	}
	wg.Wait()
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	flops := 2 * float64(n) * float64(n) * float64(n) * rounds * float64(threads)
	return fmt.Sprintf("ggml_mul_mat: %8.2f GFLOPS (stub build, %d threads)", flops/elapsed/1e9, threads)
}
