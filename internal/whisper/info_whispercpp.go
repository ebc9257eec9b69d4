//go:build whisper_cpp

package whisper

/*
#include <whisper.h>
*/
import "C"

// SystemInfo returns the native library's capability summary: compiled SIMD
// extensions, BLAS backends and so on.
func SystemInfo() string {
	return C.GoString(C.whisper_print_system_info())
}

// BenchMemcpy runs the library's memory bandwidth benchmark.
func BenchMemcpy(threads int) string {
	return C.GoString(C.whisper_bench_memcpy_str(C.int(threads)))
}

// BenchMatMul runs the library's ggml mat-mul throughput benchmark.
func BenchMatMul(threads int) string {
	return C.GoString(C.whisper_bench_ggml_mul_mat_str(C.int(threads)))
}
