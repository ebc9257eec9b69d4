//go:build whisper_cpp

package whisper

/*
#include <stddef.h>
#include <stdbool.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/loader"
)

// The native library drives model loading through these exports. The loader
// travels as a cgo.Handle so no Go pointer crosses into C memory; the handle
// stays valid for the duration of the synchronous init call that uses it.

func loaderFromHandle(ctx unsafe.Pointer) (loader.Loader, bool) {
	if ctx == nil {
		return nil, false
	}
	h := *(*cgo.Handle)(ctx)
	if h == 0 {
		return nil, false
	}
	ld, ok := h.Value().(loader.Loader)
	return ld, ok
}

//export whisperBridgeRead
func whisperBridgeRead(ctx unsafe.Pointer, output unsafe.Pointer, readSize C.size_t) C.size_t {
	ld, ok := loaderFromHandle(ctx)
	if !ok || output == nil || readSize == 0 {
		return 0
	}
	buf := unsafe.Slice((*byte)(output), int(readSize))
	n, err := ld.Read(buf)
	if err != nil && n == 0 {
		// End or failure either way; the engine consults EOF next.
		return 0
	}
	return C.size_t(n)
}

//export whisperBridgeEOF
func whisperBridgeEOF(ctx unsafe.Pointer) C.bool {
	ld, ok := loaderFromHandle(ctx)
	if !ok {
		return C.bool(true)
	}
	return C.bool(ld.EOF())
}

//export whisperBridgeClose
func whisperBridgeClose(ctx unsafe.Pointer) {
	ld, ok := loaderFromHandle(ctx)
	if !ok {
		return
	}
	if err := ld.Close(); err != nil {
		log.Warn().Err(err).Msg("whisper: model source close failed")
	}
}
