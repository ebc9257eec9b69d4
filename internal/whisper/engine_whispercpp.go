//go:build whisper_cpp

package whisper

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include <stdlib.h>
#include <whisper.h>

extern size_t whisperBridgeRead(void * ctx, void * output, size_t read_size);
extern bool whisperBridgeEOF(void * ctx);
extern void whisperBridgeClose(void * ctx);

static struct whisper_context * bridge_init_with_loader(void * handle, struct whisper_context_params cparams) {
	struct whisper_model_loader loader = {
		.context = handle,
		.read    = whisperBridgeRead,
		.eof     = whisperBridgeEOF,
		.close   = whisperBridgeClose,
	};
	return whisper_init_with_params(&loader, cparams);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"time"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/loader"
)

// engineCPP drives a native whisper_context. Segment state lives inside the
// context, so whisper_full replacing it on each pass gives the replace-on-
// success semantics for free.
type engineCPP struct {
	ctx    *C.struct_whisper_context
	origin string
}

func newFileEngine(modelPath string) (Engine, error) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	ctx := C.whisper_init_from_file_with_params(cPath, C.whisper_context_default_params())
	if ctx == nil {
		return nil, fmt.Errorf("whisper: failed to load model %s", modelPath)
	}
	log.Info().Str("model", modelPath).Msg("whisper: native engine ready")
	return &engineCPP{ctx: ctx, origin: "file:" + modelPath}, nil
}

// newLoaderEngine hands the loader to the native library, which pulls it to
// exhaustion through the exported callbacks and closes it when done, on both
// the success and the failure path.
func newLoaderEngine(ld loader.Loader, origin string) (Engine, error) {
	h := cgo.NewHandle(ld)
	defer h.Delete()

	ctx := C.bridge_init_with_loader(unsafe.Pointer(&h), C.whisper_context_default_params())
	if ctx == nil {
		return nil, fmt.Errorf("whisper: failed to load model from %s", origin)
	}
	log.Info().Str("origin", origin).Msg("whisper: native engine ready")
	return &engineCPP{ctx: ctx, origin: origin}, nil
}

func (e *engineCPP) Transcribe(threads int, samples []float32) error {
	if e.ctx == nil {
		return ErrEngineClosed
	}
	if len(samples) == 0 {
		return errors.New("whisper: empty sample buffer")
	}
	p := PrepareParams(threads)
	diag := Analyze(samples)
	diag.Log()

	cLang := C.CString(p.Language)
	defer C.free(unsafe.Pointer(cLang))

	cp := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	cp.language = cLang
	cp.translate = C.bool(p.Translate)
	cp.n_threads = C.int(p.Threads)
	cp.offset_ms = C.int(p.OffsetMS)
	cp.no_context = C.bool(p.NoContext)
	cp.single_segment = C.bool(p.SingleSegment)
	cp.print_realtime = C.bool(p.PrintRealtime)
	cp.print_progress = C.bool(p.PrintProgress)
	cp.print_timestamps = C.bool(p.PrintTimestamps)
	cp.print_special = C.bool(p.PrintSpecial)
	cp.entropy_thold = C.float(p.EntropyThreshold)
	cp.logprob_thold = C.float(p.LogProbThreshold)
	cp.no_speech_thold = C.float(p.NoSpeechThreshold)

	C.whisper_reset_timings(e.ctx)
	start := time.Now()
	if rc := C.whisper_full(e.ctx, cp, (*C.float)(unsafe.Pointer(&samples[0])), C.int(len(samples))); rc != 0 {
		return fmt.Errorf("whisper: transcription failed (code %d)", int(rc))
	}

	n := e.SegmentCount()
	log.Info().
		Int("segments", n).
		Int("threads", p.Threads).
		Dur("elapsed", time.Since(start)).
		Msg("whisper: pass complete")
	for i := 0; i < n && i < 5; i++ {
		if seg, err := e.Segment(i); err == nil {
			log.Debug().Int64("t0", seg.Start).Int64("t1", seg.End).Str("text", seg.Text).Msg("whisper: segment")
		}
	}
	return nil
}

func (e *engineCPP) SegmentCount() int {
	if e.ctx == nil {
		return 0
	}
	return int(C.whisper_full_n_segments(e.ctx))
}

func (e *engineCPP) Segment(i int) (Segment, error) {
	if e.ctx == nil {
		return Segment{}, ErrEngineClosed
	}
	n := int(C.whisper_full_n_segments(e.ctx))
	if i < 0 || i >= n {
		return Segment{}, fmt.Errorf("whisper: segment %d out of range [0,%d)", i, n)
	}
	return Segment{
		Text:  C.GoString(C.whisper_full_get_segment_text(e.ctx, C.int(i))),
		Start: int64(C.whisper_full_get_segment_t0(e.ctx, C.int(i))),
		End:   int64(C.whisper_full_get_segment_t1(e.ctx, C.int(i))),
	}, nil
}

func (e *engineCPP) Close() error {
	if e.ctx == nil {
		return nil
	}
	log.Debug().Str("origin", e.origin).Msg("whisper: freeing native context")
	C.whisper_free(e.ctx)
	e.ctx = nil
	return nil
}
