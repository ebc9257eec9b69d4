package whisper

import "runtime"

// Params is the decode configuration for a single transcription pass.
//
// The policy is fixed: greedy single-pass decoding tuned for short English
// utterances, with the engine's own console printing turned off so the
// caller's diagnostics are the only output channel. Callers choose nothing
// but the thread count.
type Params struct {
	Language        string
	Translate       bool
	Threads         int
	OffsetMS        int
	NoContext       bool
	SingleSegment   bool
	PrintRealtime   bool
	PrintProgress   bool
	PrintTimestamps bool
	PrintSpecial    bool

	// Decode quality gates. These values are load-bearing; changing them
	// changes which segments survive the greedy pass.
	EntropyThreshold  float32
	LogProbThreshold  float32
	NoSpeechThreshold float32
}

// PrepareParams builds the parameter set for one pass. The thread count is
// forwarded as given; a non-positive value falls back to the CPU count.
func PrepareParams(threads int) Params {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return Params{
		Language:          "en",
		Translate:         false,
		Threads:           threads,
		OffsetMS:          0,
		NoContext:         true,
		SingleSegment:     false,
		PrintRealtime:     false,
		PrintProgress:     false,
		PrintTimestamps:   false,
		PrintSpecial:      false,
		EntropyThreshold:  2.8,
		LogProbThreshold:  -1.5,
		NoSpeechThreshold: 0.3,
	}
}
