package reframer

import (
	"testing"

	"github.com/snapetech/reframer/internal/pidio"
	"github.com/snapetech/reframer/internal/pidio/memio"
)

func newTestStream(id string, codec string, streamType pidio.StreamType, canSplit bool) (*Stream, *memio.InPid, *memio.OutPid) {
	in := memio.NewInPid(memio.Properties{Timescale: 48000, SampleRate: 48000, NumChannels: 2, CodecID: codec, StreamType: streamType}, nil)
	out := memio.NewOutPid()
	s := NewStream(id, in, out, canSplit)
	return s, in, out
}

func TestKeepBySAPEmptyFilterKeepsEverything(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	for _, sap := range []pidio.SAPClass{pidio.SAPNone, pidio.SAP1, pidio.SAP2, pidio.SAP3, pidio.SAP4} {
		if !ctx.keepBySAP(sap) {
			t.Fatalf("keepBySAP(%v) = false with no filter configured, want true", sap)
		}
	}
}

func TestKeepBySAPFiltersToConfiguredClasses(t *testing.T) {
	ctx := NewContext(Config{SAPs: []pidio.SAPClass{pidio.SAP1, pidio.SAP2}}, memio.Allocator{})
	if !ctx.keepBySAP(pidio.SAP1) {
		t.Fatal("expected SAP1 to be kept")
	}
	if ctx.keepBySAP(pidio.SAP3) {
		t.Fatal("expected SAP3 to be dropped")
	}
}

func TestStripsSyncWhenSAP1Excluded(t *testing.T) {
	ctx := NewContext(Config{SAPs: []pidio.SAPClass{pidio.SAP2}}, memio.Allocator{})
	if !ctx.stripsSync() {
		t.Fatal("expected stripsSync true when saps[] excludes SAP1")
	}
	ctx2 := NewContext(Config{}, memio.Allocator{})
	if ctx2.stripsSync() {
		t.Fatal("expected stripsSync false with no saps[] filter")
	}
}

func TestKeepByFrameWhitelistOutsideRangeMode(t *testing.T) {
	ctx := NewContext(Config{Frames: []int{1, 3}}, memio.Allocator{})
	ctx.ExtractMode = ExtractSAP
	if !ctx.keepByFrame(0) { // 1-based frame 1
		t.Fatal("expected frame index 0 (frame 1) to be kept")
	}
	if ctx.keepByFrame(1) { // frame 2, not whitelisted
		t.Fatal("expected frame index 1 (frame 2) to be dropped")
	}
	// Range mode ignores the frames[] whitelist entirely.
	ctx.ExtractMode = ExtractRange
	if !ctx.keepByFrame(1) {
		t.Fatal("expected frames[] whitelist to be bypassed in range mode")
	}
}

func TestFileSuffixTimeRange(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	ctx.CurStart = Rational{Num: 1, Den: 1}
	ctx.CurEnd = Rational{Num: 2, Den: 1}
	ctx.HasEnd = true
	if got, want := ctx.fileSuffix(), "1000-2000"; got != want {
		t.Fatalf("fileSuffix() = %q, want %q", got, want)
	}
}

func TestFileSuffixOpenRange(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	ctx.CurStart = Rational{Num: 3, Den: 1}
	if got, want := ctx.fileSuffix(), "3000"; got != want {
		t.Fatalf("fileSuffix() = %q, want %q", got, want)
	}
}

func TestFileSuffixFrameBased(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	ctx.CurStartRaw = "F10"
	ctx.CurEndRaw = "F20"
	ctx.StartFrameIdxPlusOne = NewFrameIdxPlusOne(11)
	ctx.EndFrameIdxPlusOne = NewFrameIdxPlusOne(21)
	if got, want := ctx.fileSuffix(), "F10_F20"; got != want {
		t.Fatalf("fileSuffix() = %q, want %q", got, want)
	}
}

func TestTransformPayloadTMCDRewritesFrameCounter(t *testing.T) {
	ctx := NewContext(Config{Tcmdrw: true}, memio.Allocator{})
	s, _, _ := newTestStream("tc", "tmcd", pidio.StreamOther, false)
	s.nbVideoFramesAtRangeStart = 100

	data := []byte{0, 0, 0, 5}
	pkt := memio.NewPacket(0, true, 0, 0, pidio.SAPNone, data)
	out, ctsOffset := ctx.transformPayload(s, queuedPacket{pkt: pkt, ts: 0, dur: 0, sap: pidio.SAPNone})
	if ctsOffset != 0 {
		t.Fatalf("tmcd ctsOffset = %d, want 0", ctsOffset)
	}
	got := uint32(out.Data()[0])<<24 | uint32(out.Data()[1])<<16 | uint32(out.Data()[2])<<8 | uint32(out.Data()[3])
	if got != 105 {
		t.Fatalf("rewritten frame counter = %d, want 105 (5 + 100)", got)
	}
}

func TestTransformPayloadRawAudioDropHead(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	s, _, _ := newTestStream("aud", "raw-pcm", pidio.StreamAudio, true)
	s.BytesPerSampleFrame = 4 // 2ch * 2 bytes
	s.AudioDropHead = 3       // drop 3 sample-frames from the head

	data := make([]byte, 4*10) // 10 sample-frames
	for i := range data {
		data[i] = byte(i)
	}
	pkt := memio.NewPacket(0, true, 0, 10, pidio.SAP1, data)
	out, ctsOffset := ctx.transformPayload(s, queuedPacket{pkt: pkt, ts: 0, dur: 10, sap: pidio.SAP1})

	if len(out.Data()) != 4*7 {
		t.Fatalf("trimmed payload length = %d, want %d", len(out.Data()), 4*7)
	}
	if out.Data()[0] != 12 { // byte index 12 == sample-frame 3's first byte
		t.Fatalf("trimmed payload did not start at dropped offset: first byte = %d, want 12", out.Data()[0])
	}
	if ctsOffset != 3 { // timescale == sample rate here, so ticks == samples
		t.Fatalf("ctsOffset = %d, want 3", ctsOffset)
	}
}

func TestChunkDoneForStreamRespectsSharedQueue(t *testing.T) {
	s, in, _ := newTestStream("v", "synthetic-video", pidio.StreamVisual, false)
	_ = in
	s.IsPlaying = true

	if !chunkDoneForStream(s) {
		t.Fatal("expected done with empty queue and no end located")
	}

	s.RangeEndReachedTS = NewTSPlusOne(100)
	s.Queue = []queuedPacket{{ts: 50}, {ts: 150}}
	if chunkDoneForStream(s) {
		t.Fatal("expected not done while a pre-cut packet remains queued")
	}

	s.Queue = []queuedPacket{{ts: 150}}
	if !chunkDoneForStream(s) {
		t.Fatal("expected done once only post-cut packets remain queued")
	}
}
