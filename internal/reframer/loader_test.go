package reframer

import (
	"errors"
	"testing"

	"github.com/snapetech/reframer/internal/pidio"
	"github.com/snapetech/reframer/internal/pidio/memio"
)

func TestLoadFirstRangeUnparseableLeavesExtractNone(t *testing.T) {
	ctx := NewContext(Config{XS: []string{"not-a-valid-endpoint"}}, memio.Allocator{})
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v, want nil (unparseable xs[0] is recoverable)", err)
	}
	if ctx.ExtractMode != ExtractNone {
		t.Fatalf("ExtractMode = %v, want ExtractNone", ctx.ExtractMode)
	}
}

func TestLoadFirstRangeReturnsErrUnparseableRange(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	ctx.cfg.XS = []string{"not-a-valid-endpoint"}
	err := ctx.loadFirstRange()
	if !errors.Is(err, ErrUnparseableRange) {
		t.Fatalf("loadFirstRange err = %v, want wrapping ErrUnparseableRange", err)
	}
}

// TestWaitVideoRangeAdjustGatesNonVideoIntake exercises the xadjust gate
// end to end at the advanceToChunkStart level: the video pid is EOS with no
// packets (its start search concludes immediately to EOSBeforeStart), while
// the audio pid has a single SAP-aligned packet that would otherwise resolve
// its start on the very first tick. While WaitVideoRangeAdjust holds, audio
// must stay pending; once the video pid's search has concluded, the gate
// clears and audio proceeds.
func TestWaitVideoRangeAdjustGatesNonVideoIntake(t *testing.T) {
	videoIn := memio.NewInPid(memio.Properties{Timescale: 90000, StreamType: pidio.StreamVisual}, nil)
	videoIn.MarkEOS()
	videoOut := memio.NewOutPid()
	video := NewStream("video", videoIn, videoOut, false)

	audioPkt := memio.NewPacket(0, true, 0, 1024, pidio.SAP1, []byte{0, 1, 2, 3})
	audioIn := memio.NewInPid(memio.Properties{Timescale: 48000, SampleRate: 48000, NumChannels: 2, StreamType: pidio.StreamAudio}, []*memio.Packet{audioPkt})
	audioOut := memio.NewOutPid()
	audio := NewStream("audio", audioIn, audioOut, true)

	cfg := Config{XS: []string{"0"}, XE: []string{"5"}, XAdjust: true}
	ctx := NewContext(cfg, memio.Allocator{})
	ctx.AddStream(video)
	ctx.AddStream(audio)

	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !ctx.WaitVideoRangeAdjust {
		t.Fatal("expected WaitVideoRangeAdjust to be set after loading a closed range under xadjust with a video pid")
	}

	if _, err := ctx.advanceToChunkStart(); err != nil {
		t.Fatalf("advanceToChunkStart (tick 1): %v", err)
	}
	if audio.RangeStartComputed != RangeStartPending {
		t.Fatalf("audio.RangeStartComputed = %v after tick 1, want RangeStartPending (held by the xadjust gate)", audio.RangeStartComputed)
	}
	if video.RangeStartComputed != RangeStartEOSBeforeStart {
		t.Fatalf("video.RangeStartComputed = %v after tick 1, want RangeStartEOSBeforeStart", video.RangeStartComputed)
	}

	started, err := ctx.advanceToChunkStart()
	if err != nil {
		t.Fatalf("advanceToChunkStart (tick 2): %v", err)
	}
	if ctx.WaitVideoRangeAdjust {
		t.Fatal("expected WaitVideoRangeAdjust to clear once the video pid's search concluded")
	}
	if audio.RangeStartComputed != RangeStartFound {
		t.Fatalf("audio.RangeStartComputed = %v after tick 2, want RangeStartFound", audio.RangeStartComputed)
	}
	if !started {
		t.Fatal("expected the chunk to have started once the gate cleared and audio located its start")
	}
}
