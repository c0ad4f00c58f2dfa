package reframer

import (
	"errors"
	"testing"

	"github.com/snapetech/reframer/internal/pidio"
	"github.com/snapetech/reframer/internal/pidio/memio"
)

// blockingFixture builds a single-stream Context whose only queued packet
// is a blocking reference, for exercising fillQueues' fatal path.
func blockingFixture(t *testing.T, xs string) *Context {
	t.Helper()
	p := memio.NewPacket(0, true, 0, 1000, pidio.SAP1, []byte{0, 1, 2, 3})
	p.SetBlocking(true)
	in := memio.NewInPid(memio.Properties{Timescale: 1000, StreamType: pidio.StreamVisual}, []*memio.Packet{p})
	out := memio.NewOutPid()

	cfg := Config{XS: []string{xs}}
	ctx := NewContext(cfg, memio.Allocator{})
	ctx.AddStream(NewStream("video", in, out, false))
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return ctx
}

func TestDurationSplitFailsFatallyOnBlockingRef(t *testing.T) {
	ctx := blockingFixture(t, "D1")

	status, err := ctx.Process()
	if status != StatusNotSupported {
		t.Fatalf("status = %v, want StatusNotSupported", status)
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Reason != FatalBlockingRefSplit {
		t.Fatalf("err = %v, want *FatalError{FatalBlockingRefSplit}", err)
	}
}

func TestSizeSplitFailsFatallyOnBlockingRef(t *testing.T) {
	ctx := blockingFixture(t, "S1k")

	status, err := ctx.Process()
	if status != StatusNotSupported {
		t.Fatalf("status = %v, want StatusNotSupported", status)
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Reason != FatalBlockingRefSplit {
		t.Fatalf("err = %v, want *FatalError{FatalBlockingRefSplit}", err)
	}
}

// SAP split isn't named by spec.md's blocking-ref rule (only size/duration
// split are): a blocking packet there should be queued and processed as
// normal, not treated as fatal.
func TestSAPSplitToleratesBlockingRef(t *testing.T) {
	ctx := blockingFixture(t, "SAP")

	if _, err := ctx.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
}
