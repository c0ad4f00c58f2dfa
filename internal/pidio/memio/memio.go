// Package memio is a minimal in-memory implementation of the pidio
// capability interfaces. It stands in for the filter-session plumbing a real
// host would provide: a ring of already-framed packets per pid, fed either
// from a slice built ahead of time or from the synthetic generators below.
//
// It is not a mock: it implements the full contract (ref-counting, EOS,
// discard) a real session would, just backed by a slice instead of a codec
// demuxer.
package memio

import (
	"sync"

	"github.com/snapetech/reframer/internal/pidio"
)

// Packet is a ref-counted in-memory packet.
type Packet struct {
	mu       sync.Mutex
	refs     int
	dts      int64
	hasDTS   bool
	cts      int64
	dur      uint32
	sap      pidio.SAPClass
	deps     pidio.DependencyFlags
	data     []byte
	props    map[string]any
	blocking bool
}

func NewPacket(dts int64, hasDTS bool, cts int64, dur uint32, sap pidio.SAPClass, data []byte) *Packet {
	return &Packet{refs: 1, dts: dts, hasDTS: hasDTS, cts: cts, dur: dur, sap: sap, data: data, props: map[string]any{}}
}

func (p *Packet) DTS() (int64, bool)          { return p.dts, p.hasDTS }
func (p *Packet) CTS() int64                  { return p.cts }
func (p *Packet) Duration() uint32            { return p.dur }
func (p *Packet) SAP() pidio.SAPClass         { return p.sap }
func (p *Packet) DependencyFlags() pidio.DependencyFlags { return p.deps }
func (p *Packet) Data() []byte                { return p.data }
func (p *Packet) IsBlockingRef() bool         { return p.blocking }

func (p *Packet) SetBlocking(b bool) { p.blocking = b }
func (p *Packet) SetDependencyFlags(d pidio.DependencyFlags) { p.deps = d }

func (p *Packet) Ref() pidio.Packet {
	p.mu.Lock()
	p.refs++
	p.mu.Unlock()
	return p
}

func (p *Packet) Unref() {
	p.mu.Lock()
	p.refs--
	p.mu.Unlock()
}

func (p *Packet) SetDTS(v int64)   { p.dts, p.hasDTS = v, true }
func (p *Packet) SetCTS(v int64)   { p.cts = v }
func (p *Packet) SetDuration(v uint32) { p.dur = v }

func (p *Packet) SetProperty(name string, value any) {
	if p.props == nil {
		p.props = map[string]any{}
	}
	p.props[name] = value
}

func (p *Packet) Property(name string) (any, bool) {
	v, ok := p.props[name]
	return v, ok
}

func (p *Packet) MergeProperties(src pidio.Packet) {
	other, ok := src.(*Packet)
	if !ok {
		return
	}
	for k, v := range other.props {
		p.SetProperty(k, v)
	}
}

// Clone returns a byte-identical packet that shares no mutable state with p,
// honoring pidio's "clone on emission, never mutate the retained input"
// contract.
func (p *Packet) Clone(data []byte) *Packet {
	c := NewPacket(p.dts, p.hasDTS, p.cts, p.dur, p.sap, data)
	for k, v := range p.props {
		c.SetProperty(k, v)
	}
	c.deps = p.deps
	return c
}

// InPid is a FIFO-backed PidIn: packets are consumed in order, with an EOS
// flag flipped once the slice is exhausted.
type InPid struct {
	props Properties
	queue []*Packet
	pos   int
	eos   bool
	discardOK bool
}

type Properties = pidio.Properties

func NewInPid(props Properties, packets []*Packet) *InPid {
	return &InPid{props: props, queue: packets}
}

func (p *InPid) GetPacket() pidio.Packet {
	if p.pos >= len(p.queue) {
		return nil
	}
	return p.queue[p.pos]
}

func (p *InPid) DropPacket() {
	if p.pos < len(p.queue) {
		p.pos++
	}
	if p.pos >= len(p.queue) {
		p.eos = true
	}
}

func (p *InPid) IsEOS() bool { return p.eos && p.pos >= len(p.queue) }

func (p *InPid) GetProperty() Properties { return p.props }

func (p *InPid) SendEvent(pidio.Event) {}

func (p *InPid) SetDiscard(ok bool) { p.discardOK = ok }

// MarkEOS forces EOS even if packets remain queued (used by tests simulating
// an upstream that stops early).
func (p *InPid) MarkEOS() { p.eos = true }

// OutPid records everything forwarded to it, for assertions in tests.
type OutPid struct {
	mu       sync.Mutex
	Forwarded []pidio.Packet
	Props     map[string]any
}

func NewOutPid() *OutPid {
	return &OutPid{Props: map[string]any{}}
}

func (o *OutPid) Forward(pkt pidio.Packet) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Forwarded = append(o.Forwarded, pkt)
	return nil
}

func (o *OutPid) SetProperty(name string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Props[name] = value
}

// Allocator is the trivial pidio.Allocator backed by plain byte slices.
type Allocator struct{}

// NewRef returns a new packet object that shares src's payload bytes
// (zero-copy) but owns independent timestamp/duration/property state, so the
// emitter can rewrite CTS/DTS on the outgoing copy without disturbing a
// second reference still carried across ticks (e.g. split_pck). src.Ref()
// still bumps the explicit refcount for parity with the reference-counted
// contract real packet allocators implement.
func (Allocator) NewRef(src pidio.Packet) pidio.Packet {
	src.Ref()
	p, ok := src.(*Packet)
	if !ok {
		return NewPacket(0, false, 0, 0, pidio.SAPNone, src.Data())
	}
	return p.Clone(p.data)
}

func (Allocator) NewCopy(src pidio.Packet, data []byte) pidio.Packet {
	p, ok := src.(*Packet)
	if !ok {
		return NewPacket(0, false, 0, 0, pidio.SAPNone, data)
	}
	return p.Clone(data)
}

func (Allocator) NewAlloc(size int) pidio.Packet {
	return NewPacket(0, false, 0, 0, pidio.SAPNone, make([]byte, size))
}
