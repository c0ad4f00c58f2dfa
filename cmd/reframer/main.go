// Command reframer extracts one or more timeline ranges from a set of pid
// streams, rewrites them onto a continuous output timeline, and optionally
// splits the result by SAP, size or duration.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snapetech/reframer/internal/debugtrace"
	"github.com/snapetech/reframer/internal/pidio"
	"github.com/snapetech/reframer/internal/pidio/memio"
	"github.com/snapetech/reframer/internal/reframer"
	"github.com/snapetech/reframer/internal/reframer/diag"
	"github.com/snapetech/reframer/internal/reframer/manifest"
	"github.com/snapetech/reframer/internal/reframer/metrics"
	"github.com/snapetech/reframer/internal/reframer/rangespec"
	"github.com/snapetech/reframer/internal/reframer/rconfig"
)

func main() {
	rt := flag.String("rt", "", "real-time pacing mode: off, on, sync")
	speed := flag.Float64("speed", 0, "playback speed multiplier")
	saps := flag.String("saps", "", "comma-separated SAP classes to keep (0-4)")
	refs := flag.Bool("refs", false, "drop non-reference frames")
	raw := flag.Bool("raw", false, "treat input as decoded raw samples")
	frames := flag.String("frames", "", "comma-separated 1-based frame indices to keep (non-range modes)")
	xs := flag.String("xs", "", "comma-separated range start endpoints")
	xe := flag.String("xe", "", "comma-separated range end endpoints")
	xround := flag.String("xround", "", "start-cut rounding: before, after, closest")
	xadjust := flag.Bool("xadjust", false, "snap range end to the next video SAP")
	nosap := flag.Bool("nosap", false, "treat every packet as a SAP")
	splitrange := flag.Bool("splitrange", false, "emit FileNumber/FileSuffix chunk boundary properties")
	seeksafe := flag.Float64("seeksafe", 0, "seconds of safety rewind applied to seeks")
	tcmdrw := flag.Bool("tcmdrw", false, "rewrite TMCD timecode samples across chunk boundaries")
	props := flag.String("props", "", "comma-separated extra per-range output properties (key=value)")

	synthetic := flag.Bool("synthetic", false, "drive synthetic in-memory pids instead of a capture file")
	manifestPath := flag.String("manifest", "", "path to the sqlite chunk manifest")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics and /debug/events on")
	diagPath := flag.String("diag", "", "path to a brotli-compressed per-tick decision trace")
	resume := flag.Bool("resume", false, "reuse the most recent manifest run ID and report how many chunks it already recorded")
	flag.Parse()

	envOpts := rconfig.FromEnv()
	flagOpts := rconfig.Options{
		RT: *rt, Speed: *speed, SAPs: *saps, Refs: *refs, Raw: *raw, Frames: *frames,
		XS: *xs, XE: *xe, XRound: *xround, XAdjust: *xadjust, NoSAP: *nosap,
		SplitRange: *splitrange, SeekSafe: *seeksafe, Tcmdrw: *tcmdrw, Props: *props,
		Synthetic: *synthetic, Manifest: *manifestPath, MetricsAddr: *metricsAddr,
		Diag: *diagPath != "", Resume: *resume,
	}
	opts := rconfig.Merge(envOpts, flagOpts)

	var mf *manifest.Manifest
	if opts.Manifest != "" {
		m, err := manifest.Open(opts.Manifest, opts.Resume)
		if err != nil {
			log.Fatalf("reframer: manifest: %v", err)
		}
		defer m.Close()
		mf = m
		log.Printf("reframer: manifest run %s at %s", mf.RunID(), opts.Manifest)
		if opts.Resume {
			done, err := mf.CompletedFileNumbers()
			if err != nil {
				log.Fatalf("reframer: manifest: %v", err)
			}
			log.Printf("reframer: resuming run %s, %d chunk(s) already recorded", mf.RunID(), len(done))
		}
	}

	var metricsSet *metrics.Metrics
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metricsSet = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		mux.Handle("/", http.DefaultServeMux) // golang.org/x/net/trace registers /debug/requests and /debug/events here
		go func() {
			log.Printf("reframer: metrics/debug listening on %s", opts.MetricsAddr)
			if err := http.ListenAndServe(opts.MetricsAddr, mux); err != nil {
				log.Printf("reframer: metrics server: %v", err)
			}
		}()
	}

	var diagWriter *diag.Writer
	if opts.Diag {
		w, err := diag.Open(*diagPath)
		if err != nil {
			log.Fatalf("reframer: diag: %v", err)
		}
		defer w.Close()
		diagWriter = w
	}

	runLabel := "reframer"
	if mf != nil {
		runLabel = mf.RunID()
	}
	tracer := debugtrace.New("reframer.run", runLabel)
	defer tracer.Finish()

	cfg := buildEngineConfig(opts)

	ctx := reframer.NewContext(cfg, memio.Allocator{})
	if rec := newRunRecorder(ctx, metricsSet, mf); rec != nil {
		ctx.SetRecorder(rec)
	}
	if opts.Synthetic {
		wireSyntheticStreams(ctx)
	} else {
		log.Fatalf("reframer: non-synthetic pid wiring requires a hosting filter session; pass -synthetic to demo against generated streams")
	}

	if err := ctx.Init(); err != nil {
		log.Fatalf("reframer: init: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			fmt.Println("reframer: shutting down")
			return
		default:
		}

		status, err := ctx.Process()
		if err != nil {
			tracer.Errorf("process: %v", err)
			log.Printf("reframer: process: %v", err)
		}
		if diagWriter != nil {
			diagWriter.Logf("status=%d err=%v", status, err)
		}
		switch status {
		case reframer.StatusEOS:
			log.Printf("reframer: done")
			return
		case reframer.StatusNotSupported:
			log.Fatalf("reframer: fatal: %v", err)
		}

		if delay := ctx.RescheduleDelay(); delay > 0 {
			tracer.Eventf("reschedule %dus", delay)
		}
	}
}

// buildEngineConfig turns the flat rconfig.Options into a reframer.Config,
// parsing comma-separated lists and the xround/saps grammars.
func buildEngineConfig(opts rconfig.Options) reframer.Config {
	cfg := reframer.Config{
		XS:         rconfig.SplitList(opts.XS),
		XE:         rconfig.SplitList(opts.XE),
		XAdjust:    opts.XAdjust,
		SplitRange: opts.SplitRange,
		SeekSafe:   opts.SeekSafe,
		NoSAP:      opts.NoSAP,
		Raw:        opts.Raw,
		Refs:       opts.Refs,
		Tcmdrw:     opts.Tcmdrw,
		Speed:      opts.Speed,
		Props:      rconfig.SplitList(opts.Props),
	}
	if opts.XRound != "" {
		if r, err := rangespec.ParseRounding(opts.XRound); err == nil {
			cfg.XRound = r
		}
	}
	switch opts.RT {
	case "on":
		cfg.RT = reframer.RTOn
	case "sync":
		cfg.RT = reframer.RTSync
	default:
		cfg.RT = reframer.RTOff
	}
	for _, tok := range rconfig.SplitList(opts.SAPs) {
		var n int
		if _, err := fmt.Sscanf(tok, "%d", &n); err == nil {
			cfg.SAPs = append(cfg.SAPs, pidio.SAPClass(n))
		}
	}
	for _, tok := range rconfig.SplitList(opts.Frames) {
		var n int
		if _, err := fmt.Sscanf(tok, "%d", &n); err == nil {
			cfg.Frames = append(cfg.Frames, n)
		}
	}
	return cfg
}

// runRecorder fans engine events out to whichever of metrics/manifest are
// configured for this run, and tracks the per-chunk byte total the manifest
// schema wants but the core engine has no reason to know about.
type runRecorder struct {
	ctx     *reframer.Context
	metrics *metrics.Metrics
	mf      *manifest.Manifest
	bytes   int64
}

func newRunRecorder(ctx *reframer.Context, m *metrics.Metrics, mf *manifest.Manifest) *runRecorder {
	if m == nil && mf == nil {
		return nil
	}
	return &runRecorder{ctx: ctx, metrics: m, mf: mf}
}

func (r *runRecorder) PacketEmitted(stream string, bytes int) {
	if r.metrics != nil {
		r.metrics.PacketEmitted(stream, bytes)
	}
	r.bytes += int64(bytes)
}

func (r *runRecorder) PacketDropped(stream string) {
	if r.metrics != nil {
		r.metrics.PacketDropped(stream)
	}
}

func (r *runRecorder) ChunkEmitted(info reframer.ChunkInfo) {
	if r.metrics != nil {
		r.metrics.ChunkEmitted(info)
	}
	if r.mf != nil {
		startMS, endMS, _ := r.ctx.CurRangeMS()
		if err := r.mf.RecordChunk(manifest.ChunkRecord{
			FileNumber:  info.FileNumber,
			FileSuffix:  info.FileSuffix,
			StartMS:     startMS,
			EndMS:       endMS,
			ByteCount:   r.bytes,
			CompletedAt: time.Now(),
		}); err != nil {
			log.Printf("reframer: manifest: %v", err)
		}
	}
	r.bytes = 0
}

func (r *runRecorder) RescheduleRequested(us int64) {
	if r.metrics != nil {
		r.metrics.RescheduleRequested(us)
	}
}

func (r *runRecorder) QueueDepth(stream string, depth int) {
	if r.metrics != nil {
		r.metrics.QueueDepth(stream, depth)
	}
}

// wireSyntheticStreams registers a demo video+audio pair driven by
// internal/pidio/memio's synthetic generators, for running the engine
// without a real filter session or codec demuxer.
func wireSyntheticStreams(ctx *reframer.Context) {
	video := memio.BuildSyntheticVideo(memio.DefaultVideoOpts(250))
	audio := memio.BuildSyntheticAudio(memio.DefaultAudioOpts(250))

	ctx.AddStream(reframer.NewStream("video", video, memio.NewOutPid(), false))
	ctx.AddStream(reframer.NewStream("audio", audio, memio.NewOutPid(), true))
}
