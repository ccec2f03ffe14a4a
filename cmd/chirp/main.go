// Command chirp decodes the radar's UART frame stream from a serial port or a
// raw capture file and logs a one-line summary per frame.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/chirp/internal/chirp"
	"github.com/banshee-data/chirp/internal/config"
	"github.com/banshee-data/chirp/internal/metrics"
	"github.com/banshee-data/chirp/internal/monitoring"
	"github.com/banshee-data/chirp/internal/serialmux"
	"github.com/banshee-data/chirp/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	configPath  = flag.String("config", "", "Path to a decoder JSON config (see config/chirp.defaults.json)")
	portPath    = flag.String("port", "", "Serial data port, overrides serial_port")
	baudRate    = flag.Int("baud", 0, "Baud rate, overrides baud_rate")
	replayFile  = flag.String("file", "", "Replay a raw capture file instead of opening a serial port")
	chunkSize   = flag.Int("chunk", 0, "Bytes per read, overrides read_buffer_bytes")
	selfTest    = flag.Bool("self-test", false, "Encode and decode a synthetic frame, then exit")
	frameCount  = flag.Int("count", 0, "Stop after this many logged frames (0 = unlimited)")
	typeFilter  = flag.String("filter", "", "Only log frames carrying this TLV type, by name or code (e.g. PHASE_OUTPUT, 0x0520)")
	listen      = flag.String("listen", "", "Serve /metrics and /debug/ on this address, overrides listen_addr")
	debug       = flag.Bool("debug", false, "Log resyncs, compactions and dropped payloads")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *selfTest {
		if err := runSelfTest(); err != nil {
			log.Fatalf("self-test failed: %v", err)
		}
		log.Print("self-test passed")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := runOptions{
		replayFile: *replayFile,
		chunkSize:  *chunkSize,
		count:      *frameCount,
	}
	if *typeFilter != "" {
		t, err := chirp.ParseTLVType(*typeFilter)
		if err != nil {
			log.Fatalf("invalid -filter: %v", err)
		}
		opts.filter = &t
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("chirp: %v", err)
	}
}

// loadConfig reads -config, or config/chirp.defaults.json when -config is not
// given, and applies the flag overrides.
func loadConfig() (*config.DecoderConfig, error) {
	var (
		cfg *config.DecoderConfig
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadDecoderConfig(*configPath)
	} else {
		cfg, err = config.LoadDefaultDecoderConfig()
	}
	if err != nil {
		return nil, err
	}
	if *portPath != "" {
		cfg.SerialPort = portPath
	}
	if *baudRate != 0 {
		cfg.BaudRate = baudRate
	}
	if *listen != "" {
		cfg.ListenAddr = listen
	}
	if *debug {
		cfg.Debug = debug
	}
	return cfg, cfg.Validate()
}

type runOptions struct {
	ports      serialmux.SerialPortFactory // nil opens hardware ports
	replayFile string
	chunkSize  int
	count      int
	filter     *chirp.TLVType
}

// run decodes frames until the source is exhausted, the frame count is
// reached or ctx is cancelled.
func run(ctx context.Context, cfg *config.DecoderConfig, opts runOptions) error {
	monitoring.SetDebug(cfg.GetDebug())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	logger := newFrameLogger(opts.filter, opts.count, cancel)
	muxOpts := append(cfg.MuxOptions(),
		serialmux.WithParser(chirp.NewParser(cfg.ParserOptions()...)),
		serialmux.WithObserver(m),
		serialmux.WithObserver(logger),
		serialmux.WithReadBufferSize(opts.chunkSize),
	)

	frames, err := openSource(cfg, opts, muxOpts)
	if err != nil {
		return err
	}
	defer frames.Close()

	var wg sync.WaitGroup
	if addr := cfg.GetListenAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		frames.AttachAdminRoutes(mux)

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, addr, mux)
		}()
	}

	err = frames.Monitor(ctx)
	cancel()
	wg.Wait()

	st := frames.Stats().Parser
	monitoring.Logf("decoded %d frames (%d logged) from %d bytes, %d resyncs, %d bytes discarded",
		st.FramesEmitted, logger.Logged(), st.BytesFed, st.Resyncs, st.BytesDiscarded)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openSource returns a FrameMux over the replay file, or over the configured
// serial port when no file is given.
func openSource(cfg *config.DecoderConfig, opts runOptions, muxOpts []serialmux.Option) (serialmux.FrameMuxInterface, error) {
	if opts.replayFile != "" {
		f, err := os.Open(opts.replayFile)
		if err != nil {
			return nil, fmt.Errorf("open capture: %w", err)
		}
		monitoring.Logf("replaying %s", opts.replayFile)
		return serialmux.NewFrameMux(f, muxOpts...), nil
	}

	ports := opts.ports
	if ports == nil {
		ports = serialmux.NewRealSerialPortFactory()
	}
	portOpts := cfg.PortOptions()
	frames, err := serialmux.OpenFrameMux(ports, cfg.GetSerialPort(), portOpts, cfg.GetReadTimeout(), muxOpts...)
	if err != nil {
		return nil, err
	}
	portOpts, _ = portOpts.Normalize()
	monitoring.Logf("reading %s at %d baud", cfg.GetSerialPort(), portOpts.BaudRate)
	return frames, nil
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		server.Close()
	}
}

// frameLogger logs frame summaries on the monitor goroutine, so replaying a
// capture never drops frames the way a slow subscriber would.
type frameLogger struct {
	filter *chirp.TLVType
	limit  int
	done   func()

	mu     sync.Mutex
	logged int
}

func newFrameLogger(filter *chirp.TLVType, limit int, done func()) *frameLogger {
	return &frameLogger{filter: filter, limit: limit, done: done}
}

func (l *frameLogger) ObserveFrame(f chirp.ParsedFrame) {
	if l.filter != nil && !f.Has(*l.filter) {
		return
	}

	l.mu.Lock()
	if l.limit > 0 && l.logged >= l.limit {
		l.mu.Unlock()
		return
	}
	l.logged++
	reached := l.limit > 0 && l.logged == l.limit
	l.mu.Unlock()

	monitoring.Logf("%s", f.Summarize())
	if reached {
		l.done()
	}
}

func (l *frameLogger) ObserveStats(chirp.Stats, int) {}

// Logged returns the number of frames logged so far.
func (l *frameLogger) Logged() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logged
}

// runSelfTest encodes two frames, feeds them through a parser in small
// fragments between CLI echo and a partial marker, and checks the decoded
// I/Q samples and presence payloads.
func runSelfTest() error {
	fft := chirp.ComplexRangeFFT{NumRangeBins: 16, ChirpIndex: 3, RxAntenna: 1}
	for i := range 16 {
		fft.Bins = append(fft.Bins, chirp.ComplexSample{Imag: int16(100 * i), Real: int16(-50 * i)})
	}
	presence := chirp.Presence{State: chirp.PresencePresent, Confidence: 87, RangeQ8: 640, TargetBin: 12}

	b := chirp.FrameBuilder{Version: 0x03060200, FrameNumber: 1}
	if _, err := b.AddPayload(fft); err != nil {
		return err
	}
	if _, err := b.AddPayload(presence); err != nil {
		return err
	}
	second := chirp.FrameBuilder{Version: 0x03060200, FrameNumber: 2}
	if _, err := second.AddPayload(presence); err != nil {
		return err
	}

	var stream bytes.Buffer
	stream.WriteString("mmwDemo:/>sensorStart\r\nDone\r\n")
	stream.Write(b.Bytes())
	stream.Write([]byte{0x02, 0x01, 0x04, 0x03, 0xFF}) // partial marker
	stream.Write(second.Bytes())

	p := chirp.NewParser()
	var got []chirp.ParsedFrame
	data := stream.Bytes()
	for len(data) > 0 {
		n := min(7, len(data))
		p.Feed(data[:n])
		data = data[n:]
		for f := range p.Drain() {
			got = append(got, f)
		}
	}

	if len(got) != 2 {
		return fmt.Errorf("decoded %d frames, want 2", len(got))
	}
	gotFFT, ok := got[0].ComplexRangeFFT()
	if !ok {
		return errors.New("frame 1: no complex range FFT payload")
	}
	if len(gotFFT.Bins) != len(fft.Bins) {
		return fmt.Errorf("frame 1: decoded %d bins, want %d", len(gotFFT.Bins), len(fft.Bins))
	}
	for i, s := range gotFFT.Bins {
		if s != fft.Bins[i] {
			return fmt.Errorf("frame 1 bin %d: got %+v, want %+v", i, s, fft.Bins[i])
		}
	}
	for i, f := range got {
		pr, ok := f.Presence()
		if !ok || pr != presence {
			return fmt.Errorf("frame %d: presence %+v, want %+v", i+1, pr, presence)
		}
	}
	if got[1].Header.FrameNumber != 2 {
		return fmt.Errorf("frame 2: frame number %d", got[1].Header.FrameNumber)
	}
	return nil
}
