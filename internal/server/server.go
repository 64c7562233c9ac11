package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/field-compass/internal/compass"
	"github.com/shaunagostinho/field-compass/internal/geo"
	"github.com/shaunagostinho/field-compass/internal/gps"
	"github.com/shaunagostinho/field-compass/internal/heading"
	"github.com/shaunagostinho/field-compass/internal/logger"
	"github.com/shaunagostinho/field-compass/internal/metrics"
	"github.com/shaunagostinho/field-compass/internal/nav"
	"github.com/shaunagostinho/field-compass/internal/publish"
	"github.com/shaunagostinho/field-compass/internal/targets"
)

// errStopped is returned once the event loop has exited.
var errStopped = errors.New("server: event loop stopped")

// arrivalVibration is the pattern (ms on, off, on) the UI plays on arrival.
var arrivalVibration = []int{200, 100, 200}

// Deps are the collaborators wired in by main. Nil providers disable the
// corresponding poller; the browser can still feed that sensor over /ws.
type Deps struct {
	GPS       gps.Provider
	Compass   compass.Provider
	Catalog   *targets.Catalog
	WebFS     fs.FS
	Metrics   *metrics.Collector
	Publisher publish.Publisher
}

// Server owns the navigation engine and exposes it over HTTP and
// WebSocket. All engine access happens on the event loop goroutine;
// everything else enqueues closures.
type Server struct {
	cfg         *Config
	gpsProv     gps.Provider
	compassProv compass.Provider
	catalog     *targets.Catalog
	webFS       fs.FS
	logger      *logger.Logger
	metrics     *metrics.Collector
	pub         publish.Publisher

	engine  *nav.Engine
	events  chan func(*nav.Engine)
	stopped chan struct{}   // closed when the event loop exits
	runCtx  context.Context // set by Run; websocket readers enqueue under it
	arrival *nav.Arrival // set by the engine hook, consumed after each step

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	// Latest frame, for HTTP polling.
	snapMu sync.RWMutex
	snap   Frame
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Readout *nav.Readout     `json:"readout,omitempty"`
	Arrived *ArrivalData     `json:"arrived,omitempty"`
	Target  *nav.Target      `json:"target,omitempty"`
	Fix     *nav.PositionFix `json:"fix,omitempty"`
	Stamp   int64            `json:"stamp"` // Unix ms
}

// ArrivalData is an arrival event plus the vibration pattern to play.
type ArrivalData struct {
	nav.Arrival
	Vibrate []int `json:"vibrate"`
}

// clientMessage is what the browser sends over /ws.
type clientMessage struct {
	Type string `json:"type"` // "position", "orientation" or "target"

	// position
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Accuracy float64  `json:"accuracy,omitempty"`

	// orientation
	heading.Event

	// target
	ID   string `json:"id,omitempty"`
	Move string `json:"move,omitempty"` // "first", "last", "next", "prev"
}

// New creates a new Server.
func New(cfg *Config, deps Deps) *Server {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = targets.Empty()
	}
	pub := deps.Publisher
	if pub == nil {
		pub = publish.Nop{}
	}

	s := &Server{
		cfg:         cfg,
		gpsProv:     deps.GPS,
		compassProv: deps.Compass,
		catalog:     catalog,
		webFS:       deps.WebFS,
		logger:      logger.New(cfg.Logging),
		metrics:     deps.Metrics,
		pub:         pub,
		engine:      nav.NewEngine(cfg.Nav.Config),
		events:      make(chan func(*nav.Engine), 256),
		stopped:     make(chan struct{}),
		runCtx:      context.Background(),
		clients:     make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.engine.OnArrived(func(a nav.Arrival) {
		log.Printf("[nav] arrived at %s (%.1f m)", a.Target.Label, a.DistanceMeters)
		s.arrival = &a
		s.metrics.ObserveArrival()
		s.pub.PublishArrival(a)
	})
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/readout", s.handleReadout)
	mux.HandleFunc("/api/targets", s.handleTargets)
	mux.HandleFunc("/api/target", s.handleTarget)
	mux.HandleFunc("/api/nav/stop", s.handleStop)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Run starts the event loop, sensor pollers and the HTTP server.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx
	go s.loop(ctx)
	if s.gpsProv != nil {
		go s.pollGPS(ctx)
	}
	if s.compassProv != nil {
		go s.pollCompass(ctx)
	}

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// loop is the only goroutine touching the engine.
func (s *Server) loop(ctx context.Context) {
	tickMs := s.cfg.Nav.TickMs
	if tickMs <= 0 {
		tickMs = 500
	}
	ticker := time.NewTicker(time.Duration(tickMs) * time.Millisecond)
	defer ticker.Stop()
	defer close(s.stopped)
	defer s.logger.Close()
	defer s.pub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.events:
			s.step(fn)
		case <-ticker.C:
			s.step(func(e *nav.Engine) { e.Tick() })
			if r, ok := s.engine.CurrentReadout(); ok {
				s.pub.PublishReadout(r)
			}
		}
	}
}

// step runs fn against the engine, then publishes the resulting frame.
func (s *Server) step(fn func(*nav.Engine)) {
	fn(s.engine)

	frame := Frame{Stamp: time.Now().UnixMilli()}
	if t, ok := s.engine.Target(); ok {
		frame.Target = &t
	}
	if fix, ok := s.engine.Position(); ok {
		frame.Fix = &fix
	}
	if r, ok := s.engine.CurrentReadout(); ok {
		frame.Readout = &r
		s.metrics.ObserveReadout(r)
	}
	arrived := s.arrival != nil
	if arrived {
		frame.Arrived = &ArrivalData{Arrival: *s.arrival, Vibrate: arrivalVibration}
		s.arrival = nil
	}

	if frame.Readout != nil && frame.Target != nil && frame.Fix != nil {
		s.logger.Record(*frame.Target, *frame.Fix, *frame.Readout, arrived)
	}

	s.snapMu.Lock()
	s.snap = frame
	s.snapMu.Unlock()

	s.broadcast(frame)
}

// enqueue hands fn to the event loop. It gives up when ctx ends or the
// loop has exited.
func (s *Server) enqueue(ctx context.Context, fn func(*nav.Engine)) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-ctx.Done():
		return false
	case <-s.stopped:
		return false
	}
}

// call runs fn on the event loop and waits for it to finish.
func (s *Server) call(ctx context.Context, fn func(*nav.Engine)) error {
	done := make(chan struct{})
	if !s.enqueue(ctx, func(e *nav.Engine) {
		defer close(done)
		fn(e)
	}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return errStopped
	}
}

func (s *Server) snapshot() Frame {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// pollGPS feeds fixes from the hardware receiver into the engine.
func (s *Server) pollGPS(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var last time.Time
	quiet := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := s.gpsProv.Read()
			switch {
			case errors.Is(err, gps.ErrNoData):
				if !quiet {
					log.Printf("[gps] receiver went quiet")
					quiet = true
				}
				continue
			case errors.Is(err, gps.ErrNotConnected):
				continue
			case err != nil:
				log.Printf("[gps] read error: %v", err)
				continue
			}
			if quiet {
				log.Printf("[gps] receiver talking again")
				quiet = false
			}
			fix, ok := data.Fix()
			if !ok || fix.Time.Equal(last) {
				continue
			}
			last = fix.Time
			s.metrics.ObserveFix("gps", fix)
			s.enqueue(ctx, func(e *nav.Engine) { e.OnPositionUpdate(fix) })
		}
	}
}

// pollCompass feeds samples from the hardware compass into the heading
// filter.
func (s *Server) pollCompass(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	quiet := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := s.compassProv.Read()
			switch {
			case errors.Is(err, compass.ErrNoSample):
				if !quiet {
					log.Printf("[compass] no heading sentences")
					quiet = true
				}
				continue
			case errors.Is(err, compass.ErrNotConnected):
				continue
			case err != nil:
				log.Printf("[compass] read error: %v", err)
				continue
			}
			if quiet {
				log.Printf("[compass] heading sentences resumed")
				quiet = false
			}
			s.enqueue(ctx, func(e *nav.Engine) {
				s.metrics.ObserveSample("compass", e.OnOrientationSample(sample))
			})
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.metrics.SetClients(n)

	log.Printf("[ws] client connected (%d total)", n)

	// Send the latest state straight away
	if data, err := json.Marshal(s.snapshot()); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine: sensor samples and target selection from the browser
	ctx := s.runCtx
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			n := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.metrics.SetClients(n)
			log.Printf("[ws] client disconnected (%d total)", n)
			if n == 0 {
				s.enqueue(ctx, func(e *nav.Engine) { e.Deactivate() })
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleClientMessage(ctx, data)
		}
	}()
}

func (s *Server) handleClientMessage(ctx context.Context, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[ws] bad message: %v", err)
		return
	}

	switch msg.Type {
	case "position":
		if msg.Lat == nil || msg.Lon == nil {
			return
		}
		fix := nav.PositionFix{
			Point:          geo.Point{Latitude: *msg.Lat, Longitude: *msg.Lon},
			AccuracyMeters: msg.Accuracy,
			Time:           time.Now().UTC(),
		}
		s.metrics.ObserveFix("browser", fix)
		s.enqueue(ctx, func(e *nav.Engine) { e.OnPositionUpdate(fix) })

	case "orientation":
		sample := heading.FromEvent(msg.Event)
		s.enqueue(ctx, func(e *nav.Engine) {
			s.metrics.ObserveSample("browser", e.OnOrientationSample(sample))
		})

	case "target":
		if err := s.selectTarget(ctx, msg.ID, msg.Move); err != nil {
			log.Printf("[ws] select target: %v", err)
		}

	default:
		log.Printf("[ws] unknown message type %q", msg.Type)
	}
}

// selectTarget resolves id (or a move relative to the current target)
// against the catalog and hands it to the engine. An empty id with no move
// clears the selection.
func (s *Server) selectTarget(ctx context.Context, id, move string) error {
	if id == "" && move == "" {
		return s.call(ctx, func(e *nav.Engine) { e.SetTarget(nil) })
	}

	var lookupErr error
	err := s.call(ctx, func(e *nav.Engine) {
		var t nav.Target
		if move != "" {
			cur, _ := e.Target()
			t, lookupErr = s.catalog.Step(cur.ID, move)
		} else {
			t, lookupErr = s.catalog.Find(id)
		}
		if lookupErr != nil {
			return
		}
		log.Printf("[nav] target %s (%s)", t.ID, t.Label)
		e.SetTarget(&t)
	})
	if err != nil {
		return err
	}
	return lookupErr
}

func (s *Server) handleReadout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	frame := s.snapshot()
	if frame.Readout == nil {
		http.Error(w, "no readout yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, frame)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{"surveys": s.catalog.Surveys()})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID   string `json:"id"`
		Move string `json:"move"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err := s.selectTarget(r.Context(), req.ID, req.Move)
	switch {
	case errors.Is(err, targets.ErrNotFound), errors.Is(err, targets.ErrNoOpenSurvey):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.call(r.Context(), func(e *nav.Engine) { e.Deactivate() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		// Logging can be toggled live; sensor and engine settings apply on restart.
		s.logger.SetEnabled(s.cfg.LoggingEnabled())

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
