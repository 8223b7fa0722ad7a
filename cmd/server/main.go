package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quantumhub.game/internal/hub"
	"quantumhub.game/internal/hub/layout"
	"quantumhub.game/internal/hub/tuning"
	"quantumhub.game/internal/persistence/journeylog"
	"quantumhub.game/internal/persistence/profiledb"
	"quantumhub.game/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the profile database (progress stays in memory)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	lp := strings.TrimSpace(*layoutPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "layout.yaml")
	}
	lay, err := layout.Load(lp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("layout not found (%s); using defaults", lp)
			lay = layout.Defaults()
		} else {
			logger.Fatalf("load layout: %v", err)
		}
	}

	registry, err := hub.NewRegistry(lay.Portals)
	if err != nil {
		logger.Fatalf("portal registry: %v", err)
	}

	h := hub.New(hub.Config{
		TickRateHz:      tune.TickRateHz,
		SelectRadius:    tune.SelectRadius,
		ArmRadius:       tune.ArmRadius,
		DwellDuration:   tune.DwellDuration(),
		MoveSpeed:       tune.MoveSpeed,
		BoundaryR:       tune.BoundaryR,
		TransitionTicks: uint64(tune.TransitionTicks),
		Rooms:           tune.Rooms,
	}, registry, logger)

	_ = os.MkdirAll(*dataDir, 0o755)

	var profiles *profiledb.Store
	if !*disableDB {
		profiles, err = profiledb.Open(filepath.Join(*dataDir, "profiles.db"))
		if err != nil {
			logger.Fatalf("open profile db: %v", err)
		}
		defer profiles.Close()
		h.SetProfileStore(profiles)
	} else {
		logger.Printf("profile db disabled; progress is process-local")
	}

	journey := journeylog.New(*dataDir)
	h.SetJourneyLogger(multiJourneyLogger{a: journey, b: profiles})

	mirror, err := setupLogMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("log mirror: %v", err)
	}
	if mirror != nil {
		journey.SetOnSeal(mirror.Enqueue)
	}
	// Closing the journey log seals the last hour file, which may enqueue one
	// final upload; the mirror drains after.
	defer mirror.Close()
	defer journey.Close()

	ctx, cancel := signalContext()
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := h.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("hub stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := h.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP quantumhub_tick Current hub tick.\n")
		fmt.Fprintf(rw, "# TYPE quantumhub_tick gauge\n")
		fmt.Fprintf(rw, "quantumhub_tick %d\n", m.Tick)

		fmt.Fprintf(rw, "# HELP quantumhub_sessions Current number of connected sessions.\n")
		fmt.Fprintf(rw, "# TYPE quantumhub_sessions gauge\n")
		fmt.Fprintf(rw, "quantumhub_sessions %d\n", m.Sessions)

		fmt.Fprintf(rw, "# HELP quantumhub_navigations_total Total navigations requested.\n")
		fmt.Fprintf(rw, "# TYPE quantumhub_navigations_total counter\n")
		fmt.Fprintf(rw, "quantumhub_navigations_total %d\n", m.Navigations)

		fmt.Fprintf(rw, "# HELP quantumhub_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE quantumhub_step_ms gauge\n")
		fmt.Fprintf(rw, "quantumhub_step_ms %.3f\n", m.StepMS)

		fmt.Fprintf(rw, "# HELP quantumhub_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE quantumhub_queue_depth gauge\n")
		fmt.Fprintf(rw, "quantumhub_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "quantumhub_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "quantumhub_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)
	})

	// Local-only admin endpoints: the host application's imperative progress
	// surface.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Tick    uint64      `json:"tick"`
			Metrics hub.Metrics `json:"metrics"`
		}{
			Tick:    h.CurrentTick(),
			Metrics: h.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/rooms/complete", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			SessionID string `json:"session_id"`
			RoomID    string `json:"room_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" || body.RoomID == "" {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		if err := h.CompleteRoom(ctx2, body.SessionID, body.RoomID); err != nil {
			writeAdminError(rw, err)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})
	mux.HandleFunc("/admin/v1/progress", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			SessionID      string    `json:"session_id"`
			CompletedRooms *[]string `json:"completed_rooms,omitempty"`
			CurrentQuest   *string   `json:"current_quest,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		patch := hub.ProgressPatch{CurrentQuest: body.CurrentQuest}
		if body.CompletedRooms != nil {
			patch.CompletedRooms = *body.CompletedRooms
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		if err := h.UpdateProgress(ctx2, body.SessionID, patch); err != nil {
			writeAdminError(rw, err)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/v1/ws", ws.NewServer(h, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Stop the hub loop before the deferred stores close underneath it.
	cancel()
	<-hubDone
}

func writeAdminError(rw http.ResponseWriter, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// multiJourneyLogger fans journey entries out to the JSONL log and, when the
// profile db is enabled, the navigation index.
type multiJourneyLogger struct {
	a hub.JourneyLogger
	b *profiledb.Store
}

func (m multiJourneyLogger) WriteJourney(e hub.JourneyEntry) error {
	if m.a != nil {
		_ = m.a.WriteJourney(e)
	}
	if m.b != nil {
		_ = m.b.WriteJourney(e)
	}
	return nil
}
