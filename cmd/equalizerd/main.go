package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/config"
	"github.com/marselab/equalizerd/internal/engine"
	"github.com/marselab/equalizerd/internal/eq"
	"github.com/marselab/equalizerd/internal/identity"
	"github.com/marselab/equalizerd/internal/meter"
	"github.com/marselab/equalizerd/internal/session"
	"github.com/marselab/equalizerd/internal/store"
	"github.com/marselab/equalizerd/internal/stream"
	"github.com/marselab/equalizerd/internal/web"
)

// framesPerSecond at the engine's 20ms frame rate.
const framesPerSecond = 50

func main() {
	cfg := config.Load()

	log := buildLogger(cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Infow("equalizerd starting up")

	// Gain store
	client := store.NewClient(cfg.StoreURL, cfg.StoreAPIKey, log)
	healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Minute)
	defer healthCancel()
	if err := client.WaitForHealthy(healthCtx); err != nil {
		log.Fatalw("gain store not available", "url", cfg.StoreURL, "error", err)
	}
	gateway := store.NewGateway(client, log)
	defer gateway.Close()

	// OAuth token verifier (optional -- empty URL disables provider sign-in)
	var verifier *identity.TokenVerifier
	if cfg.VerifierURL != "" {
		verifier = identity.NewTokenVerifier(cfg.VerifierURL, log)
		readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
		if verifier.WaitForReady(readyCtx) {
			log.Infow("token verifier connected", "url", cfg.VerifierURL)
		} else {
			log.Warnw("token verifier not responding, provider sign-in may fail")
		}
		readyCancel()
	} else {
		log.Infow("no token verifier configured (set EQD_VERIFIER_URL to enable provider sign-in)")
	}

	ids := identity.NewManager(verifier, log)
	coord := session.NewCoordinator(log)
	ids.SetTransitionFunc(coord.HandleTransition)

	// Noise meter, fed every processed frame
	noise := meter.New(cfg.MeterWindowSec * framesPerSecond)

	// Audio graph
	layout := engine.LayoutStereo
	if cfg.Layout == "mono" {
		layout = engine.LayoutMono
	}
	eng := engine.New(engine.Config{
		ClipPath:      cfg.ClipPath,
		CaptureFormat: cfg.CaptureFormat,
		CaptureDevice: cfg.CaptureDevice,
		Layout:        layout,
	}, noise, log)
	go eng.Run(ctx)

	// Broadcaster: fan-out processed frames to all monitor listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, eng.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, log)

	sess := session.New(ids, eng, gateway, log)

	// HTTP routes
	mux := http.NewServeMux()

	// Web UI
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	// Monitor streams
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, log))
	mux.Handle("/offer", webrtcHandler)

	// Accounts
	mux.HandleFunc("/api/signup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req credentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		u, err := ids.SignUp(r.Context(), req.Email, req.Password)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "user": u.ID})
	})

	mux.HandleFunc("/api/signin", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req credentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		u, err := ids.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "user": u.ID})
	})

	mux.HandleFunc("/api/signin/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		u, err := ids.SignInWithToken(r.Context(), req.Token)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "user": u.ID})
	})

	mux.HandleFunc("/api/signout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		// Snapshot the current gains before the session goes away.
		if err := sess.Detach(); err != nil && !errors.Is(err, identity.ErrNotSignedIn) {
			log.Warnw("detach on sign-out failed", "error", err)
		}
		ids.SignOut()
		writeJSON(w, map[string]any{"ok": true})
	})

	// Equalizer session lifecycle
	mux.HandleFunc("/api/session/attach", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := sess.Attach(r.Context()); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "gains": eng.Gains()})
	})

	mux.HandleFunc("/api/session/detach", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := sess.Detach(); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	})

	// Equalizer controls
	mux.HandleFunc("/api/eq", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]any{"gains": eng.Gains()})
		case http.MethodPost:
			var req struct {
				Gains eq.GainVector `json:"gains"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}
			if err := eng.ApplyVector(req.Gains); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, map[string]any{"ok": true, "gains": eng.Gains()})
		default:
			http.Error(w, "GET or POST required", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/eq/band", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Channel int     `json:"channel"`
			Band    int     `json:"band"`
			Gain    float64 `json:"gain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Channel != int(eq.ChannelA) && req.Channel != int(eq.ChannelB) {
			http.Error(w, "channel must be 0 or 1", http.StatusBadRequest)
			return
		}
		if err := eng.SetBandGain(eq.Channel(req.Channel), req.Band, req.Gain); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g, _ := eng.BandGain(eq.Channel(req.Channel), req.Band)
		writeJSON(w, map[string]any{"ok": true, "gain": g})
	})

	// Transport
	mux.HandleFunc("/api/transport/toggle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		state := eng.Transport().Toggle()
		writeJSON(w, map[string]any{"ok": true, "state": state})
	})

	// Noise meter
	mux.HandleFunc("/api/meter", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, noise.Reading())
	})

	mux.HandleFunc("/api/meter/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		noise.Reset()
		writeJSON(w, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/meter/spectrum", func(w http.ResponseWriter, r *http.Request) {
		bins := 32
		if v := r.URL.Query().Get("bins"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				bins = n
			}
		}
		writeJSON(w, map[string]any{"bins": noise.Spectrum(bins)})
	})

	// Status
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		var storeErr string
		if err := gateway.LastError(); err != nil {
			storeErr = err.Error()
		}
		writeJSON(w, map[string]any{
			"screen":         coord.Screen().String(),
			"engine":         eng.Status(),
			"gains":          eng.Gains(),
			"meter":          noise.Reading(),
			"http_listeners": broadcaster.ListenerCount(),
			"webrtc_peers":   webrtcHandler.PeerCount(),
			"store_error":    storeErr,
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Infow("shutting down")
		server.Close()
	}()

	log.Infow("equalizerd live", "addr", addr, "layout", layout)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalw("http server error", "error", err)
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func buildLogger(level string) *zap.SugaredLogger {
	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger.Sugar()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(v)
}

// writeAuthError maps identity and persistence failures onto HTTP codes.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrCancelled),
		errors.Is(err, identity.ErrNotSignedIn):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, identity.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, eq.ErrBadVectorLength):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
