package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// server is the xApp management HTTP surface: health, JSON configuration,
// runtime log level and Prometheus metrics.
type server struct {
	config configFile
	// reload is called after a successful config write; Run wires it to a
	// graceful shutdown so the supervisor restarts the xApp with the new
	// configuration.
	reload func()
}

func newServer(configPath string, reload func()) *server {
	return &server{config: configFile{path: configPath}, reload: reload}
}

func (s *server) router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/config", s.handleGetConfig)
	r.Put("/config", s.handleSetConfig)
	r.Patch("/config", s.handleUpdateConfig)
	r.Put("/log/{level}", s.handleSetLogLevel)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("Alive"))
}

func (s *server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.config.load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg)
}

func (s *server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := decodeConfigBody(w, r)
	if !ok {
		return
	}
	if err := s.config.store(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg)
	s.reload()
}

func (s *server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	updates, ok := decodeConfigBody(w, r)
	if !ok {
		return
	}
	cfg, err := s.config.load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	merge(cfg, updates)
	if err := s.config.store(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg)
	s.reload()
}

func (s *server) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	level, err := zerolog.ParseLevel(strings.ToLower(chi.URLParam(r, "level")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prev := zerolog.GlobalLevel()
	if level == prev {
		fmt.Fprintf(w, "Log level is already %s", prev)
		return
	}
	zerolog.SetGlobalLevel(level)
	log.Info().Stringer("from", prev).Stringer("to", level).Msg("log level changed")
	fmt.Fprintf(w, "Log level set to %s from %s", level, prev)
}

// decodeConfigBody reads the {"config": {...}} request envelope. A false
// return means the error response is already written.
func decodeConfigBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body struct {
		Config *map[string]any `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return nil, false
	}
	if body.Config == nil {
		writeError(w, http.StatusBadRequest, "missing required 'config' param")
		return nil, false
	}
	return *body.Config, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": msg,
	})
}
