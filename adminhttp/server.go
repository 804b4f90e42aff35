// Package adminhttp is the read-only admin observer: a separate
// GET-only HTTP port exposing JSON views plus a force-backup and a
// remove-combatant command.
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/adminhttp/inspect"
	"github.com/jacobwpeng/sectbattled/backup"
	"github.com/jacobwpeng/sectbattled/coop"
	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/types"
)

// Server wires the engine.State and the backup routine to an HTTP
// router. It never mutates state except via the force-backup and
// remove-player admin commands. Force-backup runs through the same
// coop.Runner the periodic backup trigger uses, so an admin-initiated
// attempt and a tick-triggered one can never run concurrently.
type Server struct {
	State   *engine.State
	Backup  *backup.Routine
	Runner  *coop.Runner
	Log     log.Logger
	Router  chi.Router
}

func New(state *engine.State, routine *backup.Routine, runner *coop.Runner, logger log.Logger) *Server {
	s := &Server{State: state, Backup: routine, Runner: runner, Log: logger}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{http.MethodGet}}))
	r.Get("/status", s.handleStatus)
	r.Get("/field", s.handleField)
	r.Get("/player", s.handlePlayer)
	r.Get("/sect", s.handleSect)
	r.Get("/forcebackup", s.handleForceBackup)
	r.Get("/removeplayer", s.handleRemovePlayer)
	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.Router.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func usage400(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func notFound404(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, inspect.ServerStatus(s.State))
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil || x < 0 || x > types.MaxPos || y < 0 || y > types.MaxPos {
		usage400(w, "x and y must be integers in [0,9]")
		return
	}
	field, ok := inspect.FieldStatus(s.State, types.NewPos(int16(x), int16(y)))
	if !ok {
		notFound404(w)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	uin, err := strconv.ParseUint(r.URL.Query().Get("uin"), 10, 32)
	if err != nil {
		usage400(w, "uin must be a positive integer")
		return
	}
	player, ok := inspect.PlayerStatus(s.State, types.UinType(uin))
	if !ok {
		notFound404(w)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (s *Server) handleSect(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(r.URL.Query().Get("type"))
	if err != nil || !types.IsValidSectType(v) {
		usage400(w, "type must be a sect id in [1,8]")
		return
	}
	sect, ok := inspect.SectStatus(s.State, types.SectType(v))
	if !ok {
		notFound404(w)
		return
	}
	writeJSON(w, http.StatusOK, sect)
}

func (s *Server) handleForceBackup(w http.ResponseWriter, r *http.Request) {
	ran, err := s.Runner.RunExclusive(r.Context(), s.Backup.Run)
	if !ran {
		writeJSON(w, http.StatusOK, map[string]string{"result": "busy"})
		return
	}
	if err != nil {
		s.Log.Warn("admin: force backup failed", "err", err)
		writeJSON(w, http.StatusOK, map[string]string{"result": "failed", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *Server) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	uin, err := strconv.ParseUint(r.URL.Query().Get("uin"), 10, 32)
	if err != nil {
		usage400(w, "uin must be a positive integer")
		return
	}
	if _, ok := s.State.Combatant(types.UinType(uin)); !ok {
		notFound404(w)
		return
	}
	if err := s.State.RemoveCombatant(types.UinType(uin)); err != nil {
		s.Log.Error("admin: remove player failed", "uin", uin, "err", err)
		usage400(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// Serve starts an HTTP server bound to addr, shutting down when ctx is
// canceled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger log.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("adminhttp: server exited", "err", err)
			return err
		}
		return nil
	}
}
