package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"gridmind/internal/balance"
	"gridmind/internal/config"
	"gridmind/internal/events"
	"gridmind/internal/game"
	"gridmind/internal/metrics"
)

type contextKey string

const entityContextKey contextKey = "entity"

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	game *game.Service
	hub  *events.Hub
	mux  *chi.Mux

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service, hub *events.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		game:     gameSvc,
		hub:      hub,
		mux:      chi.NewRouter(),
		limiters: map[string]*rate.Limiter{},
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Entity-ID"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/players", s.handleRegister)
		r.Get("/world/modifier", s.handleModifier)
		r.Get("/world/topology", s.handleTopology)

		r.Group(func(r chi.Router) {
			r.Use(s.entityMiddleware)
			r.Get("/players/me", s.handlePlayerState)
			r.Get("/players/me/modules", s.handleModulesList)
			r.Get("/players/me/traits", s.handleTraits)
			r.Get("/players/me/combat-log", s.handleCombatHistory)
			r.Get("/players/me/stats/{purpose}", s.handleStats)

			r.Post("/maintenance/scan", s.handleScan)
			r.Post("/maintenance/repair", s.handleRepair)
			r.Post("/maintenance/guardian", s.handleGuardian)

			r.Post("/infiltration/scan", s.handleInfiltrationScan)
			r.Post("/infiltration/hack", s.handleHack)

			r.Post("/modules/purchase", s.handlePurchase)
			r.Post("/modules/upgrade", s.handleUpgrade)
			r.Post("/modules/mutate", s.handleMutate)
			r.Post("/loadouts/assign", s.handleAssignLoadout)
			r.Post("/loadouts/clear", s.handleClearLoadout)

			r.Post("/buffs/activate", s.handleActivateBuff)

			r.Post("/arena/enter", s.handleArenaEnter)
			r.Post("/arena/leave", s.handleArenaLeave)
			r.Get("/arena/opponents", s.handleOpponents)
			r.Post("/arena/attack", s.handleAttack)
		})
	})
}

// entityMiddleware trusts the upstream session layer and only validates the
// shape of the forwarded entity id. Wallet auth itself lives outside this
// service.
func (s *Server) entityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Entity-ID"))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Entity-ID header")
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, http.StatusUnauthorized, "malformed entity id")
			return
		}
		ctx := context.WithValue(r.Context(), entityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func entityFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(entityContextKey).(string)
	if !ok || id == "" {
		return "", errors.New("missing entity context")
	}
	return id, nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.limiterMu.Lock()
		lim, ok := s.limiters[r.RemoteAddr]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(s.cfg.RateLimitPerSec), s.cfg.RateLimitBurst)
			s.limiters[r.RemoteAddr] = lim
		}
		s.limiterMu.Unlock()
		if !lim.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		WalletAddress string `json:"wallet_address"`
		AIName        string `json:"ai_name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, grant, err := s.game.Register(r.Context(), in.WalletAddress, in.AIName)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"player": state, "rebirth": grant})
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.PlayerState(r.Context(), id)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleModulesList(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.PlayerModules(r.Context(), id)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) handleTraits(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.PlayerTraits(r.Context(), id)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"traits": out})
}

func (s *Server) handleCombatHistory(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.game.CombatHistory(r.Context(), id, limit)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"combat_log": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	purpose := game.LoadoutPurpose(chi.URLParam(r, "purpose"))
	out, err := s.game.ResolveStats(r.Context(), id, purpose)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.FullScan(r.Context(), id)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		System string `json:"system"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.RepairSystem(r.Context(), id, balance.SystemType(in.System))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGuardian(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		DurationMinutes int `json:"duration_minutes"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = 60
	}
	if err := s.game.DeployGuardian(r.Context(), id, time.Duration(in.DurationMinutes)*time.Minute); err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleInfiltrationScan(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.ScanTargets(r.Context(), id)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHack(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		TargetIndex int `json:"target_index"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ExecuteHack(r.Context(), id, in.TargetIndex)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ModuleID string `json:"module_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.PurchaseModule(r.Context(), id, in.ModuleID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ModuleID string `json:"module_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.UpgradeModule(r.Context(), id, in.ModuleID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMutate(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ModuleID string `json:"module_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.MutateModule(r.Context(), id, in.ModuleID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignLoadout(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Purpose  string `json:"purpose"`
		Slot     int    `json:"slot"`
		ModuleID string `json:"module_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.AssignLoadout(r.Context(), id, game.LoadoutPurpose(in.Purpose), in.Slot, in.ModuleID); err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleClearLoadout(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Purpose string `json:"purpose"`
		Slot    int    `json:"slot"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.ClearLoadoutSlot(r.Context(), id, game.LoadoutPurpose(in.Purpose), in.Slot); err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleActivateBuff(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Axis string `json:"axis"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ActivateBuff(r.Context(), id, balance.Axis(in.Axis))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleArenaEnter(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.game.EnterArena(r.Context(), id); err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleArenaLeave(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.game.LeaveArena(r.Context(), id); err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleOpponents(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Opponents(r.Context(), id)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opponents": out})
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	id, err := entityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		TargetID string `json:"target_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Attack(r.Context(), id, strings.TrimSpace(in.TargetID))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleModifier(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.TodayModifier(r.Context())
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.CurrentTopology(r.Context())
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeGameError maps the typed failure taxonomy onto HTTP statuses. No
// internal detail crosses the boundary; internals log here and surface as a
// generic 500.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	kind := game.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case game.KindValidation:
		status = http.StatusBadRequest
	case game.KindNotFound:
		status = http.StatusNotFound
	case game.KindConflict:
		status = http.StatusConflict
	case game.KindInsufficient:
		status = http.StatusPaymentRequired
	case game.KindNotEligible:
		status = http.StatusForbidden
	case game.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("internal error", "error", err)
		writeJSON(w, status, map[string]any{"error": "internal error", "kind": string(game.KindInternal)})
		return
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "kind": string(kind)})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
