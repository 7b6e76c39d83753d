package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"FileCatalog/internal/auth"
	"FileCatalog/pkg/kit"
)

const readyTimeout = 1 * time.Second

type Server struct {
	Repo *Repository
	Log  *zap.Logger

	// Tokens verifies bearer tokens on the write routes. Nil leaves the
	// write routes unmounted.
	Tokens       *auth.TokenMaker
	WriteLimiter *kit.IPRateLimiter
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	r.Get("/products", s.list)
	r.Get("/products/{id}", s.get)

	if s.Tokens != nil {
		r.Group(func(wr chi.Router) {
			if s.WriteLimiter != nil {
				wr.Use(s.WriteLimiter.Middleware)
			}
			wr.Use(auth.RequireRole(s.Tokens, auth.RoleAdmin))

			wr.Post("/products", s.create)
			wr.Put("/products/{id}", s.update)
			wr.Delete("/products/{id}", s.delete)
		})
	}

	return r
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Repo.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products := s.Repo.GetAll(r.Context())
	kit.WriteJSON(w, http.StatusOK, applyLimit(products, r.URL.Query().Get("limit")))
}

// applyLimit keeps the first n products. A limit without a leading integer
// keeps them all; a negative one drops that many from the end.
func applyLimit(products []Product, raw string) []Product {
	n, ok := leadingInt(raw)
	if !ok || n >= len(products) {
		return products
	}
	if n < 0 {
		n = max(len(products)+n, 0)
	}
	return products[:n]
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	p, found := s.Repo.GetByID(r.Context(), id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

// productReq is the body of create and update requests. ID is accepted only
// so a client echoing a stored product back gets a clear error.
type productReq struct {
	ID *int `json:"id,omitempty"`
	Patch
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.ID != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "id is assigned by the server", nil)
		return
	}

	var p Product
	req.Patch.applyTo(&p)

	created, err := s.Repo.Add(r.Context(), p)
	if err != nil {
		s.writeRepoError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req productReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.ID != nil && *req.ID != id {
		kit.WriteError(w, r, http.StatusBadRequest, "id is immutable", map[string]any{"id": id})
		return
	}

	updated, err := s.Repo.Update(r.Context(), id, req.Patch)
	if err != nil {
		s.writeRepoError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.Repo.Delete(r.Context(), id); err != nil {
		s.writeRepoError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, ok := leadingInt(raw)
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

// leadingInt reads the integer at the start of s, after optional whitespace
// and sign, ignoring whatever follows: "12abc" is 12, "2.9" is 2, "abc" and
// "-" are not numbers. Out-of-range values saturate.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return n, true
}

func (s *Server) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError

	switch {
	case errors.As(err, &verr):
		kit.WriteError(w, r, http.StatusBadRequest, "all fields are required", map[string]any{"missing": verr.Missing})
	case errors.Is(err, ErrDuplicateCode):
		kit.WriteError(w, r, http.StatusConflict, "code already exists", nil)
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	default:
		s.logger().Error("repository call failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
