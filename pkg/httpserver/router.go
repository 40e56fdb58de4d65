package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

const maxAuditLimit = 500

// Routes wires the operations endpoints. Nil fields disable their routes.
type Routes struct {
	Logger       *slog.Logger
	Checks       []Check
	CheckTimeout time.Duration
	Breakers     *breaker.Registry
	Audit        audit.Storage
	Metrics      http.Handler
}

// NewRouter builds the operations router:
//
//	GET  /healthz                 liveness
//	GET  /readyz                  readiness of every Check
//	GET  /metrics                 Prometheus exposition
//	GET  /breakers                circuit breaker snapshots
//	POST /breakers/{name}/reset   force a breaker closed
//	GET  /audit                   audit trail query
func NewRouter(rt Routes) http.Handler {
	log := rt.Logger
	if log == nil {
		log = slog.Default()
	}
	if rt.CheckTimeout <= 0 {
		rt.CheckTimeout = 5 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/healthz", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(log, rt.CheckTimeout, rt.Checks...))

	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	if rt.Breakers != nil {
		r.Get("/breakers", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, rt.Breakers.States())
		})
		r.Post("/breakers/{name}/reset", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			if err := rt.Breakers.Reset(name); err != nil {
				if errors.Is(err, breaker.ErrUnknownDependency) {
					writeError(w, http.StatusNotFound, err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			log.InfoContext(r.Context(), "circuit breaker reset", logger.Dependency(name))
			w.WriteHeader(http.StatusNoContent)
		})
	}

	if rt.Audit != nil {
		r.Get("/audit", auditHandler(log, rt.Audit))
	}

	return r
}

// auditHandler answers GET /audit?subscription_id=&tenant_id=&action=&since=&until=&limit=.
// since and until are RFC 3339 timestamps; action may repeat.
func auditHandler(log *slog.Logger, storage audit.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		criteria := audit.Criteria{Actions: q["action"], Limit: 100}

		var err error
		if v := q.Get("subscription_id"); v != "" {
			if criteria.SubscriptionID, err = uuid.Parse(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid subscription_id")
				return
			}
		}
		if v := q.Get("tenant_id"); v != "" {
			if criteria.TenantID, err = uuid.Parse(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid tenant_id")
				return
			}
		}
		if v := q.Get("since"); v != "" {
			if criteria.Since, err = time.Parse(time.RFC3339, v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid since")
				return
			}
		}
		if v := q.Get("until"); v != "" {
			if criteria.Until, err = time.Parse(time.RFC3339, v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid until")
				return
			}
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			criteria.Limit = min(n, maxAuditLimit)
		}
		if criteria.SubscriptionID == uuid.Nil && criteria.TenantID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "subscription_id or tenant_id is required")
			return
		}

		entries, err := storage.Query(r.Context(), criteria)
		if err != nil {
			log.ErrorContext(r.Context(), "audit query failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "audit query failed")
			return
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
