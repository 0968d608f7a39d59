package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the transaction store read-only over HTTP
type Server struct {
	store    transaction.Store
	gatherer prometheus.Gatherer
	router   chi.Router
	logger   *log.Entry
}

// NewServer builds the router. A nil gatherer disables /metrics.
func NewServer(store transaction.Store, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		store:    store,
		gatherer: gatherer,
		logger:   log.WithField("component", "api"),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", s.apiHealth)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.apiTransactions)
		r.Get("/{id}", s.apiTransaction)
	})
	s.router = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) apiHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// apiTransactions lists records, optionally filtered by status, queue status, account or chain.
func (s *Server) apiTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var chainID types.ChainID
	if c := q.Get("chain"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			writeJSONWithStatus(w, errorResponse{Error: "invalid chain id"}, http.StatusBadRequest)
			return
		}
		chainID = types.ChainID(id)
	}
	status := transaction.Status(q.Get("status"))
	queue := transaction.QueueStatus(q.Get("queue"))
	account := q.Get("account")

	out := make([]*transaction.Record, 0)
	for _, rec := range s.store.List() {
		if status != "" && rec.Status != status {
			continue
		}
		if queue != "" && (rec.Order == nil || rec.Order.QueueStatus != queue) {
			continue
		}
		if account != "" && !strings.EqualFold(rec.From, account) {
			continue
		}
		if chainID != 0 && rec.ChainID != chainID {
			continue
		}
		out = append(out, rec)
	}
	writeJSON(w, out)
}

func (s *Server) apiTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(id)
	if errors.Is(err, transaction.ErrNotFound) {
		writeJSONWithStatus(w, errorResponse{Error: err.Error()}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONWithStatus(w, errorResponse{Error: err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, thing any) {
	writeJSONWithStatus(w, thing, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, thing any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(thing); err != nil {
		log.Errorf("JSON encode error: %v", err)
	}
}
