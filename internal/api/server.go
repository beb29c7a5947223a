package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	adamio "adamstat/adapters/adam"
	"adamstat/app"
	"adamstat/domain/core"
	"adamstat/domain/run"
	"adamstat/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 10 << 20

// Server exposes the t-test service over HTTP
type Server struct {
	router  *chi.Mux
	service *app.TTestService
	logger  zerolog.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(service *app.TTestService, logger zerolog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/ttest", s.handleTTest)
		r.Post("/ttest/dataset-json", s.handleDatasetJSON)
		r.Post("/ttest/csv", s.handleCSV)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request with zerolog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// ttestBody is the JSON request accepted by the /api/ttest endpoints
type ttestBody struct {
	Sample        []float64 `json:"sample"`
	Column        string    `json:"column"`
	Title         string    `json:"title"`
	ReferenceMean *float64  `json:"referenceMean"`
	Alpha         *float64  `json:"alpha"`
	Sidedness     string    `json:"sidedness"`
	SubjectID     string    `json:"subjectId"`
	AnalysisDate  string    `json:"analysisDate"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"store":  s.service.HasStore(),
	})
}

func (s *Server) handleTTest(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runFromBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

func (s *Server) handleDatasetJSON(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runFromBody(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := adamio.WriteJSON(w, adamio.NewDataset(rn.Records, rn.CreatedAt)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write dataset JSON")
	}
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runFromBody(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+app.CSVFileName+`"`)
	if err := adamio.WriteCSV(w, rn.Records); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write CSV")
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	summaries, err := s.service.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	rn, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

// runFromBody decodes the request, runs the test and writes any error response
func (s *Server) runFromBody(w http.ResponseWriter, r *http.Request) (*run.Run, bool) {
	var body ttestBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, errors.InvalidInput("malformed request body: "+err.Error()))
		return nil, false
	}
	if body.ReferenceMean == nil {
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, core.NewParameterError("referenceMean", "is required")))
		return nil, false
	}

	result, err := s.service.Run(r.Context(), app.Request{
		Sample:        body.Sample,
		Column:        body.Column,
		Title:         body.Title,
		ReferenceMean: *body.ReferenceMean,
		Alpha:         body.Alpha,
		Sidedness:     body.Sidedness,
		SubjectID:     body.SubjectID,
		AnalysisDate:  body.AnalysisDate,
	})
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return result, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: errors.GetCode(err), Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.InvalidInput(key + " must be a non-negative integer")
	}
	return v, nil
}
