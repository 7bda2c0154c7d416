//
//
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

// Paths served by the API.
const (
	PathProcessedAgentData = "/processed_agent_data/"
	PathSubscribe          = "/ws"
	PathHealth             = "/api/v1/health"
)

// healthPingTimeout bounds the storage check behind the health endpoint.
const healthPingTimeout = 2 * time.Second

// RegisterRoutes registers all endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(PathProcessedAgentData+"{$}", s.handleProcessedAgentData)
	mux.HandleFunc("/processed_agent_data", s.handleProcessedAgentData)

	mux.HandleFunc(PathSubscribe, s.handleSubscribe)

	mux.HandleFunc(PathHealth, s.handleHealth)

	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics)
	}
}

// handleProcessedAgentData handles POST and GET /processed_agent_data/
func (s *Server) handleProcessedAgentData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngest(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET and POST methods are allowed", nil)
	}
}

// handleIngest handles POST /processed_agent_data/
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	batch, err := s.decodeBatch(w, r)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	if s.ingest == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Ingestion not available", nil)
		return
	}

	ack, err := s.ingest.Ingest(r.Context(), batch)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	s.log.Info(r.Context(), "batch accepted", logging.Int("accepted", ack.Accepted))
	WriteSuccess(w, ack)
}

// decodeBatch reads a JSON array of batch items from the request body.
func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request) ([]record.IncomingBatchItem, error) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)

	var batch []record.IncomingBatchItem
	if err := dec.Decode(&batch); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return nil, badRequest("Request body too large")
		case errors.As(err, &typeErr):
			return nil, badRequest("Request body must be a JSON array of objects")
		default:
			return nil, badRequest("Malformed JSON")
		}
	}
	if batch == nil {
		return nil, badRequest("Request body must be a JSON array of objects")
	}

	// Trailing data check
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, badRequest("Trailing data after JSON array")
	}

	return batch, nil
}

// handleList handles GET /processed_agent_data/
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Query service not available", nil)
		return
	}

	rows, err := s.query.List(r.Context())
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	if rows == nil {
		rows = []record.StoredRecord{}
	}

	WriteSuccess(w, rows)
}

// handleHealth handles GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	// Calculate uptime
	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	subsystems := s.checkSubsystemHealth(r.Context())

	overallStatus := "ok"
	for _, healthy := range subsystems {
		if !healthy {
			overallStatus = "degraded"
		}
	}

	subscribers := 0
	if s.subscriptions != nil {
		subscribers = s.subscriptions.Count()
	}

	health := map[string]interface{}{
		"status":      overallStatus,
		"uptimeSec":   uptime,
		"subscribers": subscribers,
		"subsystems":  subsystems,
	}

	if overallStatus == "ok" {
		WriteSuccess(w, health)
	} else {
		// Health data goes in details so it's available in the error response
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
	}
}

// checkSubsystemHealth checks the health of all subsystems.
func (s *Server) checkSubsystemHealth(ctx context.Context) map[string]bool {
	subsystems := make(map[string]bool)

	storageOK := false
	if s.health != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		err := s.health.Ping(pingCtx)
		cancel()
		if err != nil {
			s.log.Warn(ctx, "storage health check failed", logging.Err(err))
		}
		storageOK = err == nil
	}
	subsystems["storage"] = storageOK
	subsystems["ingest"] = s.ingest != nil
	subsystems["subscriptions"] = s.subscriptions != nil

	return subsystems
}
