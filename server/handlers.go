package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chhz0/superv/core"
	"github.com/chhz0/superv/health"
	"github.com/chhz0/superv/metrics"
	"github.com/chhz0/superv/registry"
	"github.com/chhz0/superv/types"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeCoreError maps core error kinds onto status codes. Anything
// unrecognized becomes a generic 500.
func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrQueueFull):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrWorkerNotFound), errors.Is(err, core.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type registerRequest struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Endpoint     string            `json:"endpoint"`
	Capabilities []string          `json:"capabilities,omitempty"`
	CurrentLoad  int               `json:"currentLoad,omitempty"`
	MaxLoad      int               `json:"maxLoad,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	worker, err := s.orch.RegisterWorker(registry.Descriptor{
		ID:           req.ID,
		Name:         req.Name,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
		CurrentLoad:  req.CurrentLoad,
		MaxLoad:      req.MaxLoad,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"worker":  worker,
	})
}

type heartbeatRequest struct {
	WorkerID     string             `json:"workerId"`
	Status       types.WorkerStatus `json:"status"`
	CurrentLoad  int                `json:"currentLoad"`
	MaxLoad      int                `json:"maxLoad"`
	Capabilities []string           `json:"capabilities,omitempty"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	worker, err := s.orch.Heartbeat(registry.HeartbeatPayload{
		WorkerID:     req.WorkerID,
		Status:       req.Status,
		CurrentLoad:  req.CurrentLoad,
		MaxLoad:      req.MaxLoad,
		Capabilities: req.Capabilities,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"worker":  worker,
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	removed := s.orch.UnregisterWorker(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": removed})
}

type workerView struct {
	*types.Worker
	Health health.Score `json:"health"`
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers := s.orch.Registry().GetAll()
	views := make([]workerView, 0, len(workers))
	for _, worker := range workers {
		views = append(views, workerView{
			Worker: worker,
			Health: s.orch.WorkerHealth(worker),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workers": views})
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var sub core.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.orch.SubmitTask(sub)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	metrics.TasksSubmittedTotal.WithLabelValues(string(task.Priority)).Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"task":    task,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	resp := make(map[string]interface{})
	if task, ok := s.orch.GetTask(id); ok {
		resp["task"] = task
	}
	if result, err := s.orch.GetTaskResult(id); err == nil {
		resp["result"] = result
	}

	if len(resp) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type resultRequest struct {
	WorkerID   string          `json:"workerId"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.orch.ReportTaskResult(&types.TaskResult{
		TaskID:     r.PathValue("id"),
		WorkerID:   req.WorkerID,
		Success:    req.Success,
		Result:     req.Result,
		Error:      req.Error,
		DurationMs: req.DurationMs,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents streams broadcast lifecycle events as SSE.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	events, err := s.pubsub.Subscribe(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	fmt.Fprintf(w, "data: {\"event\":\"ping\"}\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
