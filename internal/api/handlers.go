package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/utkarshgautam22/DiskForge/internal/imaging"
	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

var (
	errBadRequest   = errors.New("bad request")
	errNotConfirmed = errors.New("confirmation does not match")
	errJobNotFound  = errors.New("job not found")
)

type formatRequest struct {
	Device       string `json:"device"`
	Filesystem   string `json:"filesystem"`
	Confirmation string `json:"confirmation"`
}

type jobRequest struct {
	Image        string `json:"image"`
	Device       string `json:"device"`
	Strategy     string `json:"strategy"`
	Confirmation string `json:"confirmation"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, imaging.ErrUnsafeTarget):
		return http.StatusForbidden
	case errors.Is(err, imaging.ErrEngineBusy):
		return http.StatusConflict
	case errors.Is(err, errJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, imaging.ErrUnsupportedStrategy),
		errors.Is(err, platform.ErrUnsupportedFilesystem),
		errors.Is(err, imaging.ErrImageUnreadable),
		errors.Is(err, errNotConfirmed),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case platform.IsProbeError(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path, "status": status}).WithError(err)
	if status >= 500 {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// confirm checks the operator's confirmation phrase against the device's risk tier
func (s *Server) confirm(device, confirmation string) error {
	if device == "" {
		return fmt.Errorf("%w: device is required", errBadRequest)
	}
	a, err := s.assessor.Assess(device)
	if err != nil {
		return err
	}
	if !a.Confirm(confirmation) {
		return fmt.Errorf("%w: %s is %s risk, type %q to continue", errNotConfirmed, device, a.RiskTier, a.ConfirmationPhrase())
	}
	return nil
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices, err := s.probe.ListPhysicalDevices()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) PartitionsHandler(w http.ResponseWriter, r *http.Request) {
	parts, err := s.probe.ListPartitions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) AssessHandler(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")
	if device == "" {
		writeError(w, r, fmt.Errorf("%w: device is required", errBadRequest))
		return
	}
	a, err := s.assessor.Assess(device)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) FormatHandler(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fs, err := platform.ParseFilesystem(req.Filesystem)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.confirm(req.Device, req.Confirmation); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.Format(r.Context(), req.Device, fs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"device": req.Device, "filesystem": string(fs), "status": "formatted"})
}

func (s *Server) StartJobHandler(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Strategy == "" {
		req.Strategy = "auto"
	}
	strategy, err := imaging.ParseStrategy(req.Strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.confirm(req.Device, req.Confirmation); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.engine.StartWrite(req.Image, req.Device, strategy, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) lookup(r *http.Request) (*imaging.WriteJob, error) {
	id := mux.Vars(r)["id"]
	job, ok := s.engine.Job(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errJobNotFound, id)
	}
	return job, nil
}

func (s *Server) JobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.engine.Cancel(job)
	writeJSON(w, http.StatusOK, job.Snapshot())
}
