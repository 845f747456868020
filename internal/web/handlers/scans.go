package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
	"github.com/kozaktomas/face-finder/internal/scan"
)

// ScansHandler runs scans as async jobs.
type ScansHandler struct {
	orchestrator *scan.Orchestrator
	profiles     scan.ProfileSource
	photos       database.PhotoSource // nil when album scans are not configured
	jobs         *JobManager
}

func NewScansHandler(orchestrator *scan.Orchestrator, profiles scan.ProfileSource, photos database.PhotoSource, jobs *JobManager) *ScansHandler {
	return &ScansHandler{
		orchestrator: orchestrator,
		profiles:     profiles,
		photos:       photos,
		jobs:         jobs,
	}
}

// StartScanRequest is the body of POST /scans. Either Photos or AlbumUID is required.
type StartScanRequest struct {
	OwnerID  string                  `json:"owner_id"`
	Photos   []facematch.PhotoRecord `json:"photos,omitempty"`
	AlbumUID string                  `json:"album_uid,omitempty"`
	Force    bool                    `json:"force"`
}

// Start validates the request and starts a scan in the background.
func (h *ScansHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	photos, ok := h.resolvePhotos(w, r, &req)
	if !ok {
		return
	}

	// Check preconditions synchronously so the caller gets a proper status code
	if err := scan.ValidatePhotos(photos); err != nil {
		respondDomainError(w, err)
		return
	}
	if len(photos) > constants.MaxPhotosPerScan {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d photos per scan", constants.MaxPhotosPerScan))
		return
	}
	p, err := h.profiles.Get(r.Context(), req.OwnerID)
	if err != nil {
		logging.LogError(r.Context(), "failed to load profile", err, zap.String("owner_id", req.OwnerID))
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if !p.Usable() {
		respondDomainError(w, facematch.ErrNoProfile)
		return
	}

	jobID := uuid.New().String()
	job, err := h.jobs.CreateJob(jobID, req.OwnerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// The request context ends when this handler returns
	log := logging.FromContext(r.Context()).With(zap.String("job_id", jobID))
	ctx := logging.WithLogger(context.Background(), log)
	go h.runScanJob(ctx, job, scan.Request{OwnerID: req.OwnerID, Photos: photos, Force: req.Force})

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       jobID,
		"owner_id":     req.OwnerID,
		"total_photos": len(photos),
		"status":       string(JobStatusPending),
	})
}

func (h *ScansHandler) resolvePhotos(w http.ResponseWriter, r *http.Request, req *StartScanRequest) ([]facematch.PhotoRecord, bool) {
	switch {
	case req.AlbumUID != "" && len(req.Photos) > 0:
		respondError(w, http.StatusBadRequest, "photos and album_uid are mutually exclusive")
		return nil, false
	case req.AlbumUID == "":
		return req.Photos, true
	case h.photos == nil:
		respondError(w, http.StatusBadRequest, "album scans are not configured")
		return nil, false
	}

	photos, err := h.photos.AlbumPhotos(r.Context(), req.AlbumUID)
	if err != nil {
		logging.LogError(r.Context(), "failed to list album photos", err, zap.String("album_uid", req.AlbumUID))
		respondError(w, http.StatusNotFound, "album not found")
		return nil, false
	}
	return photos, true
}

// runScanJob runs the scan in the background
func (h *ScansHandler) runScanJob(ctx context.Context, job *ScanJob, req scan.Request) {
	defer h.jobs.FinishJob(job)

	res, err := h.orchestrator.Scan(ctx, req, job, job.token)
	if err != nil {
		logging.LogWarn(ctx, "scan job ended without results", zap.Error(err))
	}
	job.finish(res, err)
}

// Status returns the job snapshot.
func (h *ScansHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job events via SSE.
func (h *ScansHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamScanEvents(w, r, h.jobs)
}

// Cancel requests cancellation of a running job.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobs.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
