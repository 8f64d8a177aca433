package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subseaops/divelog/internal/divers"
	"github.com/subseaops/divelog/internal/jobs"
)

type jobRequestPayload struct {
	Name        string `json:"job_name"`
	ClientName  string `json:"client_name"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type jobResponsePayload struct {
	ID          string `json:"id"`
	Name        string `json:"job_name"`
	ClientName  string `json:"client_name"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func (h *httpHandler) handleListJobs(c *gin.Context) {
	list, err := h.jobs.List(c.Request.Context())
	if err != nil {
		h.logger.Error("job list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jobs_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": toJobPayloads(list)})
}

func (h *httpHandler) handleListActiveJobs(c *gin.Context) {
	list, err := h.jobs.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("active job list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jobs_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": toJobPayloads(list)})
}

func (h *httpHandler) handleCreateJob(c *gin.Context) {
	var request jobRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), jobs.JobInput{
		Name:        request.Name,
		ClientName:  request.ClientName,
		Location:    request.Location,
		Description: request.Description,
		Status:      request.Status,
	})
	if err != nil {
		h.respondJobError(c, err, "job_create_failed")
		return
	}
	c.JSON(http.StatusCreated, toJobPayload(job))
}

func (h *httpHandler) handleUpdateJob(c *gin.Context) {
	var request jobRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	job, err := h.jobs.Update(c.Request.Context(), c.Param("id"), jobs.JobInput{
		Name:        request.Name,
		ClientName:  request.ClientName,
		Location:    request.Location,
		Description: request.Description,
		Status:      request.Status,
	})
	if err != nil {
		h.respondJobError(c, err, "job_update_failed")
		return
	}
	c.JSON(http.StatusOK, toJobPayload(job))
}

func (h *httpHandler) respondJobError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, jobs.ErrInvalidJobName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_name_required"})
	case errors.Is(err, jobs.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
	case errors.Is(err, jobs.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job_not_found"})
	default:
		h.logger.Error("job operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

type diverRequestPayload struct {
	FullName        string `json:"full_name"`
	Rank            string `json:"rank"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	CertificationNo string `json:"certification_no"`
}

type diverResponsePayload struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Rank            string `json:"rank"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	CertificationNo string `json:"certification_no"`
}

func (h *httpHandler) handleListDivers(c *gin.Context) {
	list, err := h.divers.ListDivers(c.Request.Context())
	if err != nil {
		h.logger.Error("diver list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "divers_list_failed"})
		return
	}
	payload := make([]diverResponsePayload, 0, len(list))
	for _, diver := range list {
		payload = append(payload, toDiverPayload(diver))
	}
	c.JSON(http.StatusOK, gin.H{"divers": payload})
}

func (h *httpHandler) handleCreateDiver(c *gin.Context) {
	var request diverRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	diver, err := h.divers.CreateDiver(c.Request.Context(), divers.DiverInput{
		FullName:        request.FullName,
		Rank:            request.Rank,
		Email:           request.Email,
		Phone:           request.Phone,
		CertificationNo: request.CertificationNo,
	})
	if err != nil {
		h.respondDiverError(c, err, "diver_create_failed")
		return
	}
	c.JSON(http.StatusCreated, toDiverPayload(diver))
}

func (h *httpHandler) handleUpdateDiver(c *gin.Context) {
	var request diverRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	diver, err := h.divers.UpdateDiver(c.Request.Context(), c.Param("id"), divers.DiverInput{
		FullName:        request.FullName,
		Rank:            request.Rank,
		Email:           request.Email,
		Phone:           request.Phone,
		CertificationNo: request.CertificationNo,
	})
	if err != nil {
		h.respondDiverError(c, err, "diver_update_failed")
		return
	}
	c.JSON(http.StatusOK, toDiverPayload(diver))
}

func (h *httpHandler) respondDiverError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, divers.ErrInvalidDiverName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name_required"})
	case errors.Is(err, divers.ErrInvalidRank):
		c.JSON(http.StatusBadRequest, gin.H{"error": "rank_required"})
	case errors.Is(err, divers.ErrDiverNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "diver_not_found"})
	default:
		h.logger.Error("diver operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

type rankRequestPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleListRanks(c *gin.Context) {
	list, err := h.divers.ListRanks(c.Request.Context())
	if err != nil {
		h.logger.Error("rank list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ranks_list_failed"})
		return
	}
	payload := make([]gin.H, 0, len(list))
	for _, rank := range list {
		payload = append(payload, gin.H{"id": rank.ID, "name": rank.Name})
	}
	c.JSON(http.StatusOK, gin.H{"ranks": payload})
}

func (h *httpHandler) handleAddRank(c *gin.Context) {
	var request rankRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	rank, err := h.divers.AddRank(c.Request.Context(), request.Name)
	if err != nil {
		if errors.Is(err, divers.ErrInvalidRankName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rank_name_required"})
			return
		}
		h.logger.Error("rank add failed", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "rank_add_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rank.ID, "name": rank.Name})
}

func (h *httpHandler) handleDeleteRank(c *gin.Context) {
	if err := h.divers.DeleteRank(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, divers.ErrRankNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rank_not_found"})
			return
		}
		h.logger.Error("rank delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rank_delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func toJobPayloads(list []jobs.Job) []jobResponsePayload {
	payload := make([]jobResponsePayload, 0, len(list))
	for _, job := range list {
		payload = append(payload, toJobPayload(job))
	}
	return payload
}

func toJobPayload(job jobs.Job) jobResponsePayload {
	return jobResponsePayload{
		ID:          job.ID,
		Name:        job.Name,
		ClientName:  job.ClientName,
		Location:    job.Location,
		Description: job.Description,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toDiverPayload(diver divers.Diver) diverResponsePayload {
	return diverResponsePayload{
		ID:              diver.ID,
		FullName:        diver.FullName,
		Rank:            diver.Rank,
		Email:           diver.Email,
		Phone:           diver.Phone,
		CertificationNo: diver.CertificationNo,
	}
}
