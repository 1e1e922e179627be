package handlers

import (
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

type JobHandler struct {
	Service *services.JobService
}

func NewJobHandler(s *services.JobService) *JobHandler {
	return &JobHandler{Service: s}
}

// jobFilter reads the listing filters shared by /jobs/admin, /jobs/my and /jobs/unassigned.
func jobFilter(r *http.Request) (models.JobFilter, error) {
	q := utils.NewQuery(r)
	f := models.JobFilter{
		TechnicianID:   q.UUID("technicianId"),
		TechnicianName: q.String("technicianName"),
		CustomerName:   q.String("customerName"),
		Keyword:        q.String("keyword"),
		Date:           q.Date("date"),
		Page:           q.Page(models.JobSorts),
	}
	if err := q.Err(); err != nil {
		return f, err
	}
	if raw := q.String("status"); raw != "" {
		status, ok := models.ParseJobStatus(raw)
		if !ok {
			return f, validationField("status", "must be one of: Scheduled, Started, Completed")
		}
		f.Status = status
	}
	return f, nil
}

func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	job, err := h.Service.Create(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, job)
}

func (h *JobHandler) ReassignJob(w http.ResponseWriter, r *http.Request) {
	var req models.ReassignJobRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	resp, err := h.Service.Reassign(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}

func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.UpdateJobStatusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	job, err := h.Service.UpdateStatus(r.Context(), actorOf(r), id, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, job)
}

func (h *JobHandler) ArchiveJob(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.Archive(r.Context(), actorOf(r), id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	job, err := h.Service.Get(r.Context(), actorOf(r), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, job)
}

func (h *JobHandler) MyJobs(w http.ResponseWriter, r *http.Request) {
	f, err := jobFilter(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	jobs, err := h.Service.ListMine(r.Context(), actorOf(r), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) AdminJobs(w http.ResponseWriter, r *http.Request) {
	f, err := jobFilter(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	jobs, err := h.Service.List(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) UnassignedJobs(w http.ResponseWriter, r *http.Request) {
	f, err := jobFilter(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	jobs, err := h.Service.ListUnassigned(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) Activities(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	activities, err := h.Service.Activities(r.Context(), actorOf(r), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, activities)
}
