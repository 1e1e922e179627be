package handlers

import (
	"errors"
	"net/http"

	"servus-backend/internal/models"
	"servus-backend/internal/services"
	"servus-backend/pkg/utils"
)

const (
	// multipartOverhead leaves room for boundaries and headers around the file part.
	multipartOverhead = 1 << 20
	multipartMemory   = 10 << 20
)

// AttachmentHandler serves the notes, consumed materials and photos of a job.
type AttachmentHandler struct {
	Service *services.AttachmentService
}

func NewAttachmentHandler(s *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{Service: s}
}

// ---- notes ----

func (h *AttachmentHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	notes, err := h.Service.ListNotes(r.Context(), actorOf(r), jobID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, notes)
}

func (h *AttachmentHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.NoteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	note, err := h.Service.AddNote(r.Context(), actorOf(r), jobID, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, note)
}

func (h *AttachmentHandler) EditNote(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	noteID, err := utils.PathUUID(r, "noteId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.NoteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	note, err := h.Service.EditNote(r.Context(), actorOf(r), jobID, noteID, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, note)
}

func (h *AttachmentHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	noteID, err := utils.PathUUID(r, "noteId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.DeleteNote(r.Context(), actorOf(r), jobID, noteID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- materials used on the job ----

func (h *AttachmentHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	materials, err := h.Service.ListMaterials(r.Context(), actorOf(r), jobID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, materials)
}

func (h *AttachmentHandler) AssignMaterial(w http.ResponseWriter, r *http.Request) {
	var req models.AssignMaterialRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	jm, err := h.Service.AssignMaterial(r.Context(), actorOf(r), &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, jm)
}

func (h *AttachmentHandler) UpdateJobMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.UpdateJobMaterialRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	jm, err := h.Service.UpdateJobMaterial(r.Context(), actorOf(r), id, &req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, jm)
}

func (h *AttachmentHandler) RemoveJobMaterial(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "jobId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	materialID, err := utils.PathUUID(r, "materialId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	returned, err := h.Service.RemoveJobMaterial(r.Context(), actorOf(r), jobID, materialID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]int{"quantityReturned": returned})
}

// ---- photos ----

func (h *AttachmentHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	photos, err := h.Service.ListPhotos(r.Context(), actorOf(r), jobID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, photos)
}

// UploadPhoto accepts a multipart form with the image in the "file" field.
func (h *AttachmentHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Service.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, r, validationField("file", "file exceeds the upload limit"))
			return
		}
		utils.WriteError(w, r, validationField("file", "expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, r, validationField("file", "file is required"))
		return
	}
	defer file.Close()

	photo, err := h.Service.UploadPhoto(r.Context(), actorOf(r), jobID, header.Filename, header.Size, file)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, photo)
}

func (h *AttachmentHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	photoID, err := utils.PathUUID(r, "photoId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if err := h.Service.DeletePhoto(r.Context(), actorOf(r), jobID, photoID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttachmentHandler) BatchDeletePhotos(w http.ResponseWriter, r *http.Request) {
	jobID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req models.BatchDeletePhotosRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	res, err := h.Service.BatchDeletePhotos(r.Context(), actorOf(r), jobID, req.PhotoIDs)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}
