package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/models"
	"servus-backend/internal/storage"
	"servus-backend/internal/validation"
)

// PhotoFolder is the storage folder job photos are written to.
const PhotoFolder = "job-photos"

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/heic"}

// AttachmentService manages what gets attached to a job while it is worked:
// notes, consumed materials and photos.
type AttachmentService struct {
	jobAccess
	Materials      MaterialStore
	JobMaterials   JobMaterialStore
	Notes          NoteStore
	Photos         PhotoStore
	Storage        storage.FileStorage
	MaxUploadBytes int64
	rec            *audit.Recorder
}

type AttachmentDeps struct {
	Jobs           JobStore
	Technicians    TechnicianStore
	Customers      CustomerStore
	Materials      MaterialStore
	JobMaterials   JobMaterialStore
	Notes          NoteStore
	Photos         PhotoStore
	Storage        storage.FileStorage
	MaxUploadBytes int64
}

func NewAttachmentService(d AttachmentDeps, rec *audit.Recorder) *AttachmentService {
	return &AttachmentService{
		jobAccess:      jobAccess{Jobs: d.Jobs, Technicians: d.Technicians, Customers: d.Customers},
		Materials:      d.Materials,
		JobMaterials:   d.JobMaterials,
		Notes:          d.Notes,
		Photos:         d.Photos,
		Storage:        d.Storage,
		MaxUploadBytes: d.MaxUploadBytes,
		rec:            rec,
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ---- notes ----

func (s *AttachmentService) AddNote(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID, req *models.NoteRequest) (*models.JobNote, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}

	n := &models.JobNote{
		ID:        uuid.New(),
		JobID:     job.ID,
		Note:      strings.TrimSpace(req.Note),
		Lifecycle: s.rec.Created(actor),
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityNoteAdded, "Note added: %s", excerpt(n.Note, 50))
	if err := s.Notes.Add(ctx, n, a); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *AttachmentService) note(ctx context.Context, jobID, noteID uuid.UUID) (*models.JobNote, error) {
	n, err := s.Notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n.JobID != jobID {
		return nil, apperr.NotFound("note")
	}
	return n, nil
}

func (s *AttachmentService) EditNote(ctx context.Context, actor models.ActorIdentity, jobID, noteID uuid.UUID, req *models.NoteRequest) (*models.JobNote, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}
	n, err := s.note(ctx, job.ID, noteID)
	if err != nil {
		return nil, err
	}

	n.Note = strings.TrimSpace(req.Note)
	s.rec.Modified(&n.Lifecycle, actor)
	a := s.rec.Activity(job.ID, actor, models.ActivityNoteEdited, "Note edited: %s", excerpt(n.Note, 50))
	if err := s.Notes.Edit(ctx, n, a); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *AttachmentService) DeleteNote(ctx context.Context, actor models.ActorIdentity, jobID, noteID uuid.UUID) error {
	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return err
	}
	n, err := s.note(ctx, job.ID, noteID)
	if err != nil {
		return err
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityNoteDeleted, "Note deleted: %s", excerpt(n.Note, 50))
	return s.Notes.Delete(ctx, job.ID, n.ID, a)
}

func (s *AttachmentService) ListNotes(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) ([]models.JobNote, error) {
	if _, err := s.view(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.Notes.ListByJob(ctx, jobID)
}

// ---- materials ----

// AssignMaterial records material used on a started or completed job. Stock
// is decremented in the same transaction as the line and its activity.
func (s *AttachmentService) AssignMaterial(ctx context.Context, actor models.ActorIdentity, req *models.AssignMaterialRequest) (*models.JobMaterial, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	job, err := s.modify(ctx, actor, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStarted && job.Status != models.JobCompleted {
		return nil, apperr.Conflict("materials can only be added to started or completed jobs")
	}

	m, err := s.Materials.Get(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted || !m.IsActive {
		return nil, apperr.NotFound("material")
	}
	if m.StockQuantity < req.QuantityUsed {
		return nil, apperr.Conflict(fmt.Sprintf("insufficient stock for %s: %d available, %d requested",
			m.Name, m.StockQuantity, req.QuantityUsed))
	}

	jm := &models.JobMaterial{
		ID:           uuid.New(),
		JobID:        job.ID,
		MaterialID:   m.ID,
		MaterialName: m.Name,
		Unit:         m.Unit,
		QuantityUsed: req.QuantityUsed,
		UnitPrice:    m.UnitPrice,
		Lifecycle:    s.rec.Created(actor),
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityMaterialAssigned, "%d %s of %s", jm.QuantityUsed, m.Unit, m.Name)
	if err := s.JobMaterials.Assign(ctx, jm, a); err != nil {
		return nil, err
	}
	return jm, nil
}

// UpdateJobMaterial changes a line's quantity; stock absorbs the difference.
func (s *AttachmentService) UpdateJobMaterial(ctx context.Context, actor models.ActorIdentity, id uuid.UUID, req *models.UpdateJobMaterialRequest) (*models.JobMaterial, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	jm, err := s.JobMaterials.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.modify(ctx, actor, jm.JobID); err != nil {
		return nil, err
	}
	if jm.QuantityUsed == req.QuantityUsed {
		return jm, nil
	}

	a := s.rec.Activity(jm.JobID, actor, models.ActivityMaterialUpdated, "%s from %d to %d",
		jm.MaterialName, jm.QuantityUsed, req.QuantityUsed)
	if err := s.JobMaterials.UpdateQuantity(ctx, jm.ID, req.QuantityUsed, a); err != nil {
		return nil, err
	}
	jm.QuantityUsed = req.QuantityUsed
	s.rec.Modified(&jm.Lifecycle, actor)
	return jm, nil
}

// RemoveJobMaterial removes a material from a job and returns its quantity to stock.
func (s *AttachmentService) RemoveJobMaterial(ctx context.Context, actor models.ActorIdentity, jobID, materialID uuid.UUID) (int, error) {
	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return 0, err
	}
	name := materialID.String()
	if m, err := s.Materials.Get(ctx, materialID); err == nil {
		name = m.Name
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityMaterialRemoved, "%s removed", name)
	return s.JobMaterials.Remove(ctx, job.ID, materialID, a)
}

func (s *AttachmentService) ListMaterials(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) ([]models.JobMaterial, error) {
	if _, err := s.view(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.JobMaterials.ListByJob(ctx, jobID)
}

// ---- photos ----

// UploadPhoto stores an image for a job and records its URL. The content type
// is sniffed from the bytes, not taken from the client.
func (s *AttachmentService) UploadPhoto(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID, filename string, size int64, body io.Reader) (*models.JobPhoto, error) {
	if size <= 0 {
		return nil, apperr.ValidationFields("no file uploaded", map[string]string{"file": "file is empty"})
	}
	if s.MaxUploadBytes > 0 && size > s.MaxUploadBytes {
		return nil, apperr.ValidationFields("file too large", map[string]string{
			"file": fmt.Sprintf("must be at most %d bytes", s.MaxUploadBytes),
		})
	}

	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperr.Validation("could not read upload")
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), allowedPhotoTypes...) {
		return nil, apperr.ValidationFields("unsupported file type", map[string]string{
			"file": "must be an image, got " + mt.String(),
		})
	}

	url, err := s.Storage.Save(ctx, PhotoFolder, filename, mt.String(), io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		log.WithError(err).Errorf("[Photos] Failed to store photo for job %s", job.ID)
		return nil, apperr.Unavailable("file storage is unavailable", err)
	}

	p := &models.JobPhoto{
		ID:        uuid.New(),
		JobID:     job.ID,
		PhotoURL:  url,
		Lifecycle: s.rec.Created(actor),
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityPhotoUploaded, "Photo uploaded: %s", filename)
	if err := s.Photos.Add(ctx, p, a); err != nil {
		if delErr := s.Storage.Delete(ctx, url); delErr != nil {
			log.WithError(delErr).Warnf("[Photos] Orphaned upload %s", url)
		}
		return nil, err
	}
	return p, nil
}

func (s *AttachmentService) photo(ctx context.Context, jobID, photoID uuid.UUID) (*models.JobPhoto, error) {
	p, err := s.Photos.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if p.JobID != jobID {
		return nil, apperr.NotFound("photo")
	}
	return p, nil
}

// DeletePhoto removes the stored file first; if storage fails the row is kept
// so the photo is not silently lost.
func (s *AttachmentService) DeletePhoto(ctx context.Context, actor models.ActorIdentity, jobID, photoID uuid.UUID) error {
	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return err
	}
	p, err := s.photo(ctx, job.ID, photoID)
	if err != nil {
		return err
	}
	return s.deletePhoto(ctx, actor, p)
}

func (s *AttachmentService) deletePhoto(ctx context.Context, actor models.ActorIdentity, p *models.JobPhoto) error {
	if err := s.Storage.Delete(ctx, p.PhotoURL); err != nil {
		return apperr.Unavailable("file storage is unavailable", err)
	}
	s.rec.Modified(&p.Lifecycle, actor)
	a := s.rec.Activity(p.JobID, actor, models.ActivityPhotoDeleted, "Photo deleted: %s", p.PhotoURL)
	return s.Photos.Delete(ctx, p, a)
}

type BatchDeleteResult struct {
	Deleted []uuid.UUID `json:"deleted"`
	Failed  []uuid.UUID `json:"failed"`
}

// BatchDeletePhotos deletes several photos of one job. Photos whose storage
// delete fails are reported back and left in place.
func (s *AttachmentService) BatchDeletePhotos(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID, ids []uuid.UUID) (*BatchDeleteResult, error) {
	if len(ids) == 0 {
		return nil, apperr.ValidationFields("no photos selected", map[string]string{"photoIds": "photoIds is required"})
	}
	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}

	res := &BatchDeleteResult{Deleted: []uuid.UUID{}, Failed: []uuid.UUID{}}
	found := 0
	for _, id := range ids {
		p, err := s.photo(ctx, job.ID, id)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found++
		if err := s.deletePhoto(ctx, actor, p); err != nil {
			log.WithError(err).Warnf("[Photos] Failed to delete photo %s", p.ID)
			res.Failed = append(res.Failed, p.ID)
			continue
		}
		res.Deleted = append(res.Deleted, p.ID)
	}
	if found == 0 {
		return nil, apperr.NotFound("photo")
	}
	return res, nil
}

func (s *AttachmentService) ListPhotos(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) ([]models.JobPhoto, error) {
	if _, err := s.view(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.Photos.ListByJob(ctx, jobID)
}
