package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

type attachmentFixture struct {
	w        *world
	files    *memStorage
	svc      *AttachmentService
	customer models.Customer
	tech     models.Technician
	techAct  models.ActorIdentity
}

func newAttachmentFixture(t *testing.T) *attachmentFixture {
	t.Helper()
	f := &attachmentFixture{w: newWorld(), files: newMemStorage()}
	f.svc = NewAttachmentService(AttachmentDeps{
		Jobs:           jobStore{f.w},
		Technicians:    techStore{f.w},
		Customers:      customerStore{f.w},
		Materials:      materialStore{f.w},
		JobMaterials:   jobMaterialStore{f.w},
		Notes:          noteStore{f.w},
		Photos:         photoStore{f.w},
		Storage:        f.files,
		MaxUploadBytes: 1024,
	}, testRecorder())
	f.customer, _ = f.w.addCustomer("Carla Customer", "carla@example.com")
	f.tech, f.techAct = f.w.addTechnician("Alice Tech")
	return f
}

func (f *attachmentFixture) startedJob() models.Job {
	return f.w.addJob(f.customer, &f.tech, models.JobStarted, testNow.Add(-time.Hour))
}

func TestStockDecreasesByQuantityUsed(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()
	pipe := f.w.addMaterial("Copper pipe", "5.99", 10)

	assign := func(qty int) error {
		_, err := f.svc.AssignMaterial(ctx, f.techAct, &models.AssignMaterialRequest{JobID: job.ID, MaterialID: pipe.ID, QuantityUsed: qty})
		return err
	}

	require.NoError(t, assign(3))
	require.NoError(t, assign(4))
	assert.Equal(t, 3, f.w.stock(pipe.ID))

	assert.Equal(t, apperr.KindConflict, kindOf(t, assign(5)))
	assert.Equal(t, 3, f.w.stock(pipe.ID), "rejected call leaves stock untouched")
	assert.Len(t, f.w.activitiesFor(job.ID, models.ActivityMaterialAssigned), 2)

	lines, err := f.svc.ListMaterials(ctx, f.techAct, job.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].UnitPrice.Equal(mustDecimal("5.99")))
}

func TestAssignMaterialGuards(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	pipe := f.w.addMaterial("Copper pipe", "5.99", 10)

	scheduled := f.w.addJob(f.customer, &f.tech, models.JobScheduled, testNow.Add(time.Hour))
	_, err := f.svc.AssignMaterial(ctx, f.techAct, &models.AssignMaterialRequest{JobID: scheduled.ID, MaterialID: pipe.ID, QuantityUsed: 1})
	assert.Equal(t, apperr.KindConflict, kindOf(t, err), "job not started")

	job := f.startedJob()
	require.NoError(t, materialStore{f.w}.SoftDelete(ctx, pipe.ID, models.Lifecycle{}))
	_, err = f.svc.AssignMaterial(ctx, f.techAct, &models.AssignMaterialRequest{JobID: job.ID, MaterialID: pipe.ID, QuantityUsed: 1})
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err), "deleted material")

	_, err = f.svc.AssignMaterial(ctx, f.techAct, &models.AssignMaterialRequest{JobID: job.ID, MaterialID: pipe.ID, QuantityUsed: 0})
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))
}

func TestUpdateAndRemoveJobMaterialMoveStock(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()
	pipe := f.w.addMaterial("Copper pipe", "5.99", 10)

	line, err := f.svc.AssignMaterial(ctx, f.techAct, &models.AssignMaterialRequest{JobID: job.ID, MaterialID: pipe.ID, QuantityUsed: 3})
	require.NoError(t, err)

	_, err = f.svc.UpdateJobMaterial(ctx, f.techAct, line.ID, &models.UpdateJobMaterialRequest{QuantityUsed: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, f.w.stock(pipe.ID))
	updated := f.w.activitiesFor(job.ID, models.ActivityMaterialUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, "Copper pipe from 3 to 5", updated[0].Details)

	returned, err := f.svc.RemoveJobMaterial(ctx, f.techAct, job.ID, pipe.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, returned)
	assert.Equal(t, 10, f.w.stock(pipe.ID))

	_, err = f.svc.RemoveJobMaterial(ctx, f.techAct, job.ID, pipe.ID)
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))
}

func TestNotes(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()

	n, err := f.svc.AddNote(ctx, f.techAct, job.ID, &models.NoteRequest{Note: "Customer asked for a callback"})
	require.NoError(t, err)

	_, err = f.svc.EditNote(ctx, f.techAct, job.ID, n.ID, &models.NoteRequest{Note: "Callback done"})
	require.NoError(t, err)

	notes, err := f.svc.ListNotes(ctx, f.techAct, job.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Callback done", notes[0].Note)

	other := f.startedJob()
	assert.Equal(t, apperr.KindNotFound, kindOf(t, f.svc.DeleteNote(ctx, f.techAct, other.ID, n.ID)), "note belongs to another job")

	require.NoError(t, f.svc.DeleteNote(ctx, f.techAct, job.ID, n.ID))
	assert.Len(t, f.w.activitiesFor(job.ID, models.ActivityNoteAdded), 1)
	assert.Len(t, f.w.activitiesFor(job.ID, models.ActivityNoteEdited), 1)
	assert.Len(t, f.w.activitiesFor(job.ID, models.ActivityNoteDeleted), 1)
}

func TestArchivedJobRejectsAttachments(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()
	pipe := f.w.addMaterial("Copper pipe", "5.99", 10)
	require.NoError(t, jobStore{f.w}.Archive(ctx, job.ID, models.JobActivity{JobID: job.ID}))

	_, err := f.svc.AddNote(ctx, f.techAct, job.ID, &models.NoteRequest{Note: "late note"})
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))

	_, err = f.svc.AssignMaterial(ctx, f.techAct, &models.AssignMaterialRequest{JobID: job.ID, MaterialID: pipe.ID, QuantityUsed: 1})
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))
	assert.Equal(t, 10, f.w.stock(pipe.ID))

	_, err = f.svc.UploadPhoto(ctx, f.techAct, job.ID, "after.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))
	assert.Empty(t, f.files.files)

	// reads still work
	_, err = f.svc.ListNotes(ctx, f.techAct, job.ID)
	assert.NoError(t, err)
}

func TestUploadPhoto(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()

	p, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, "before.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Contains(t, p.PhotoURL, "/uploads/job-photos/")
	assert.Equal(t, pngBytes, f.files.files[p.PhotoURL], "sniffed bytes are written back")
	assert.Len(t, f.w.activitiesFor(job.ID, models.ActivityPhotoUploaded), 1)

	t.Run("not an image", func(t *testing.T) {
		body := []byte("%PDF-1.4 not a photo")
		_, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, "doc.png", int64(len(body)), bytes.NewReader(body))
		assert.Equal(t, apperr.KindValidation, kindOf(t, err))
	})

	t.Run("too large", func(t *testing.T) {
		_, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, "big.png", 4096, bytes.NewReader(pngBytes))
		assert.Equal(t, apperr.KindValidation, kindOf(t, err))
	})

	t.Run("storage down", func(t *testing.T) {
		f.files.failSave = true
		defer func() { f.files.failSave = false }()
		_, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, "x.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
		assert.Equal(t, apperr.KindUnavailable, kindOf(t, err))
	})

	t.Run("database failure removes the stored file", func(t *testing.T) {
		before := len(f.files.files)
		f.w.failWith = errors.New("connection reset")
		_, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, "y.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
		require.Error(t, err)
		assert.Len(t, f.files.files, before)
	})
}

func TestDeletePhotoKeepsRowWhenStorageFails(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()
	p, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, "a.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)

	f.files.failDel = true
	assert.Equal(t, apperr.KindUnavailable, kindOf(t, f.svc.DeletePhoto(ctx, f.techAct, job.ID, p.ID)))
	photos, _ := f.svc.ListPhotos(ctx, f.techAct, job.ID)
	assert.Len(t, photos, 1)

	f.files.failDel = false
	require.NoError(t, f.svc.DeletePhoto(ctx, f.techAct, job.ID, p.ID))
	photos, _ = f.svc.ListPhotos(ctx, f.techAct, job.ID)
	assert.Empty(t, photos)
	assert.Len(t, f.w.activitiesFor(job.ID, models.ActivityPhotoDeleted), 1)
}

func TestBatchDeletePhotos(t *testing.T) {
	f := newAttachmentFixture(t)
	ctx := context.Background()
	job := f.startedJob()

	var ids []uuid.UUID
	for _, name := range []string{"a.png", "b.png"} {
		p, err := f.svc.UploadPhoto(ctx, f.techAct, job.ID, name, int64(len(pngBytes)), bytes.NewReader(pngBytes))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	_, err := f.svc.BatchDeletePhotos(ctx, f.techAct, job.ID, nil)
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))

	_, err = f.svc.BatchDeletePhotos(ctx, f.techAct, job.ID, []uuid.UUID{uuid.New()})
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))

	res, err := f.svc.BatchDeletePhotos(ctx, f.techAct, job.ID, append(ids, uuid.New()))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, res.Deleted)
	assert.Empty(t, res.Failed)
}
