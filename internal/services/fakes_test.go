package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/events"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

// world is an in-memory stand-in for the database. The typed views below
// implement the store interfaces over it, under one lock, so multi-table
// operations behave like the postgres transactions they replace.
type world struct {
	mu           sync.Mutex
	users        map[uuid.UUID]models.User
	techs        map[uuid.UUID]models.Technician
	customers    map[uuid.UUID]models.Customer
	jobs         map[uuid.UUID]models.Job
	materials    map[uuid.UUID]models.Material
	jobMaterials map[uuid.UUID]models.JobMaterial
	notes        map[uuid.UUID]models.JobNote
	photos       map[uuid.UUID]models.JobPhoto
	invoices     map[uuid.UUID]models.Invoice
	feedback     []models.JobFeedback
	emails       map[uuid.UUID]models.QueuedEmail
	activities   []models.JobActivity
	invoiceSeq   int

	// failWith, when set, is returned by the next mutating call.
	failWith error
}

func newWorld() *world {
	return &world{
		users:        map[uuid.UUID]models.User{},
		techs:        map[uuid.UUID]models.Technician{},
		customers:    map[uuid.UUID]models.Customer{},
		jobs:         map[uuid.UUID]models.Job{},
		materials:    map[uuid.UUID]models.Material{},
		jobMaterials: map[uuid.UUID]models.JobMaterial{},
		notes:        map[uuid.UUID]models.JobNote{},
		photos:       map[uuid.UUID]models.JobPhoto{},
		invoices:     map[uuid.UUID]models.Invoice{},
		emails:       map[uuid.UUID]models.QueuedEmail{},
	}
}

func (w *world) injected() error {
	err := w.failWith
	w.failWith = nil
	return err
}

func (w *world) activitiesFor(jobID uuid.UUID, kind models.ActivityType) []models.JobActivity {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.JobActivity
	for _, a := range w.activities {
		if a.JobID == jobID && (kind == "" || a.ActivityType == kind) {
			out = append(out, a)
		}
	}
	return out
}

// lockJob mirrors the repository guard used by attachment mutations.
func (w *world) lockJob(id uuid.UUID) (models.Job, error) {
	j, ok := w.jobs[id]
	if !ok {
		return j, apperr.NotFound("job")
	}
	if j.IsDeleted {
		return j, apperr.Conflict("job is archived")
	}
	return j, nil
}

func page[T any](items []T, p models.PageRequest) models.Page[T] {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = models.DefaultPageSize
	}
	total := len(items)
	start := min(p.Offset(), total)
	end := min(start+p.PageSize, total)
	return models.NewPage(items[start:end], total, p)
}

// ---- users ----

type userStore struct{ *world }

func (s userStore) Create(_ context.Context, u *models.User, tech *models.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("a user with this email already exists")
		}
	}
	s.users[u.ID] = *u
	if tech != nil {
		s.techs[tech.ID] = *tech
	}
	return nil
}

func (s userStore) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (s userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (s userStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s userStore) Update(_ context.Context, u *models.User, tech *models.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	if _, ok := s.users[u.ID]; !ok {
		return apperr.NotFound("user")
	}
	s.users[u.ID] = *u
	if tech != nil {
		s.techs[tech.ID] = *tech
	}
	return nil
}

func (s userStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string, stamp models.Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.PasswordHash = hash
	u.ModifiedAt = stamp.ModifiedAt
	s.users[id] = u
	return nil
}

func (s userStore) Deactivate(_ context.Context, id uuid.UUID, _ models.Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.IsActive = false
	s.users[id] = u
	return nil
}

func (s userStore) List(_ context.Context, f models.UserFilter) (models.Page[models.User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if f.Role == "" || u.Role == f.Role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return page(out, f.Page), nil
}

// ---- technicians ----

type techStore struct{ *world }

func (s techStore) Get(_ context.Context, id uuid.UUID) (*models.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.techs[id]
	if !ok || t.IsDeleted {
		return nil, apperr.NotFound("technician")
	}
	return &t, nil
}

func (s techStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.techs {
		if t.UserID == userID {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("technician")
}

func (s techStore) List(context.Context) ([]models.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Technician, 0, len(s.techs))
	for _, t := range s.techs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s techStore) UpdateLocation(_ context.Context, id uuid.UUID, lat, lng float64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.techs[id]
	if !ok {
		return apperr.NotFound("technician")
	}
	t.CurrentLatitude, t.CurrentLongitude = &lat, &lng
	s.techs[id] = t
	return nil
}

func (s techStore) UpdateAvailability(_ context.Context, id uuid.UUID, available bool, _ models.Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.techs[id]
	if !ok {
		return apperr.NotFound("technician")
	}
	t.IsAvailable = available
	s.techs[id] = t
	return nil
}

// ---- customers ----

type customerStore struct{ *world }

func (s customerStore) Create(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.customers[c.ID] = *c
	return nil
}

func (s customerStore) Get(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer")
	}
	return &c, nil
}

func (s customerStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.UserID != nil && *c.UserID == userID {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("customer")
}

func (s customerStore) Update(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = *c
	return nil
}

func (s customerStore) SetArchived(_ context.Context, id uuid.UUID, archived bool, _ models.Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok || c.IsDeleted == archived {
		return apperr.NotFound("customer")
	}
	c.IsDeleted = archived
	c.IsActive = !archived
	s.customers[id] = c
	return nil
}

func (s customerStore) Search(_ context.Context, f models.CustomerFilter) (models.Page[models.Customer], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Customer
	for _, c := range s.customers {
		if !c.IsDeleted && strings.Contains(strings.ToLower(c.FullName), strings.ToLower(f.Query)) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return page(out, f.Page), nil
}

// ---- jobs ----

type jobStore struct{ *world }

func (s jobStore) Create(_ context.Context, j *models.Job, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.jobs[j.ID] = *j
	s.activities = append(s.activities, a)
	return nil
}

func (s jobStore) CreateGuestRequest(_ context.Context, c *models.Customer, j *models.Job, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.customers[c.ID] = *c
	s.jobs[j.ID] = *j
	s.activities = append(s.activities, a)
	return nil
}

func (s jobStore) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job")
	}
	if j.TechnicianID != nil {
		t := s.techs[*j.TechnicianID]
		j.TechnicianName, j.TechnicianEmail = t.FullName, t.Email
	}
	c := s.customers[j.CustomerID]
	j.CustomerName, j.CustomerEmail = c.FullName, c.Email
	return &j, nil
}

func (s jobStore) Reassign(_ context.Context, jobID uuid.UUID, from *uuid.UUID, to uuid.UUID, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	j, ok := s.jobs[jobID]
	sameFrom := (from == nil && j.TechnicianID == nil) || (from != nil && j.TechnicianID != nil && *from == *j.TechnicianID)
	if !ok || j.IsDeleted || j.Status != models.JobScheduled || !sameFrom {
		return apperr.Conflict("job was modified by another request; reload and try again")
	}
	j.TechnicianID = &to
	j.IsAssigned = true
	s.jobs[jobID] = j
	s.activities = append(s.activities, a)
	return nil
}

func (s jobStore) ChangeStatus(_ context.Context, sc models.StatusChange, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	j, ok := s.jobs[sc.JobID]
	if !ok || j.IsDeleted || j.Status != sc.From {
		return apperr.Conflict("job was modified by another request; reload and try again")
	}
	j.Status = sc.To
	at := sc.At
	switch sc.To {
	case models.JobStarted:
		j.StartedAt = &at
	case models.JobCompleted:
		j.CompletedAt = &at
	}
	s.jobs[sc.JobID] = j
	s.activities = append(s.activities, a)
	return nil
}

func (s jobStore) Archive(_ context.Context, jobID uuid.UUID, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return apperr.NotFound("job")
	}
	if j.IsDeleted || j.Status == models.JobCompleted {
		return apperr.Conflict("job is already archived or completed")
	}
	j.IsDeleted = true
	j.IsActive = false
	s.jobs[jobID] = j
	s.activities = append(s.activities, a)
	return nil
}

func (s jobStore) List(_ context.Context, f models.JobFilter) (models.Page[models.Job], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, j := range s.jobs {
		switch {
		case j.IsDeleted:
		case f.Status != "" && j.Status != f.Status:
		case f.TechnicianID != nil && !j.AssignedTo(*f.TechnicianID):
		case f.Unassigned && j.TechnicianID != nil:
		case f.Keyword != "" && !strings.Contains(strings.ToLower(j.Title), strings.ToLower(f.Keyword)):
		default:
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].ScheduledAt.Equal(out[k].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[k].ScheduledAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return page(out, f.Page), nil
}

func (s jobStore) Activities(_ context.Context, jobID uuid.UUID) ([]models.JobActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobActivity
	for _, a := range s.activities {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ---- materials ----

type materialStore struct{ *world }

func (s materialStore) Create(_ context.Context, m *models.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[m.ID] = *m
	return nil
}

func (s materialStore) Get(_ context.Context, id uuid.UUID) (*models.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok {
		return nil, apperr.NotFound("material")
	}
	return &m, nil
}

func (s materialStore) Update(_ context.Context, m *models.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[m.ID] = *m
	return nil
}

func (s materialStore) Refill(_ context.Context, id uuid.UUID, quantity int, _ models.Lifecycle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.IsDeleted {
		return 0, apperr.NotFound("material")
	}
	m.StockQuantity += quantity
	s.materials[id] = m
	return m.StockQuantity, nil
}

func (s materialStore) SoftDelete(_ context.Context, id uuid.UUID, _ models.Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.IsDeleted {
		return apperr.NotFound("material")
	}
	m.IsDeleted, m.IsActive = true, false
	s.materials[id] = m
	return nil
}

func (s materialStore) List(_ context.Context, f models.MaterialFilter) (models.Page[models.Material], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Material
	for _, m := range s.materials {
		if !m.IsDeleted {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, f.Page), nil
}

func (w *world) stock(id uuid.UUID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.materials[id].StockQuantity
}

// ---- job materials ----

type jobMaterialStore struct{ *world }

func (s jobMaterialStore) Assign(_ context.Context, jm *models.JobMaterial, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	j, err := s.lockJob(jm.JobID)
	if err != nil {
		return err
	}
	if j.Status != models.JobStarted && j.Status != models.JobCompleted {
		return apperr.Conflict("materials can only be added to started or completed jobs")
	}
	m, ok := s.materials[jm.MaterialID]
	if !ok || m.IsDeleted || !m.IsActive {
		return apperr.NotFound("material")
	}
	if m.StockQuantity < jm.QuantityUsed {
		return apperr.Conflict("insufficient stock")
	}
	m.StockQuantity -= jm.QuantityUsed
	s.materials[m.ID] = m
	jm.UnitPrice = m.UnitPrice
	s.jobMaterials[jm.ID] = *jm
	s.activities = append(s.activities, a)
	return nil
}

func (s jobMaterialStore) UpdateQuantity(_ context.Context, id uuid.UUID, quantity int, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jm, ok := s.jobMaterials[id]
	if !ok {
		return apperr.NotFound("job material")
	}
	if _, err := s.lockJob(jm.JobID); err != nil {
		return err
	}
	m := s.materials[jm.MaterialID]
	delta := quantity - jm.QuantityUsed
	if delta > m.StockQuantity {
		return apperr.Conflict("insufficient stock")
	}
	m.StockQuantity -= delta
	s.materials[m.ID] = m
	jm.QuantityUsed = quantity
	s.jobMaterials[id] = jm
	s.activities = append(s.activities, a)
	return nil
}

func (s jobMaterialStore) Remove(_ context.Context, jobID, materialID uuid.UUID, a models.JobActivity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lockJob(jobID); err != nil {
		return 0, err
	}
	returned := 0
	for id, jm := range s.jobMaterials {
		if jm.JobID == jobID && jm.MaterialID == materialID {
			returned += jm.QuantityUsed
			delete(s.jobMaterials, id)
		}
	}
	if returned == 0 {
		return 0, apperr.NotFound("job material")
	}
	m := s.materials[materialID]
	m.StockQuantity += returned
	s.materials[materialID] = m
	s.activities = append(s.activities, a)
	return returned, nil
}

func (s jobMaterialStore) Get(_ context.Context, id uuid.UUID) (*models.JobMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jm, ok := s.jobMaterials[id]
	if !ok {
		return nil, apperr.NotFound("job material")
	}
	return &jm, nil
}

func (s jobMaterialStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]models.JobMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobMaterial
	for _, jm := range s.jobMaterials {
		if jm.JobID == jobID {
			out = append(out, jm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- notes and photos ----

type noteStore struct{ *world }

func (s noteStore) Add(_ context.Context, n *models.JobNote, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lockJob(n.JobID); err != nil {
		return err
	}
	s.notes[n.ID] = *n
	s.activities = append(s.activities, a)
	return nil
}

func (s noteStore) Get(_ context.Context, id uuid.UUID) (*models.JobNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, apperr.NotFound("note")
	}
	return &n, nil
}

func (s noteStore) Edit(_ context.Context, n *models.JobNote, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lockJob(n.JobID); err != nil {
		return err
	}
	s.notes[n.ID] = *n
	s.activities = append(s.activities, a)
	return nil
}

func (s noteStore) Delete(_ context.Context, jobID, noteID uuid.UUID, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lockJob(jobID); err != nil {
		return err
	}
	delete(s.notes, noteID)
	s.activities = append(s.activities, a)
	return nil
}

func (s noteStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]models.JobNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobNote
	for _, n := range s.notes {
		if n.JobID == jobID {
			out = append(out, n)
		}
	}
	return out, nil
}

type photoStore struct{ *world }

func (s photoStore) Add(_ context.Context, p *models.JobPhoto, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	if _, err := s.lockJob(p.JobID); err != nil {
		return err
	}
	s.photos[p.ID] = *p
	s.activities = append(s.activities, a)
	return nil
}

func (s photoStore) Get(_ context.Context, id uuid.UUID) (*models.JobPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, apperr.NotFound("photo")
	}
	return &p, nil
}

func (s photoStore) Delete(_ context.Context, p *models.JobPhoto, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.photos, p.ID)
	s.activities = append(s.activities, a)
	return nil
}

func (s photoStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]models.JobPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobPhoto
	for _, p := range s.photos {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ---- invoices ----

type invoiceStore struct{ *world }

func (s invoiceStore) Create(_ context.Context, inv *models.Invoice, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lockJob(inv.JobID); err != nil {
		return err
	}
	for _, existing := range s.invoices {
		if existing.JobID == inv.JobID {
			return apperr.Conflict("an invoice already exists for this job")
		}
	}
	s.invoiceSeq++
	inv.InvoiceNumber = fmt.Sprintf("INV-%06d", s.invoiceSeq)
	s.invoices[inv.ID] = *inv
	s.activities = append(s.activities, a)
	return nil
}

func (s invoiceStore) Get(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}
	return &inv, nil
}

func (s invoiceStore) ExistsForJob(_ context.Context, jobID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (s invoiceStore) MarkPaid(_ context.Context, inv *models.Invoice, paidAt time.Time, paidBy *uuid.UUID, a models.JobActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[inv.ID]
	if !ok {
		return apperr.NotFound("invoice")
	}
	if stored.IsPaid {
		return apperr.Conflict("invoice already paid")
	}
	stored.IsPaid, stored.PaidAt, stored.PaidBy = true, &paidAt, paidBy
	s.invoices[inv.ID] = stored
	s.activities = append(s.activities, a)
	*inv = stored
	return nil
}

func (s invoiceStore) List(_ context.Context, f models.InvoiceFilter) (models.Page[models.Invoice], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Invoice
	for _, inv := range s.invoices {
		if f.CustomerID == nil || inv.CustomerID == *f.CustomerID {
			out = append(out, inv)
		}
	}
	return page(out, f.Page), nil
}

// ---- feedback ----

type feedbackStore struct{ *world }

func (s feedbackStore) Create(_ context.Context, f *models.JobFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.feedback {
		if existing.JobID == f.JobID && existing.CustomerID == f.CustomerID {
			return apperr.Conflict("feedback already submitted for this job")
		}
	}
	s.feedback = append(s.feedback, *f)
	return nil
}

func (s feedbackStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]models.JobFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobFeedback
	for _, f := range s.feedback {
		if f.JobID == jobID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s feedbackStore) ListByTechnician(_ context.Context, technicianID uuid.UUID) ([]models.JobFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobFeedback
	for _, f := range s.feedback {
		if j, ok := s.jobs[f.JobID]; ok && j.AssignedTo(technicianID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s feedbackStore) List(_ context.Context, f models.FeedbackFilter) (models.Page[models.JobFeedback], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(append([]models.JobFeedback(nil), s.feedback...), f.Page), nil
}

// ---- emails ----

type emailStore struct{ *world }

func (s emailStore) Enqueue(_ context.Context, e *models.QueuedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.emails[e.ID] = *e
	return nil
}

func (s emailStore) Claim(_ context.Context, worker string, limit, maxRetries int, now time.Time) ([]models.QueuedEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueuedEmail
	for id, e := range s.emails {
		if e.IsSent || e.DeadLetteredAt != nil || e.ClaimedBy != "" || e.RetryCount >= maxRetries {
			continue
		}
		e.ClaimedBy, e.ClaimedAt = worker, &now
		s.emails[id] = e
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		for _, e := range out[limit:] {
			e.ClaimedBy, e.ClaimedAt = "", nil
			s.emails[e.ID] = e
		}
		out = out[:limit]
	}
	return out, nil
}

func (s emailStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.emails[id]
	e.IsSent, e.SentAt, e.ClaimedBy = true, &at, ""
	s.emails[id] = e
	return nil
}

func (s emailStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, maxRetries int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.emails[id]
	e.RetryCount++
	e.LastError, e.ClaimedBy, e.ClaimedAt = reason, "", nil
	if e.RetryCount >= maxRetries {
		e.DeadLetteredAt = &at
	}
	s.emails[id] = e
	return e.DeadLetteredAt != nil, nil
}

func (s emailStore) ReleaseStale(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.emails {
		if e.ClaimedAt != nil && e.ClaimedAt.Before(olderThan) && !e.IsSent {
			e.ClaimedBy, e.ClaimedAt = "", nil
			s.emails[id] = e
			n++
		}
	}
	return n, nil
}

func (s emailStore) ListDeadLettered(_ context.Context, p models.PageRequest) (models.Page[models.QueuedEmail], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueuedEmail
	for _, e := range s.emails {
		if e.DeadLetteredAt != nil {
			out = append(out, e)
		}
	}
	return page(out, p), nil
}

func (s emailStore) Requeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[id]
	if !ok || e.DeadLetteredAt == nil || e.IsSent {
		return apperr.NotFound("failed email")
	}
	e.RetryCount, e.DeadLetteredAt, e.LastError = 0, nil, ""
	s.emails[id] = e
	return nil
}

// ---- collaborators ----

type recordingBus struct {
	mu     sync.Mutex
	events []events.JobEvent
}

func (b *recordingBus) Publish(_ context.Context, ev events.JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) kinds() []events.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Kind, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Kind
	}
	return out
}

type memStorage struct {
	mu       sync.Mutex
	files    map[string][]byte
	failSave bool
	failDel  bool
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (m *memStorage) Save(_ context.Context, folder, filename, _ string, body io.Reader) (string, error) {
	if m.failSave {
		return "", errors.New("bucket unreachable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "/uploads/" + folder + "/" + uuid.NewString() + "_" + filename
	m.files[url] = data
	return url, nil
}

func (m *memStorage) Delete(_ context.Context, url string) error {
	if m.failDel {
		return errors.New("bucket unreachable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, url)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]models.RatingSummary
}

func (c *memCache) GetRatingSummary(_ context.Context, id uuid.UUID) (*models.RatingSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	return &s, ok
}

func (c *memCache) SetRatingSummary(_ context.Context, s *models.RatingSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.TechnicianID] = *s
}

func (c *memCache) InvalidateRatingSummary(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// ---- fixtures ----

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func testRecorder() *audit.Recorder {
	return audit.NewRecorder(timeutil.Fixed(testNow))
}

var (
	ownerActor      = models.ActorIdentity{UserID: uuid.New(), DisplayName: "Olivia Owner", Role: models.RoleOwner}
	dispatcherActor = models.ActorIdentity{UserID: uuid.New(), DisplayName: "Dan Dispatch", Role: models.RoleDispatcher}
)

func (w *world) addTechnician(name string) (models.Technician, models.ActorIdentity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := models.User{ID: uuid.New(), FullName: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@servus.test", Role: models.RoleTechnician}
	u.IsActive = true
	t := models.Technician{ID: uuid.New(), UserID: u.ID, FullName: name, Email: u.Email, IsAvailable: true}
	t.IsActive = true
	w.users[u.ID] = u
	w.techs[t.ID] = t
	return t, u.Actor()
}

func (w *world) addCustomer(name, email string) (models.Customer, models.ActorIdentity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := models.User{ID: uuid.New(), FullName: name, Email: email, Role: models.RoleCustomer}
	u.IsActive = true
	uid := u.ID
	c := models.Customer{ID: uuid.New(), UserID: &uid, FullName: name, Email: email}
	c.IsActive = true
	w.users[u.ID] = u
	w.customers[c.ID] = c
	return c, u.Actor()
}

func (w *world) addMaterial(name string, price string, stock int) models.Material {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := models.Material{ID: uuid.New(), Name: name, Unit: "pcs", UnitPrice: mustDecimal(price), StockQuantity: stock}
	m.IsActive = true
	w.materials[m.ID] = m
	return m
}

// addJob inserts a job directly, bypassing the schedule window check.
func (w *world) addJob(customer models.Customer, tech *models.Technician, status models.JobStatus, scheduledAt time.Time) models.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	j := models.Job{
		ID:          uuid.New(),
		CustomerID:  customer.ID,
		Title:       "Fix boiler",
		Status:      status,
		ScheduledAt: scheduledAt,
	}
	j.IsActive = true
	if tech != nil {
		id := tech.ID
		j.TechnicianID = &id
		j.IsAssigned = true
	}
	w.jobs[j.ID] = j
	return j
}

func (w *world) job(id uuid.UUID) models.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.jobs[id]
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
