package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"servus-backend/internal/events"
	"servus-backend/internal/handlers"
	"servus-backend/internal/metrics"
	"servus-backend/internal/middleware"
	"servus-backend/internal/models"
)

// Handlers groups every endpoint handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Customer     *handlers.CustomerHandler
	Material     *handlers.MaterialHandler
	Job          *handlers.JobHandler
	Attachment   *handlers.AttachmentHandler
	Invoice      *handlers.InvoiceHandler
	Feedback     *handlers.FeedbackHandler
	Dashboard    *handlers.DashboardHandler
	Technician   *handlers.TechnicianHandler
	Notification *handlers.NotificationHandler
	Health       *handlers.HealthHandler
	Hub          *events.Hub
}

// Options carries the non-handler pieces of the route table.
type Options struct {
	// UploadDir is served under UploadPrefix when photos live on local disk.
	UploadDir    string
	UploadPrefix string
	LoginLimiter *middleware.IPRateLimiter
	GuestLimiter *middleware.IPRateLimiter
}

var (
	management = []models.Role{models.RoleOwner, models.RoleDispatcher, models.RoleAdmin}
	fieldStaff = []models.Role{models.RoleOwner, models.RoleDispatcher, models.RoleAdmin, models.RoleTechnician}
	admins     = []models.Role{models.RoleOwner, models.RoleAdmin}
)

func NewRouter(h Handlers, authMiddleware *middleware.AuthMiddleware, opts Options) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger, middleware.MetricsMiddleware)

	// only lets the request through when the caller holds one of roles
	allow := func(handler http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
		return authMiddleware.RequireRole(roles...)(handler).ServeHTTP
	}

	// Health and metrics (NO AUTHENTICATION REQUIRED)
	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", h.Health.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", h.Health.DetailedHealth).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	if opts.UploadDir != "" {
		prefix := "/" + strings.Trim(opts.UploadPrefix, "/") + "/"
		r.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(opts.UploadDir))))
	}

	// Public API routes
	r.Handle("/auth/login", opts.LoginLimiter.Limit(http.HandlerFunc(h.Auth.Login))).Methods("POST")
	r.Handle("/customers/guest", opts.GuestLimiter.Limit(http.HandlerFunc(h.Customer.GuestRequest))).Methods("POST")
	r.HandleFunc("/technicians/{id}/ratings", h.Feedback.TechnicianRatings).Methods("GET")

	// Protected API routes - Account
	authAPI := r.PathPrefix("/auth").Subrouter()
	authAPI.Use(authMiddleware.Authenticate)
	authAPI.HandleFunc("/change-password", h.Auth.ChangePassword).Methods("PUT")
	authAPI.HandleFunc("/me", h.Auth.Me).Methods("GET")

	// Protected API routes - Users
	usersAPI := r.PathPrefix("/users").Subrouter()
	usersAPI.Use(authMiddleware.Authenticate)
	usersAPI.HandleFunc("", allow(h.User.CreateUser, management...)).Methods("POST")
	usersAPI.HandleFunc("/list", allow(h.User.ListUsers, management...)).Methods("GET")
	usersAPI.HandleFunc("/{id}", allow(h.User.GetUser, management...)).Methods("GET")
	usersAPI.HandleFunc("/{id}", allow(h.User.UpdateUser, management...)).Methods("PUT")
	usersAPI.HandleFunc("/{id}", allow(h.User.DeactivateUser, management...)).Methods("DELETE")

	// Protected API routes - Customers
	customersAPI := r.PathPrefix("/customers").Subrouter()
	customersAPI.Use(authMiddleware.Authenticate)
	customersAPI.HandleFunc("/search", allow(h.Customer.SearchCustomers, fieldStaff...)).Methods("GET")
	customersAPI.HandleFunc("", allow(h.Customer.CreateCustomer, management...)).Methods("POST")
	customersAPI.HandleFunc("/{id}", allow(h.Customer.GetCustomer, fieldStaff...)).Methods("GET")
	customersAPI.HandleFunc("/{id}", allow(h.Customer.UpdateCustomer, management...)).Methods("PUT")
	customersAPI.HandleFunc("/{id}", allow(h.Customer.ArchiveCustomer, management...)).Methods("DELETE")
	customersAPI.HandleFunc("/{id}/restore", allow(h.Customer.RestoreCustomer, management...)).Methods("POST")

	// Protected API routes - Materials catalog
	materialsAPI := r.PathPrefix("/materials").Subrouter()
	materialsAPI.Use(authMiddleware.Authenticate)
	materialsAPI.HandleFunc("/list", allow(h.Material.ListMaterials, fieldStaff...)).Methods("GET")
	materialsAPI.HandleFunc("", allow(h.Material.CreateMaterial, management...)).Methods("POST")
	materialsAPI.HandleFunc("/{id}", allow(h.Material.GetMaterial, fieldStaff...)).Methods("GET")
	materialsAPI.HandleFunc("/{id}", allow(h.Material.UpdateMaterial, management...)).Methods("PUT")
	materialsAPI.HandleFunc("/{id}", allow(h.Material.DeleteMaterial, management...)).Methods("DELETE")
	materialsAPI.HandleFunc("/{id}/refill", allow(h.Material.RefillMaterial, management...)).Methods("POST")

	// Protected API routes - Jobs
	// status, detail and attachments are open to every signed-in role; the
	// service decides whether the caller may see or touch that job
	jobsAPI := r.PathPrefix("/jobs").Subrouter()
	jobsAPI.Use(authMiddleware.Authenticate)
	jobsAPI.HandleFunc("", allow(h.Job.CreateJob, management...)).Methods("POST")
	jobsAPI.HandleFunc("/reassign", allow(h.Job.ReassignJob, management...)).Methods("PUT")
	jobsAPI.HandleFunc("/my", allow(h.Job.MyJobs, models.RoleTechnician)).Methods("GET")
	jobsAPI.HandleFunc("/admin", allow(h.Job.AdminJobs, management...)).Methods("GET")
	jobsAPI.HandleFunc("/unassigned", allow(h.Job.UnassignedJobs, management...)).Methods("GET")
	jobsAPI.HandleFunc("/{id}", h.Job.GetJob).Methods("GET")
	jobsAPI.HandleFunc("/{id}", allow(h.Job.ArchiveJob, management...)).Methods("DELETE")
	jobsAPI.HandleFunc("/{id}/status", allow(h.Job.UpdateStatus, fieldStaff...)).Methods("PUT")
	jobsAPI.HandleFunc("/{id}/activities", h.Job.Activities).Methods("GET")
	jobsAPI.HandleFunc("/{id}/notes", h.Attachment.ListNotes).Methods("GET")
	jobsAPI.HandleFunc("/{id}/notes", allow(h.Attachment.AddNote, models.RoleTechnician)).Methods("POST")
	jobsAPI.HandleFunc("/{id}/notes/{noteId}", allow(h.Attachment.EditNote, models.RoleTechnician)).Methods("PUT")
	jobsAPI.HandleFunc("/{id}/notes/{noteId}", allow(h.Attachment.DeleteNote, fieldStaff...)).Methods("DELETE")
	jobsAPI.HandleFunc("/{id}/materials", h.Attachment.ListMaterials).Methods("GET")
	jobsAPI.HandleFunc("/{id}/photos", h.Attachment.ListPhotos).Methods("GET")
	jobsAPI.HandleFunc("/{id}/photo-upload", allow(h.Attachment.UploadPhoto, fieldStaff...)).Methods("POST")
	jobsAPI.HandleFunc("/{id}/photos/batch-delete", allow(h.Attachment.BatchDeletePhotos, fieldStaff...)).Methods("POST")
	jobsAPI.HandleFunc("/{id}/photos/{photoId}", allow(h.Attachment.DeletePhoto, fieldStaff...)).Methods("DELETE")

	// Protected API routes - Materials consumed on jobs
	jobMaterialsAPI := r.PathPrefix("/job-materials").Subrouter()
	jobMaterialsAPI.Use(authMiddleware.Authenticate)
	jobMaterialsAPI.HandleFunc("", allow(h.Attachment.AssignMaterial, models.RoleTechnician)).Methods("POST")
	jobMaterialsAPI.HandleFunc("/{id}", allow(h.Attachment.UpdateJobMaterial, models.RoleTechnician)).Methods("PUT")
	jobMaterialsAPI.HandleFunc("/{jobId}/material/{materialId}", allow(h.Attachment.RemoveJobMaterial, fieldStaff...)).Methods("DELETE")

	// Protected API routes - Invoices
	invoicesAPI := r.PathPrefix("/invoices").Subrouter()
	invoicesAPI.Use(authMiddleware.Authenticate)
	invoicesAPI.HandleFunc("", allow(h.Invoice.CreateInvoice, management...)).Methods("POST")
	invoicesAPI.HandleFunc("/list", allow(h.Invoice.ListInvoices, management...)).Methods("GET")
	invoicesAPI.HandleFunc("/{jobId}/generate", allow(h.Invoice.GenerateInvoice, fieldStaff...)).Methods("POST")
	invoicesAPI.HandleFunc("/{id}/pay", allow(h.Invoice.MarkPaid, management...)).Methods("PUT")
	invoicesAPI.HandleFunc("/{id}/pdf", h.Invoice.DownloadPDF).Methods("GET")
	invoicesAPI.HandleFunc("/{id}", allow(h.Invoice.GetInvoice, management...)).Methods("GET")

	// Protected API routes - Feedback
	feedbackAPI := r.PathPrefix("/feedback").Subrouter()
	feedbackAPI.Use(authMiddleware.Authenticate)
	feedbackAPI.HandleFunc("", allow(h.Feedback.SubmitFeedback, models.RoleCustomer)).Methods("POST")
	feedbackAPI.HandleFunc("/list", allow(h.Feedback.ListFeedback, management...)).Methods("GET")
	feedbackAPI.HandleFunc("/job/{jobId}", allow(h.Feedback.FeedbackForJob, fieldStaff...)).Methods("GET")
	feedbackAPI.HandleFunc("/{jobId}", allow(h.Feedback.FeedbackForJob, models.RoleCustomer)).Methods("GET")

	// Protected API routes - Dashboard
	dashboardAPI := r.PathPrefix("/dashboard").Subrouter()
	dashboardAPI.Use(authMiddleware.Authenticate, authMiddleware.RequireRole(management...))
	dashboardAPI.HandleFunc("/summary", h.Dashboard.Summary).Methods("GET")
	dashboardAPI.HandleFunc("/job-summary", h.Dashboard.JobSummary).Methods("GET")
	dashboardAPI.HandleFunc("/revenue-summary", h.Dashboard.RevenueSummary).Methods("GET")
	dashboardAPI.HandleFunc("/technician-activity", h.Dashboard.TechnicianActivity).Methods("GET")
	dashboardAPI.HandleFunc("/job-trends", h.Dashboard.JobTrends).Methods("GET")
	dashboardAPI.HandleFunc("/customer-satisfaction", h.Dashboard.CustomerSatisfaction).Methods("GET")
	dashboardAPI.HandleFunc("/technician-performance", h.Dashboard.TechnicianPerformance).Methods("GET")

	// Protected API routes - Technicians
	techniciansAPI := r.PathPrefix("/technicians").Subrouter()
	techniciansAPI.Use(authMiddleware.Authenticate)
	techniciansAPI.HandleFunc("", allow(h.Technician.ListTechnicians, management...)).Methods("GET")
	techniciansAPI.HandleFunc("/location", allow(h.Technician.UpdateLocation, models.RoleTechnician)).Methods("POST")
	techniciansAPI.HandleFunc("/availability", allow(h.Technician.UpdateAvailability, models.RoleTechnician)).Methods("PUT")
	techniciansAPI.HandleFunc("/job-performance", allow(h.Technician.JobPerformance, models.RoleTechnician)).Methods("GET")
	techniciansAPI.HandleFunc("/my-feedback", allow(h.Feedback.MyFeedback, models.RoleTechnician)).Methods("GET")

	// Protected API routes - Notification outbox
	notificationsAPI := r.PathPrefix("/notifications").Subrouter()
	notificationsAPI.Use(authMiddleware.Authenticate, authMiddleware.RequireRole(admins...))
	notificationsAPI.HandleFunc("/failed", h.Notification.ListFailed).Methods("GET")
	notificationsAPI.HandleFunc("/{id}/retry", h.Notification.Retry).Methods("POST")

	// Live job feed for dispatch boards
	wsAPI := r.PathPrefix("/ws").Subrouter()
	wsAPI.Use(authMiddleware.Authenticate)
	wsAPI.HandleFunc("/jobs", allow(h.Hub.ServeWS, management...)).Methods("GET")

	return r
}
