package utils

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

// PathUUID parses a mux path variable as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperr.ValidationFields("invalid id", map[string]string{name: "must be a UUID"})
	}
	return id, nil
}

// Query wraps URL query parameters and collects parse failures per field.
type Query struct {
	values map[string][]string
	errs   apperr.FieldErrors
}

func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query(), errs: apperr.FieldErrors{}}
}

func (q *Query) String(name string) string {
	if v, ok := q.values[name]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *Query) Int(name string) int {
	raw := q.String(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.errs.Add(name, "must be a whole number")
	}
	return n
}

// IntOr is Int with a fallback for an absent parameter.
func (q *Query) IntOr(name string, def int) int {
	if q.String(name) == "" {
		return def
	}
	return q.Int(name)
}

func (q *Query) Bool(name string) *bool {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.errs.Add(name, "must be true or false")
		return nil
	}
	return &b
}

func (q *Query) UUID(name string) *uuid.UUID {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.errs.Add(name, "must be a UUID")
		return nil
	}
	return &id
}

// Date parses a YYYY-MM-DD value as the start of that UTC day.
func (q *Query) Date(name string) *time.Time {
	raw := q.String(name)
	if raw == "" {
		return nil
	}
	d, err := timeutil.ParseDate(raw)
	if err != nil {
		q.errs.Add(name, "must be a date in YYYY-MM-DD format")
		return nil
	}
	return &d
}

// Page reads page, pageSize, sortBy and desc against the listing's sort set.
func (q *Query) Page(sorts models.SortSet) models.PageRequest {
	p, err := models.NewPageRequest(q.IntOr("page", 1), q.IntOr("pageSize", models.DefaultPageSize))
	q.merge(err)

	sortBy, err := sorts.Parse(q.String("sortBy"))
	q.merge(err)
	p.SortBy = sortBy

	if desc := q.Bool("desc"); desc != nil {
		p.Desc = *desc
	}
	return p
}

func (q *Query) merge(err error) {
	if err == nil {
		return
	}
	if appErr, ok := err.(*apperr.Error); ok {
		for field, msg := range appErr.Fields {
			q.errs.Add(field, msg)
		}
		return
	}
	q.errs.Add("query", err.Error())
}

// Err returns the collected parse failures, if any.
func (q *Query) Err() error {
	return q.errs.Err()
}
