// Package memory holds in-process repositories with the same semantics as
// the Postgres ones, including the one-open-interval constraint.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type Store struct {
	mu          sync.RWMutex
	employees   map[uuid.UUID]domain.Employee
	locations   map[uuid.UUID]domain.Location
	enrollments map[uuid.UUID]domain.FaceEnrollment // by employee
	intervals   map[uuid.UUID]domain.AttendanceInterval
	seq         int64
	order       map[uuid.UUID]int64 // enrollment insertion order
}

func NewStore() *Store {
	return &Store{
		employees:   make(map[uuid.UUID]domain.Employee),
		locations:   make(map[uuid.UUID]domain.Location),
		enrollments: make(map[uuid.UUID]domain.FaceEnrollment),
		intervals:   make(map[uuid.UUID]domain.AttendanceInterval),
		order:       make(map[uuid.UUID]int64),
	}
}

func (s *Store) Employees() *EmployeeRepository     { return &EmployeeRepository{s: s} }
func (s *Store) Locations() *LocationRepository     { return &LocationRepository{s: s} }
func (s *Store) Enrollments() *EnrollmentRepository { return &EnrollmentRepository{s: s} }
func (s *Store) Attendance() *AttendanceRepository  { return &AttendanceRepository{s: s} }

// PutEmployee inserts or replaces an employee.
func (s *Store) PutEmployee(e domain.Employee) domain.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.employees[e.ID] = e
	return e
}

func (s *Store) PutLocation(l domain.Location) domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.locations[l.ID] = l
	return l
}

// PutInterval stores an interval as is, bypassing the open-interval check.
// Useful to reproduce legacy data with several open intervals.
func (s *Store) PutInterval(a domain.AttendanceInterval) domain.AttendanceInterval {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.intervals[a.ID] = a
	return a
}

// Intervals returns every interval of the employee, oldest first.
func (s *Store) Intervals(employeeID uuid.UUID) []domain.AttendanceInterval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AttendanceInterval
	for _, a := range s.intervals {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

type EmployeeRepository struct{ s *Store }

func (r *EmployeeRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.employees[id]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	return &e, nil
}

func (r *EmployeeRepository) GetByToken(_ context.Context, token string) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if token == "" {
		return nil, domain.ErrEmployeeNotFound
	}
	for _, e := range r.s.employees {
		if e.BadgeToken == token {
			return &e, nil
		}
	}
	return nil, domain.ErrEmployeeNotFound
}

type LocationRepository struct{ s *Store }

func (r *LocationRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.locations[id]
	if !ok {
		return nil, domain.ErrLocationNotFound
	}
	return &l, nil
}

type EnrollmentRepository struct{ s *Store }

func (r *EnrollmentRepository) Upsert(_ context.Context, e *domain.FaceEnrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	if prev, ok := r.s.enrollments[e.EmployeeID]; ok {
		e.ID = prev.ID
		e.CreatedAt = prev.CreatedAt
	} else {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CreatedAt = now
		r.s.seq++
		r.s.order[e.EmployeeID] = r.s.seq
	}
	if e.Dimension == 0 {
		e.Dimension = len(e.Embedding)
	}
	e.UpdatedAt = now

	stored := *e
	stored.Embedding = append([]float64(nil), e.Embedding...)
	r.s.enrollments[e.EmployeeID] = stored
	return nil
}

func (r *EnrollmentRepository) GetByEmployee(_ context.Context, employeeID uuid.UUID) (*domain.FaceEnrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.enrollments[employeeID]
	if !ok {
		return nil, domain.ErrEnrollmentNotFound
	}
	e.Embedding = append([]float64(nil), e.Embedding...)
	return &e, nil
}

// ListGallery returns a copy; later writes never show up in a returned slice.
func (r *EnrollmentRepository) ListGallery(_ context.Context, locationID *uuid.UUID) ([]domain.GalleryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var gallery []domain.GalleryEntry
	for employeeID, enr := range r.s.enrollments {
		emp, ok := r.s.employees[employeeID]
		if !ok || !emp.IsActive {
			continue
		}
		if locationID != nil && emp.LocationID != nil && *emp.LocationID != *locationID {
			continue
		}
		enr.Embedding = append([]float64(nil), enr.Embedding...)
		gallery = append(gallery, domain.GalleryEntry{Employee: emp, Enrollment: enr})
	}

	sort.Slice(gallery, func(i, j int) bool {
		return r.s.order[gallery[i].Employee.ID] < r.s.order[gallery[j].Employee.ID]
	})
	return gallery, nil
}

func (r *EnrollmentRepository) Delete(_ context.Context, employeeID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.enrollments[employeeID]; !ok {
		return domain.ErrEnrollmentNotFound
	}
	delete(r.s.enrollments, employeeID)
	delete(r.s.order, employeeID)
	return nil
}

type AttendanceRepository struct{ s *Store }

func (r *AttendanceRepository) FindOpen(_ context.Context, employeeID uuid.UUID) ([]domain.AttendanceInterval, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var open []domain.AttendanceInterval
	for _, a := range r.s.intervals {
		if a.EmployeeID == employeeID && a.IsOpen() {
			open = append(open, a)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartedAt.After(open[j].StartedAt) })
	return open, nil
}

func (r *AttendanceRepository) Open(_ context.Context, a *domain.AttendanceInterval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.intervals {
		if existing.EmployeeID == a.EmployeeID && existing.IsOpen() {
			return domain.ErrAlreadyCheckedIn
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.intervals[a.ID] = *a
	return nil
}

func (r *AttendanceRepository) Close(_ context.Context, id uuid.UUID, endedAt time.Time, breakDuration time.Duration) (*domain.AttendanceInterval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.intervals[id]
	if !ok || !a.IsOpen() {
		return nil, domain.ErrIntervalNotOpen
	}

	a.EndedAt = &endedAt
	a.BreakDuration = breakDuration
	r.s.intervals[id] = a
	return &a, nil
}
