package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/face"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/guard"
	"github.com/saturnino-fabrica-de-software/ponto/internal/observability"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
	"github.com/saturnino-fabrica-de-software/ponto/internal/queue"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

const (
	DefaultBreak                 = 30 * time.Minute
	DefaultRecheckCooldown       = time.Minute
	DefaultExtractionTimeout     = 10 * time.Second
	DefaultMaxExtractionFailures = 3

	publishTimeout = 5 * time.Second
)

// Policy holds the tunables of the check-in state machine.
type Policy struct {
	LoginThreshold        float64
	DefaultBreak          time.Duration
	RecheckCooldown       time.Duration
	ExtractionTimeout     time.Duration
	MaxExtractionFailures int
}

func DefaultPolicy() Policy {
	return Policy{
		LoginThreshold:        face.LoginThreshold,
		DefaultBreak:          DefaultBreak,
		RecheckCooldown:       DefaultRecheckCooldown,
		ExtractionTimeout:     DefaultExtractionTimeout,
		MaxExtractionFailures: DefaultMaxExtractionFailures,
	}
}

// CheckInDeps are the collaborators of the check-in service. Publisher,
// Broadcaster and Audit are optional.
type CheckInDeps struct {
	Employees   EmployeeRepository
	Enrollments EnrollmentRepository
	Locations   LocationRepository
	Attendance  AttendanceRepository
	Gate        provider.QualityGate
	Extractor   EmbeddingExtractor
	Geofence    *geo.Validator
	Guard       guard.TerminalGuard
	Publisher   queue.Publisher
	Broadcaster Broadcaster
	Audit       audit.Logger
	Logger      *slog.Logger
	Now         func() time.Time
}

// CheckInRequest is one scan at a kiosk. Exactly one of Token or Image
// must be set.
type CheckInRequest struct {
	TerminalID  uuid.UUID
	LocationID  uuid.UUID
	Token       string
	Image       []byte
	ContentType string
	Threshold   *float64
	Position    geo.PositionSource
	Note        string
	IPAddress   string
}

func (r CheckInRequest) Method() domain.IdentificationMethod {
	if len(r.Image) > 0 {
		return domain.MethodFace
	}
	return domain.MethodToken
}

// CheckInService toggles the attendance state of whoever is identified at
// a kiosk: OUT becomes IN (inside the geofence) and IN becomes OUT.
type CheckInService struct {
	employees   EmployeeRepository
	locations   LocationRepository
	attendance  AttendanceRepository
	pipeline    *facePipeline
	geofence    *geo.Validator
	guard       guard.TerminalGuard
	publisher   queue.Publisher
	broadcaster Broadcaster
	auditLogger audit.Logger
	logger      *slog.Logger
	now         func() time.Time
	policy      Policy

	failuresMu sync.Mutex
	failures   map[uuid.UUID]int
}

func NewCheckInService(deps CheckInDeps, policy Policy) *CheckInService {
	logger := deps.Logger.With("component", "checkin")

	if policy.MaxExtractionFailures < 1 {
		policy.MaxExtractionFailures = DefaultMaxExtractionFailures
	}

	s := &CheckInService{
		employees:   deps.Employees,
		locations:   deps.Locations,
		attendance:  deps.Attendance,
		pipeline:    newFacePipeline(deps.Gate, deps.Extractor, deps.Enrollments, policy.ExtractionTimeout, logger),
		geofence:    deps.Geofence,
		guard:       deps.Guard,
		publisher:   deps.Publisher,
		broadcaster: deps.Broadcaster,
		auditLogger: deps.Audit,
		logger:      logger,
		now:         deps.Now,
		policy:      policy,
		failures:    make(map[uuid.UUID]int),
	}

	if s.geofence == nil {
		s.geofence = geo.NewValidator(geo.DefaultPositionTimeout, deps.Logger)
	}
	if s.guard == nil {
		s.guard = guard.NewLocal()
	}
	if s.publisher == nil {
		s.publisher = queue.NoOpPublisher{}
	}
	if s.broadcaster == nil {
		s.broadcaster = noopBroadcaster{}
	}
	if s.auditLogger == nil {
		s.auditLogger = &audit.NoOpLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Process runs one scan through the state machine. It never returns an
// error: every failure is reported as a reason code on the result.
func (s *CheckInService) Process(ctx context.Context, req CheckInRequest) *domain.CheckInResult {
	start := time.Now()
	method := req.Method()

	result := s.process(ctx, req)
	if result.Method == "" {
		result.Method = method
	}

	observability.CheckIns.WithLabelValues(string(method), string(result.Reason)).Inc()
	observability.StageDuration.WithLabelValues("checkin").Observe(time.Since(start).Seconds())

	level := slog.LevelInfo
	if !result.Success {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "check-in processed",
		slog.String("terminal_id", req.TerminalID.String()),
		slog.String("method", string(method)),
		slog.String("reason_code", string(result.Reason)),
		slog.Bool("rearm", result.Rearm),
		slog.Duration("duration", time.Since(start)),
	)

	if result.Reason != domain.ReasonTerminalBusy {
		s.audit(ctx, req, result)
	}
	return result
}

func (s *CheckInService) process(ctx context.Context, req CheckInRequest) *domain.CheckInResult {
	if (req.Token == "") == (len(req.Image) == 0) {
		return domain.Failure(domain.ReasonInvalidRequest, "exactly one of token or image is required")
	}

	release, acquired, err := s.guard.TryAcquire(ctx, req.TerminalID)
	if err != nil {
		s.logger.ErrorContext(ctx, "terminal guard unavailable",
			slog.String("terminal_id", req.TerminalID.String()),
			slog.String("error", err.Error()),
		)
		return domain.Failure(domain.ReasonTerminalBusy, "terminal guard unavailable")
	}
	if !acquired {
		return domain.Failure(domain.ReasonTerminalBusy, "terminal is processing another scan")
	}
	defer release()

	emp, similarity, failure := s.resolve(ctx, req)
	if failure != nil {
		return failure
	}

	if !emp.IsActive {
		result := domain.Failure(domain.ReasonIdentityInactive, "employee is inactive")
		result.Rearm = false
		s.identify(result, emp, similarity)
		return result
	}

	now := s.now()

	open, err := s.attendance.FindOpen(ctx, emp.ID)
	if err != nil {
		return s.persistenceFailure(ctx, emp, similarity, "load open intervals", err)
	}

	var anomaly string
	if len(open) > 1 {
		anomaly = domain.AnomalyMultipleOpenIntervals
		s.reportAnomaly(ctx, req, emp, open)
	}

	var result *domain.CheckInResult
	if len(open) > 0 {
		result = s.checkOut(ctx, emp, &open[0], now)
	} else {
		result = s.checkIn(ctx, req, emp, now)
	}

	s.identify(result, emp, similarity)
	result.Method = req.Method()
	result.Anomaly = anomaly
	if result.Success {
		s.notify(ctx, req, result)
	}
	return result
}

// resolve identifies the employee behind the scan.
func (s *CheckInService) resolve(ctx context.Context, req CheckInRequest) (*domain.Employee, *float64, *domain.CheckInResult) {
	if req.Token != "" {
		emp, err := s.employees.GetByToken(ctx, req.Token)
		if err != nil {
			if errors.Is(err, domain.ErrEmployeeNotFound) {
				return nil, nil, domain.Failure(domain.ReasonUnknownToken, "no employee holds this token")
			}
			return nil, nil, domain.Failure(domain.ReasonPersistenceError, "failed to look up token")
		}
		return emp, nil, nil
	}

	threshold, err := validThreshold(req.Threshold, s.policy.LoginThreshold)
	if err != nil {
		return nil, nil, domain.Failure(domain.ReasonInvalidRequest, err.Error())
	}

	probe, err := s.pipeline.embed(ctx, req.Image, req.ContentType)
	switch {
	case errors.Is(err, domain.ErrInvalidImage):
		return nil, nil, domain.Failure(domain.ReasonInvalidRequest, "image could not be decoded")
	case errors.Is(err, domain.ErrQualityRejected):
		return nil, nil, domain.Failure(domain.ReasonQualityRejected, "no usable face in frame")
	case err != nil:
		return nil, nil, s.extractionFailure(ctx, req.TerminalID, err)
	}
	s.resetFailures(req.TerminalID)

	match, err := s.pipeline.match(ctx, probe, &req.LocationID, threshold)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load gallery", slog.String("error", err.Error()))
		return nil, nil, domain.Failure(domain.ReasonPersistenceError, "failed to load enrollments")
	}

	switch match.Reason {
	case face.MatchFound:
		emp := match.Match.Employee
		sim := match.Match.Similarity
		return &emp, &sim, nil
	case face.MatchIncompatibleGallery:
		return nil, nil, domain.Failure(domain.ReasonIncompatibleEnrollment,
			fmt.Sprintf("%d enrollments were produced by another model", match.Skipped))
	case face.MatchEmptyGallery:
		return nil, nil, domain.Failure(domain.ReasonNoMatch, "no enrollments for this location")
	default:
		result := domain.Failure(domain.ReasonNoMatch, "no enrollment above threshold")
		best := match.BestSimilarity
		result.Similarity = &best
		return nil, nil, result
	}
}

func (s *CheckInService) extractionFailure(ctx context.Context, terminalID uuid.UUID, err error) *domain.CheckInResult {
	s.failuresMu.Lock()
	s.failures[terminalID]++
	count := s.failures[terminalID]
	if count >= s.policy.MaxExtractionFailures {
		delete(s.failures, terminalID)
	}
	s.failuresMu.Unlock()

	s.logger.WarnContext(ctx, "embedding extraction failed",
		slog.String("terminal_id", terminalID.String()),
		slog.Int("consecutive_failures", count),
		slog.String("error", err.Error()),
	)

	result := domain.Failure(domain.ReasonExtractionFailed, "could not extract a face embedding")
	if count >= s.policy.MaxExtractionFailures {
		result.Detail = fmt.Sprintf("extraction failed %d times in a row", count)
		result.Rearm = false
	}
	return result
}

func (s *CheckInService) resetFailures(terminalID uuid.UUID) {
	s.failuresMu.Lock()
	delete(s.failures, terminalID)
	s.failuresMu.Unlock()
}

func (s *CheckInService) checkOut(ctx context.Context, emp *domain.Employee, canonical *domain.AttendanceInterval, now time.Time) *domain.CheckInResult {
	if now.Sub(canonical.StartedAt) < s.policy.RecheckCooldown {
		result := domain.Failure(domain.ReasonDuplicateScan, "already checked in moments ago")
		result.Interval = canonical
		return result
	}

	closed, err := s.attendance.Close(ctx, canonical.ID, now, s.policy.DefaultBreak)
	if err != nil {
		if errors.Is(err, domain.ErrIntervalNotOpen) {
			return domain.Failure(domain.ReasonDuplicateScan, "interval was closed by another scan")
		}
		return s.persistenceFailure(ctx, emp, nil, "close interval", err)
	}

	return &domain.CheckInResult{
		Success:  true,
		Reason:   domain.ReasonCheckedOut,
		Action:   domain.ActionCheckOut,
		Interval: closed,
		Rearm:    true,
	}
}

func (s *CheckInService) checkIn(ctx context.Context, req CheckInRequest, emp *domain.Employee, now time.Time) *domain.CheckInResult {
	locationID := req.LocationID
	if emp.LocationID != nil {
		locationID = *emp.LocationID
	}

	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return domain.Failure(domain.ReasonGeofenceDenied, "assigned location does not exist")
		}
		return s.persistenceFailure(ctx, emp, nil, "load location", err)
	}

	decision := s.geofence.Check(ctx, loc.Geofence(), req.Position)
	if !decision.Allowed {
		if decision.PositionUnavailable() {
			return domain.Failure(domain.ReasonPositionUnavailable, decision.Error)
		}
		result := domain.Failure(domain.ReasonGeofenceDenied,
			fmt.Sprintf("%.0f m from %s (radius %.0f m)", *decision.DistanceMeters, loc.Name, *loc.RadiusMeters))
		result.DistanceMeters = decision.DistanceMeters
		return result
	}

	terminalID := req.TerminalID
	interval := &domain.AttendanceInterval{
		ID:               uuid.New(),
		EmployeeID:       emp.ID,
		LocationID:       &loc.ID,
		TerminalID:       &terminalID,
		StartedAt:        now,
		Note:             req.Note,
		Method:           req.Method(),
		CheckInDistanceM: decision.DistanceMeters,
	}
	if err := s.attendance.Open(ctx, interval); err != nil {
		if errors.Is(err, domain.ErrAlreadyCheckedIn) {
			return domain.Failure(domain.ReasonAlreadyCheckedIn, "an open interval already exists")
		}
		return s.persistenceFailure(ctx, emp, nil, "open interval", err)
	}

	return &domain.CheckInResult{
		Success:        true,
		Reason:         domain.ReasonCheckedIn,
		Action:         domain.ActionCheckIn,
		Interval:       interval,
		DistanceMeters: decision.DistanceMeters,
		Rearm:          true,
	}
}

// Status reports whether the employee is currently checked in.
func (s *CheckInService) Status(ctx context.Context, employeeID uuid.UUID) (*domain.AttendanceStatus, error) {
	if _, err := s.employees.GetByID(ctx, employeeID); err != nil {
		return nil, err
	}

	open, err := s.attendance.FindOpen(ctx, employeeID)
	if err != nil {
		return nil, domain.ErrPersistence.WithError(fmt.Errorf("employee %s: find open intervals: %w", employeeID, err))
	}

	status := &domain.AttendanceStatus{
		EmployeeID: employeeID,
		State:      domain.StateOut,
	}
	if len(open) > 0 {
		status.State = domain.StateIn
		status.Open = &open[0]
	}
	if len(open) > 1 {
		status.Anomaly = domain.AnomalyMultipleOpenIntervals
	}
	return status, nil
}

func (s *CheckInService) identify(result *domain.CheckInResult, emp *domain.Employee, similarity *float64) {
	id := emp.ID
	result.EmployeeID = &id
	result.EmployeeName = emp.Name
	if similarity != nil {
		result.Similarity = similarity
	}
}

func (s *CheckInService) persistenceFailure(ctx context.Context, emp *domain.Employee, similarity *float64, op string, err error) *domain.CheckInResult {
	s.logger.ErrorContext(ctx, "attendance persistence failed",
		slog.String("employee_id", emp.ID.String()),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	result := domain.Failure(domain.ReasonPersistenceError, "failed to "+op)
	s.identify(result, emp, similarity)
	return result
}

func (s *CheckInService) reportAnomaly(ctx context.Context, req CheckInRequest, emp *domain.Employee, open []domain.AttendanceInterval) {
	observability.OpenIntervalAnomalies.Inc()
	s.logger.WarnContext(ctx, "employee has more than one open interval",
		slog.String("employee_id", emp.ID.String()),
		slog.Int("open_intervals", len(open)),
		slog.String("canonical_interval_id", open[0].ID.String()),
	)

	empID := emp.ID
	terminalID := req.TerminalID
	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType:  audit.EventAnomaly,
		EmployeeID: &empID,
		TerminalID: &terminalID,
		Reason:     domain.AnomalyMultipleOpenIntervals,
		Metadata: map[string]string{
			"canonical_interval_id": open[0].ID.String(),
			"open_intervals":        fmt.Sprint(len(open)),
		},
	})
}

func (s *CheckInService) audit(ctx context.Context, req CheckInRequest, result *domain.CheckInResult) {
	terminalID := req.TerminalID
	locationID := req.LocationID

	eventType := audit.EventCheckInRejected
	if result.Success {
		eventType = audit.EventCheckIn
		if result.Action == domain.ActionCheckOut {
			eventType = audit.EventCheckOut
		}
	}

	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType:  eventType,
		EmployeeID: result.EmployeeID,
		TerminalID: &terminalID,
		LocationID: &locationID,
		Method:     string(result.Method),
		Success:    result.Success,
		Reason:     string(result.Reason),
		Error:      failureDetail(result),
		IPAddress:  req.IPAddress,
	})
}

func failureDetail(result *domain.CheckInResult) string {
	if result.Success {
		return ""
	}
	return result.Detail
}

// notify publishes the transition to the bus and to the kiosks of the
// location. Both are best-effort.
func (s *CheckInService) notify(ctx context.Context, req CheckInRequest, result *domain.CheckInResult) {
	interval := result.Interval
	if interval == nil {
		return
	}

	event := queue.AttendanceEvent{
		ID:         uuid.New(),
		Action:     string(result.Action),
		EmployeeID: interval.EmployeeID,
		IntervalID: interval.ID,
		LocationID: interval.LocationID,
		TerminalID: req.TerminalID,
		Method:     string(result.Method),
		OccurredAt: s.now().UTC(),
		Anomaly:    result.Anomaly,
	}
	if result.Action == domain.ActionCheckOut {
		event.BreakSeconds = int64(interval.BreakDuration / time.Second)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishAttendance(pubCtx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish attendance event",
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	eventType := ws.EventCheckIn
	if result.Action == domain.ActionCheckOut {
		eventType = ws.EventCheckOut
	}
	locationID := req.LocationID
	if interval.LocationID != nil {
		locationID = *interval.LocationID
	}
	s.broadcaster.BroadcastToLocation(locationID, eventType, map[string]interface{}{
		"employee_id":   interval.EmployeeID,
		"employee_name": result.EmployeeName,
		"action":        result.Action,
		"interval_id":   interval.ID,
		"anomaly":       result.Anomaly,
	})
}
