package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/metrics"
)

type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateInvalid   State = "invalid"
	StateEmergency State = "emergency"
	StateSuccess   State = "success"
	StateError     State = "error"
)

// ErrStaleSubmission is returned when the workflow was reset while a submission
// was waiting on the classifier. Nothing is persisted for such a submission.
var ErrStaleSubmission = errors.New("submission discarded after reset")

const (
	msgLocationUnavailable = "📍 Could not get your location. Please enable GPS."
	msgAIRejected          = "🤖 Invalid! AI-generated image detected."
	descAIRejected         = "AI-generated image rejected"
	descValidationFailed   = "Validation Failed"
	descEmergency          = "Emergency Detected"
	msgSubmissionFailed    = "Something went wrong while filing your report. Please try again."
)

type Image struct {
	Data     []byte
	MimeType string
	Name     string
}

// ImageMetadata is what the capture probe found in the file. It is informational.
type ImageMetadata struct {
	HasExif bool
	GPS     *domain.Coordinate
	TakenAt *time.Time
}

type MetadataProbe interface {
	Probe(data []byte) ImageMetadata
}

// ImageClassifier judges an image in two steps. Classify has no side effects;
// Settle moves the warning counter and is only called for a verdict that will
// be stored.
type ImageClassifier interface {
	Classify(ctx context.Context, session *domain.Session, image Image, hint string) domain.ClassificationResult
	Settle(ctx context.Context, session *domain.Session, result domain.ClassificationResult) (domain.ClassificationResult, error)
}

// Outcome is the visible result of the last submission.
type Outcome struct {
	State    State
	Message  string
	Result   *domain.ClassificationResult
	Report   *domain.Report
	Location *domain.Coordinate
	Metadata ImageMetadata
	Warnings int
}

// WorkflowListener receives state changes and point updates of a workflow.
type WorkflowListener interface {
	OnStateChange(namespace string, outcome Outcome)
	OnUserUpdated(namespace string, user domain.User)
}

// ReportSink receives every persisted report.
type ReportSink interface {
	ReportFiled(ctx context.Context, namespace string, report domain.Report)
}

type WorkflowDeps struct {
	Store      domain.LocalStore
	Locations  domain.LocationProvider
	Classifier ImageClassifier
	Probe      MetadataProbe
	Sinks      []ReportSink
	// Listeners are subscribed to every workflow when it is created.
	Listeners []WorkflowListener
	// SyncPointsToUsers also writes awarded points back into the users table.
	SyncPointsToUsers bool
	Logger            *zap.Logger
	Now               func() time.Time
	NewID             func() string
}

func (d WorkflowDeps) withDefaults() WorkflowDeps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = newReportID
	}
	return d
}

func newReportID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ReportWorkflow takes one captured image through location, classification and
// routing to a stored report. One workflow exists per namespace.
type ReportWorkflow struct {
	namespace string
	deps      WorkflowDeps
	log       *zap.Logger

	submitMu sync.Mutex

	mu           sync.Mutex
	image        *Image
	lastLocation *domain.Coordinate
	outcome      Outcome
	generation   uint64
	listeners    map[int]WorkflowListener
	nextListener int
}

func NewReportWorkflow(namespace string, deps WorkflowDeps) *ReportWorkflow {
	deps = deps.withDefaults()
	w := &ReportWorkflow{
		namespace: namespace,
		deps:      deps,
		log:       deps.Logger.With(zap.String("namespace", namespace)),
		outcome:   Outcome{State: StateIdle},
		listeners: make(map[int]WorkflowListener),
	}
	for _, l := range deps.Listeners {
		w.Subscribe(l)
	}
	return w
}

func (w *ReportWorkflow) Namespace() string {
	return w.namespace
}

// Subscribe registers a listener until the returned function is called.
func (w *ReportWorkflow) Subscribe(l WorkflowListener) (unsubscribe func()) {
	w.mu.Lock()
	id := w.nextListener
	w.nextListener++
	w.listeners[id] = l
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

func (w *ReportWorkflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome.State
}

func (w *ReportWorkflow) Outcome() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

func (w *ReportWorkflow) HasImage() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.image != nil
}

// Capture replaces the pending image and clears the previous result.
func (w *ReportWorkflow) Capture(image Image) {
	w.mu.Lock()
	img := image
	w.image = &img
	warnings := w.outcome.Warnings
	w.outcome = Outcome{State: StateIdle, Warnings: warnings}
	w.mu.Unlock()
}

// SetLocation records a fresh fix that later submissions reuse.
func (w *ReportWorkflow) SetLocation(c domain.Coordinate) {
	w.mu.Lock()
	loc := c
	w.lastLocation = &loc
	w.mu.Unlock()
}

// Reset drops the pending image and result, returns to idle and re-reads the
// warning counter. An in-flight submission is not aborted; its outcome is discarded.
func (w *ReportWorkflow) Reset(ctx context.Context) error {
	warnings := 0
	session, err := w.deps.Store.LoadSession(ctx, w.namespace)
	if err == nil {
		warnings = session.Warnings
	}

	w.mu.Lock()
	w.image = nil
	w.generation++
	w.outcome = Outcome{State: StateIdle, Warnings: warnings}
	outcome := w.outcome
	w.mu.Unlock()

	w.notifyState(outcome)
	return err
}

// Submit runs the pending image through the workflow. Without a captured image
// it does nothing. Classifier and storage failures end in StateError and are
// reported through the outcome, not the returned error.
func (w *ReportWorkflow) Submit(ctx context.Context) (Outcome, error) {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	w.mu.Lock()
	if w.image == nil {
		outcome := w.outcome
		w.mu.Unlock()
		return outcome, nil
	}
	image := *w.image
	generation := w.generation
	lastLocation := w.lastLocation
	w.mu.Unlock()

	return w.run(ctx, image, generation, lastLocation)
}

// SubmitImage captures image and submits it as one step. Concurrent calls are
// queued so that each image is classified and filed exactly once.
func (w *ReportWorkflow) SubmitImage(ctx context.Context, image Image) (Outcome, error) {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	w.mu.Lock()
	img := image
	w.image = &img
	w.outcome = Outcome{State: StateIdle, Warnings: w.outcome.Warnings}
	generation := w.generation
	lastLocation := w.lastLocation
	w.mu.Unlock()

	return w.run(ctx, image, generation, lastLocation)
}

func (w *ReportWorkflow) run(ctx context.Context, image Image, generation uint64, lastLocation *domain.Coordinate) (Outcome, error) {
	session, err := w.deps.Store.LoadSession(ctx, w.namespace)
	if err != nil {
		return w.fail(generation, fmt.Errorf("load session: %w", err)), nil
	}
	if !session.SignedIn() {
		return Outcome{}, domain.ErrNotSignedIn
	}

	w.transition(generation, Outcome{State: StateAnalyzing, Warnings: session.Warnings})

	location, err := w.resolveLocation(ctx, lastLocation)
	if err != nil {
		w.log.Warn("location unavailable", zap.Error(err))
		return w.finish(generation, Outcome{
			State:    StateInvalid,
			Message:  msgLocationUnavailable,
			Result:   &domain.ClassificationResult{IsValid: false, Description: msgLocationUnavailable},
			Warnings: session.Warnings,
		}), nil
	}

	var metadata ImageMetadata
	if w.deps.Probe != nil {
		metadata = w.deps.Probe.Probe(image.Data)
		w.log.Debug("image metadata", zap.Bool("has_exif", metadata.HasExif), zap.Bool("has_gps", metadata.GPS != nil))
	}

	result := w.deps.Classifier.Classify(ctx, session, image, "")

	if w.stale(generation) {
		w.log.Info("discarding classification that finished after reset")
		return Outcome{}, ErrStaleSubmission
	}

	// The session may have changed while the model was answering.
	session, err = w.deps.Store.LoadSession(ctx, w.namespace)
	if err != nil {
		return w.fail(generation, fmt.Errorf("load session: %w", err)), nil
	}
	if !session.SignedIn() {
		return Outcome{}, domain.ErrNotSignedIn
	}
	result, err = w.deps.Classifier.Settle(ctx, session, result)
	if err != nil {
		return w.fail(generation, fmt.Errorf("settle classification: %w", err)), nil
	}

	if result.Failed() {
		w.log.Warn("classifier unavailable", zap.Error(result.Err))
		return w.finish(generation, Outcome{
			State:    StateError,
			Message:  result.Description,
			Result:   &result,
			Location: &location,
			Metadata: metadata,
			Warnings: result.WarningCount,
		}), nil
	}

	outcome := Outcome{
		Result:   &result,
		Location: &location,
		Metadata: metadata,
		Warnings: result.WarningCount,
	}

	switch {
	case result.IsAiGenerated:
		report := w.newReport(domain.CategoryAIImage, descAIRejected, domain.AuthorityRejected, domain.StatusRejected, location, 0)
		if err := w.persist(ctx, report); err != nil {
			return w.fail(generation, err), nil
		}
		outcome.State = StateInvalid
		outcome.Message = msgAIRejected
		outcome.Report = &report

	case !result.IsValid:
		category := result.Category
		if category == "" || category == domain.CategoryUnknown {
			category = domain.CategoryInvalid
		}
		description := result.Description
		if description == "" {
			description = descValidationFailed
		}
		report := w.newReport(category, description, domain.AuthorityRejected, domain.StatusRejected, location, 0)
		if err := w.persist(ctx, report); err != nil {
			return w.fail(generation, err), nil
		}
		outcome.State = StateInvalid
		outcome.Message = description
		outcome.Report = &report

	case result.Category.IsEmergency():
		description := result.Description
		if description == "" {
			description = descEmergency
		}
		report := w.newReport(result.Category, description, domain.AuthorityEmergency, domain.StatusEmergency, location, 0)
		if err := w.persist(ctx, report); err != nil {
			return w.fail(generation, err), nil
		}
		outcome.State = StateEmergency
		outcome.Message = fmt.Sprintf("Alerting %s!", domain.AuthorityEmergency)
		outcome.Report = &report

	default:
		authority := domain.DetermineAuthority(location.Lat, location.Lng, result.Category)
		user, err := w.awardPoints(ctx, session)
		if err != nil {
			return w.fail(generation, err), nil
		}
		report := w.newReport(result.Category, result.Description, authority, domain.StatusApproved, location, domain.ApprovalReward)
		if err := w.persist(ctx, report); err != nil {
			return w.fail(generation, err), nil
		}
		w.notifyUser(user)
		outcome.State = StateSuccess
		outcome.Message = fmt.Sprintf("Report filed with %s. +%d points", authority, domain.ApprovalReward)
		outcome.Report = &report
	}

	return w.finish(generation, outcome), nil
}

func (w *ReportWorkflow) resolveLocation(ctx context.Context, last *domain.Coordinate) (domain.Coordinate, error) {
	if last != nil {
		return *last, nil
	}
	if w.deps.Locations == nil {
		return domain.Coordinate{}, domain.ErrLocationUnavailable
	}
	c, err := w.deps.Locations.CurrentLocation(ctx, w.namespace)
	if err != nil {
		return domain.Coordinate{}, err
	}
	w.SetLocation(c)
	return c, nil
}

func (w *ReportWorkflow) newReport(category domain.Category, description, authority string, status domain.Status, at domain.Coordinate, points int) domain.Report {
	return domain.Report{
		ID:           w.deps.NewID(),
		Category:     category,
		Description:  description,
		Authority:    authority,
		Status:       status,
		Lat:          at.Lat,
		Lng:          at.Lng,
		Timestamp:    w.deps.Now().UTC(),
		PointsEarned: points,
	}
}

func (w *ReportWorkflow) persist(ctx context.Context, report domain.Report) error {
	if err := w.deps.Store.AppendReport(ctx, w.namespace, report); err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	metrics.ReportsFiledTotal.WithLabelValues(string(report.Status), report.Category.String()).Inc()
	w.log.Info("report filed",
		zap.String("report_id", report.ID),
		zap.String("category", report.Category.String()),
		zap.String("authority", report.Authority),
		zap.String("status", string(report.Status)),
	)
	for _, sink := range w.deps.Sinks {
		sink.ReportFiled(ctx, w.namespace, report)
	}
	return nil
}

// awardPoints credits the session copy of the user. The users table is only
// touched when SyncPointsToUsers is set.
func (w *ReportWorkflow) awardPoints(ctx context.Context, session *domain.Session) (domain.User, error) {
	session.User.Points += domain.ApprovalReward
	if err := w.deps.Store.SaveSession(ctx, session); err != nil {
		return domain.User{}, fmt.Errorf("save session: %w", err)
	}
	if w.deps.SyncPointsToUsers {
		if err := w.syncUser(ctx, *session.User); err != nil {
			return domain.User{}, err
		}
	}
	return *session.User, nil
}

func (w *ReportWorkflow) syncUser(ctx context.Context, user domain.User) error {
	users, err := w.deps.Store.LoadUsers(ctx, w.namespace)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	for i := range users {
		if users[i].Email == user.Email {
			users[i].Points = user.Points
			return w.deps.Store.SaveUsers(ctx, w.namespace, users)
		}
	}
	return nil
}

func (w *ReportWorkflow) stale(generation uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generation != generation
}

func (w *ReportWorkflow) fail(generation uint64, err error) Outcome {
	w.log.Error("report submission failed", zap.Error(err))
	return w.finish(generation, Outcome{State: StateError, Message: msgSubmissionFailed, Warnings: w.Outcome().Warnings})
}

func (w *ReportWorkflow) finish(generation uint64, outcome Outcome) Outcome {
	metrics.WorkflowOutcomesTotal.WithLabelValues(string(outcome.State)).Inc()
	return w.transition(generation, outcome)
}

// transition publishes outcome unless the workflow was reset in the meantime.
func (w *ReportWorkflow) transition(generation uint64, outcome Outcome) Outcome {
	w.mu.Lock()
	if w.generation != generation {
		w.mu.Unlock()
		return outcome
	}
	w.outcome = outcome
	w.mu.Unlock()

	w.notifyState(outcome)
	return outcome
}

func (w *ReportWorkflow) snapshotListeners() []WorkflowListener {
	w.mu.Lock()
	defer w.mu.Unlock()
	listeners := make([]WorkflowListener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func (w *ReportWorkflow) notifyState(outcome Outcome) {
	for _, l := range w.snapshotListeners() {
		l.OnStateChange(w.namespace, outcome)
	}
}

func (w *ReportWorkflow) notifyUser(user domain.User) {
	for _, l := range w.snapshotListeners() {
		l.OnUserUpdated(w.namespace, user)
	}
}

// Workflows hands out one ReportWorkflow per namespace.
type Workflows struct {
	deps WorkflowDeps

	mu        sync.Mutex
	workflows map[string]*ReportWorkflow
}

func NewWorkflows(deps WorkflowDeps) *Workflows {
	return &Workflows{deps: deps, workflows: make(map[string]*ReportWorkflow)}
}

func (ws *Workflows) For(namespace string) *ReportWorkflow {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.workflows[namespace]
	if !ok {
		w = NewReportWorkflow(namespace, ws.deps)
		ws.workflows[namespace] = w
	}
	return w
}
