package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
)

// memStore is an in-memory LocalStore. Values are copied on the way in and
// out, like the SQLite store which round-trips through JSON.
type memStore struct {
	mu       sync.Mutex
	users    map[string][]domain.User
	current  map[string]domain.User
	warnings map[string]int
	reports  map[string][]domain.Report

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string][]domain.User{},
		current:  map[string]domain.User{},
		warnings: map[string]int{},
		reports:  map[string][]domain.Report{},
	}
}

func (m *memStore) LoadUsers(ctx context.Context, ns string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.User(nil), m.users[ns]...), nil
}

func (m *memStore) SaveUsers(ctx context.Context, ns string, users []domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[ns] = append([]domain.User(nil), users...)
	return nil
}

func (m *memStore) LoadSession(ctx context.Context, ns string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.Session{Namespace: ns, Warnings: m.warnings[ns]}
	if u, ok := m.current[ns]; ok {
		s.User = &u
	}
	return s, nil
}

func (m *memStore) SaveSession(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.User != nil {
		m.current[s.Namespace] = *s.User
	} else {
		delete(m.current, s.Namespace)
	}
	m.warnings[s.Namespace] = s.Warnings
	return nil
}

func (m *memStore) ClearSession(ctx context.Context, ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.current, ns)
	return nil
}

func (m *memStore) Namespaces(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for ns := range m.current {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) LoadReports(ctx context.Context, ns string) ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Report(nil), m.reports[ns]...), nil
}

func (m *memStore) AppendReport(ctx context.Context, ns string, r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.reports[ns] = append(m.reports[ns], r)
	return nil
}

func (m *memStore) signIn(ns string, u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[ns] = u
	m.users[ns] = append(m.users[ns], u)
}

func (m *memStore) session(ns string) *domain.Session {
	s, _ := m.LoadSession(context.Background(), ns)
	return s
}

// scriptedModel answers every prompt with the same content or error.
type scriptedModel struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []usecase.VisionRequest
}

func (s *scriptedModel) Complete(ctx context.Context, req usecase.VisionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req)
	return s.answer, s.err
}

func (s *scriptedModel) Name() string { return "scripted" }

// gatedModel blocks the first Complete call until release is closed and
// records the image of every call.
type gatedModel struct {
	answer  string
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	images []string
}

func newGatedModel(answer string) *gatedModel {
	return &gatedModel{answer: answer, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedModel) Complete(ctx context.Context, req usecase.VisionRequest) (string, error) {
	g.mu.Lock()
	first := len(g.images) == 0
	g.images = append(g.images, string(req.Image))
	g.mu.Unlock()

	if first {
		close(g.started)
		<-g.release
	}
	return g.answer, nil
}

func (g *gatedModel) Name() string { return "gated" }

func (g *gatedModel) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.images...)
}

// passthroughSettle returns the verdict untouched.
type passthroughSettle struct{}

func (passthroughSettle) Settle(ctx context.Context, s *domain.Session, r domain.ClassificationResult) (domain.ClassificationResult, error) {
	return r, nil
}

// blockingClassifier holds Classify until release is closed.
type blockingClassifier struct {
	passthroughSettle
	started chan struct{}
	release chan struct{}
	result  domain.ClassificationResult
}

func newBlockingClassifier(result domain.ClassificationResult) *blockingClassifier {
	return &blockingClassifier{started: make(chan struct{}), release: make(chan struct{}), result: result}
}

func (b *blockingClassifier) Classify(ctx context.Context, s *domain.Session, img usecase.Image, hint string) domain.ClassificationResult {
	close(b.started)
	<-b.release
	return b.result
}

type fixedClassifier struct {
	passthroughSettle
	result domain.ClassificationResult
	calls  int
}

func (f *fixedClassifier) Classify(ctx context.Context, s *domain.Session, img usecase.Image, hint string) domain.ClassificationResult {
	f.calls++
	return f.result
}

type recordingListener struct {
	mu     sync.Mutex
	states []usecase.State
	users  []domain.User
}

func (r *recordingListener) OnStateChange(ns string, o usecase.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, o.State)
}

func (r *recordingListener) OnUserUpdated(ns string, u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
}

type recordingSink struct {
	reports []domain.Report
}

func (r *recordingSink) ReportFiled(ctx context.Context, ns string, report domain.Report) {
	r.reports = append(r.reports, report)
}

type staticLocation struct {
	c   domain.Coordinate
	err error
}

func (s staticLocation) CurrentLocation(ctx context.Context, ns string) (domain.Coordinate, error) {
	return s.c, s.err
}

var errBoom = errors.New("boom")

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
