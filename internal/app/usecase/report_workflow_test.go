package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
)

// =============================================================================
// REPORT WORKFLOW TESTS
// =============================================================================
//
// idle -> analyzing -> {invalid | emergency | success | error}. Every terminal
// state except a failed classification or missing location stores exactly one
// report; approved reports credit the session user.
//
// =============================================================================

var vasco = domain.Coordinate{Lat: 15.39, Lng: 73.81}

type workflowFixture struct {
	store    *memStore
	sink     *recordingSink
	listener *recordingListener
	wf       *usecase.ReportWorkflow
}

func newWorkflow(t *testing.T, classifier usecase.ImageClassifier, loc domain.LocationProvider, tweak ...func(*usecase.WorkflowDeps)) *workflowFixture {
	t.Helper()
	store := newMemStore()
	store.signIn("ns", domain.User{Email: "asha@example.com", Name: "Asha", Points: 100})

	sink := &recordingSink{}
	listener := &recordingListener{}
	deps := usecase.WorkflowDeps{
		Store:      store,
		Locations:  loc,
		Classifier: classifier,
		Sinks:      []usecase.ReportSink{sink},
		Listeners:  []usecase.WorkflowListener{listener},
		Now:        fixedClock,
		NewID:      func() string { return "report-1" },
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	wf := usecase.NewReportWorkflow("ns", deps)
	return &workflowFixture{store: store, sink: sink, listener: listener, wf: wf}
}

func submit(t *testing.T, f *workflowFixture) usecase.Outcome {
	t.Helper()
	f.wf.Capture(usecase.Image{Data: []byte("img"), MimeType: "image/jpeg"})
	out, err := f.wf.Submit(context.Background())
	require.NoError(t, err)
	return out
}

func (f *workflowFixture) reports() []domain.Report {
	r, _ := f.store.LoadReports(context.Background(), "ns")
	return r
}

func TestWorkflow_ApprovedMunicipal(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{
		IsValid: true, Category: domain.CategoryMunicipal, Description: "Overflowing bin",
	}}, staticLocation{c: vasco})

	out := submit(t, f)

	assert.Equal(t, usecase.StateSuccess, out.State)
	want := []domain.Report{{
		ID:           "report-1",
		Category:     domain.CategoryMunicipal,
		Description:  "Overflowing bin",
		Authority:    "MMC",
		Status:       domain.StatusApproved,
		Lat:          vasco.Lat,
		Lng:          vasco.Lng,
		Timestamp:    fixedNow,
		PointsEarned: domain.ApprovalReward,
	}}
	if diff := cmp.Diff(want, f.reports()); diff != "" {
		t.Errorf("stored reports mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, f.sink.reports)
	assert.Equal(t, 150, f.store.session("ns").User.Points)

	assert.Equal(t, []usecase.State{usecase.StateAnalyzing, usecase.StateSuccess}, f.listener.states)
	require.Len(t, f.listener.users, 1)
	assert.Equal(t, 150, f.listener.users[0].Points)
}

func TestWorkflow_ApprovedDoesNotTouchUsersTableByDefault(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: domain.CategoryPWD}}, staticLocation{c: vasco})

	submit(t, f)

	users, _ := f.store.LoadUsers(context.Background(), "ns")
	assert.Equal(t, 100, users[0].Points)
}

func TestWorkflow_SyncPointsToUsers(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: domain.CategoryPWD}}, staticLocation{c: vasco},
		func(d *usecase.WorkflowDeps) { d.SyncPointsToUsers = true })

	submit(t, f)

	users, _ := f.store.LoadUsers(context.Background(), "ns")
	assert.Equal(t, 150, users[0].Points)
}

func TestWorkflow_Emergency(t *testing.T) {
	for _, category := range []domain.Category{domain.CategoryFire, domain.CategoryPolice, domain.CategoryAccident} {
		t.Run(category.String(), func(t *testing.T) {
			f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: category}}, staticLocation{c: vasco})

			out := submit(t, f)

			assert.Equal(t, usecase.StateEmergency, out.State)
			reports := f.reports()
			require.Len(t, reports, 1)
			assert.Equal(t, domain.AuthorityEmergency, reports[0].Authority)
			assert.Equal(t, domain.StatusEmergency, reports[0].Status)
			assert.Equal(t, "Emergency Detected", reports[0].Description)
			assert.Zero(t, reports[0].PointsEarned)
			assert.Equal(t, 100, f.store.session("ns").User.Points)
		})
	}
}

func TestWorkflow_InvalidStoresRejection(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{
		IsValid: false, Category: domain.CategoryUnknown, Description: "❌ Selfie - Warning 1/3", WarningCount: 1,
	}}, staticLocation{c: vasco})

	out := submit(t, f)

	assert.Equal(t, usecase.StateInvalid, out.State)
	assert.Equal(t, 1, out.Warnings)
	reports := f.reports()
	require.Len(t, reports, 1)
	assert.Equal(t, domain.CategoryInvalid, reports[0].Category)
	assert.Equal(t, domain.AuthorityRejected, reports[0].Authority)
	assert.Equal(t, domain.StatusRejected, reports[0].Status)
	assert.Equal(t, "❌ Selfie - Warning 1/3", reports[0].Description)
}

func TestWorkflow_AIGeneratedStoresAIRejection(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{
		IsAiGenerated: true, Category: domain.CategoryPWD, WarningCount: 1,
	}}, staticLocation{c: vasco})

	out := submit(t, f)

	assert.Equal(t, usecase.StateInvalid, out.State)
	reports := f.reports()
	require.Len(t, reports, 1)
	assert.Equal(t, domain.CategoryAIImage, reports[0].Category)
	assert.Equal(t, "AI-generated image rejected", reports[0].Description)
	assert.Equal(t, domain.StatusRejected, reports[0].Status)
}

func TestWorkflow_ClassifierFailureStoresNothing(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{
		Category: domain.CategoryError, Description: "Invalid API Key", Err: errBoom,
	}}, staticLocation{c: vasco})

	out := submit(t, f)

	assert.Equal(t, usecase.StateError, out.State)
	assert.Equal(t, "Invalid API Key", out.Message)
	assert.Empty(t, f.reports())
	assert.Empty(t, f.sink.reports)
}

func TestWorkflow_LocationUnavailable(t *testing.T) {
	classifier := &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: domain.CategoryPWD}}
	f := newWorkflow(t, classifier, domain.FixedLocation{})

	out := submit(t, f)

	assert.Equal(t, usecase.StateInvalid, out.State)
	assert.Contains(t, out.Message, "Could not get your location")
	assert.Zero(t, classifier.calls)
	assert.Empty(t, f.reports())
}

func TestWorkflow_SetLocationOverridesProvider(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: domain.CategoryMunicipal}}, domain.FixedLocation{})
	f.wf.SetLocation(domain.Coordinate{Lat: 15.27, Lng: 73.95})

	submit(t, f)

	require.Len(t, f.reports(), 1)
	assert.Equal(t, "Margao MC", f.reports()[0].Authority)
}

func TestWorkflow_SubmitWithoutImageIsNoop(t *testing.T) {
	classifier := &fixedClassifier{}
	f := newWorkflow(t, classifier, staticLocation{c: vasco})

	out, err := f.wf.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, usecase.StateIdle, out.State)
	assert.Zero(t, classifier.calls)
	assert.Empty(t, f.listener.states)
}

func TestWorkflow_RequiresSignIn(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{}, staticLocation{c: vasco})
	require.NoError(t, f.store.ClearSession(context.Background(), "ns"))

	f.wf.Capture(usecase.Image{Data: []byte("img")})
	_, err := f.wf.Submit(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotSignedIn)
}

func TestWorkflow_StorageFailureEndsInError(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: domain.CategoryFire}}, staticLocation{c: vasco})
	f.store.appendErr = errBoom

	out := submit(t, f)

	assert.Equal(t, usecase.StateError, out.State)
	assert.Empty(t, f.sink.reports)
}

func TestWorkflow_ResetDiscardsInFlightSubmission(t *testing.T) {
	classifier := newBlockingClassifier(domain.ClassificationResult{IsValid: true, Category: domain.CategoryPWD})
	f := newWorkflow(t, classifier, staticLocation{c: vasco})
	f.wf.Capture(usecase.Image{Data: []byte("img")})

	type result struct {
		out usecase.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := f.wf.Submit(context.Background())
		done <- result{out, err}
	}()

	<-classifier.started
	require.NoError(t, f.wf.Reset(context.Background()))
	close(classifier.release)

	select {
	case r := <-done:
		assert.ErrorIs(t, r.err, usecase.ErrStaleSubmission)
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not return")
	}
	assert.Empty(t, f.reports())
	assert.Equal(t, usecase.StateIdle, f.wf.State())
	assert.False(t, f.wf.HasImage())
	assert.Equal(t, 100, f.store.session("ns").User.Points)
}

func TestWorkflow_ResetRereadsWarnings(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{}, staticLocation{c: vasco})
	f.store.warnings["ns"] = 2

	require.NoError(t, f.wf.Reset(context.Background()))

	assert.Equal(t, 2, f.wf.Outcome().Warnings)
	assert.Equal(t, []usecase.State{usecase.StateIdle}, f.listener.states)
}

func TestWorkflow_Unsubscribe(t *testing.T) {
	f := newWorkflow(t, &fixedClassifier{result: domain.ClassificationResult{IsValid: true, Category: domain.CategoryPWD}}, staticLocation{c: vasco})
	extra := &recordingListener{}
	unsubscribe := f.wf.Subscribe(extra)
	unsubscribe()
	unsubscribe()

	submit(t, f)

	assert.Empty(t, extra.states)
	assert.NotEmpty(t, f.listener.states)
}

func TestWorkflow_EndToEndWithClassifier(t *testing.T) {
	store := newMemStore()
	store.signIn("ns", domain.User{Email: "a@x.in", Points: 0})
	store.warnings["ns"] = 2
	model := &scriptedModel{answer: `{"isValid":false,"category":"Invalid","description":"Scenery"}`}
	wf := usecase.NewReportWorkflow("ns", usecase.WorkflowDeps{
		Store:      store,
		Locations:  staticLocation{c: vasco},
		Classifier: usecase.NewClassifyImageUsecase(model, usecase.NewWarningPolicy(store), nil),
	})

	wf.Capture(usecase.Image{Data: []byte("img")})
	out, err := wf.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, usecase.StateInvalid, out.State)
	assert.Equal(t, 0, out.Warnings)
	assert.True(t, out.Result.PointsDeducted)
	assert.Equal(t, 0, store.session("ns").User.Points)
	reports, _ := store.LoadReports(context.Background(), "ns")
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].ID)
}

func newClassifiedWorkflow(store *memStore, model usecase.VisionModel) *usecase.ReportWorkflow {
	var n int
	return usecase.NewReportWorkflow("ns", usecase.WorkflowDeps{
		Store:      store,
		Locations:  staticLocation{c: vasco},
		Classifier: usecase.NewClassifyImageUsecase(model, usecase.NewWarningPolicy(store), nil),
		Now:        fixedClock,
		NewID: func() string {
			n++
			return fmt.Sprintf("report-%d", n)
		},
	})
}

func TestWorkflow_ThreeInvalidSubmissionsDeductOnce(t *testing.T) {
	store := newMemStore()
	store.signIn("ns", domain.User{Email: "a@x.in", Points: 100})
	wf := newClassifiedWorkflow(store, &scriptedModel{answer: `{"isValid":false,"category":"Invalid","description":"Selfie"}`})

	var counters []int
	for range 3 {
		out, err := wf.SubmitImage(context.Background(), usecase.Image{Data: []byte("img")})
		require.NoError(t, err)
		assert.Equal(t, usecase.StateInvalid, out.State)
		counters = append(counters, store.session("ns").Warnings)
	}

	assert.Equal(t, []int{1, 2, 0}, counters)
	assert.Equal(t, 50, store.session("ns").User.Points)
	reports, _ := store.LoadReports(context.Background(), "ns")
	require.Len(t, reports, 3)
	assert.Equal(t, "❌ Selfie - Warning 1/3", reports[0].Description)
	assert.Equal(t, "⚠️ 3 invalid submissions! 50 points deducted.", reports[2].Description)
	for _, r := range reports {
		assert.Equal(t, domain.StatusRejected, r.Status)
	}
}

func TestWorkflow_SevereViolationFilesEmergencyReport(t *testing.T) {
	store := newMemStore()
	store.signIn("ns", domain.User{Email: "a@x.in", Points: 100})
	store.warnings["ns"] = 1
	wf := newClassifiedWorkflow(store, &scriptedModel{answer: `{"isValid":false,"isSevereViolation":true,"category":"Invalid"}`})

	out, err := wf.SubmitImage(context.Background(), usecase.Image{Data: []byte("img")})
	require.NoError(t, err)

	assert.Equal(t, usecase.StateEmergency, out.State)
	assert.Equal(t, 0, out.Warnings)
	reports, _ := store.LoadReports(context.Background(), "ns")
	require.Len(t, reports, 1)
	assert.Equal(t, domain.CategoryPolice, reports[0].Category)
	assert.Equal(t, domain.AuthorityEmergency, reports[0].Authority)
	assert.Equal(t, domain.StatusEmergency, reports[0].Status)
	assert.Contains(t, reports[0].Description, "STRICT ACTION")
	assert.Equal(t, 50, store.session("ns").User.Points)
	assert.Equal(t, 0, store.session("ns").Warnings)
}

func TestWorkflow_ResetDuringClassificationLeavesCounterAlone(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"severe violation", `{"isValid":false,"isSevereViolation":true,"category":"Invalid"}`},
		{"invalid", `{"isValid":false,"category":"Invalid","description":"Selfie"}`},
		{"ai generated", `{"isAiGenerated":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.signIn("ns", domain.User{Email: "a@x.in", Points: 100})
			store.warnings["ns"] = 2
			model := newGatedModel(tt.answer)
			wf := newClassifiedWorkflow(store, model)

			done := make(chan error, 1)
			go func() {
				_, err := wf.SubmitImage(context.Background(), usecase.Image{Data: []byte("img")})
				done <- err
			}()

			<-model.started
			require.NoError(t, wf.Reset(context.Background()))
			close(model.release)

			select {
			case err := <-done:
				assert.ErrorIs(t, err, usecase.ErrStaleSubmission)
			case <-time.After(2 * time.Second):
				t.Fatal("submission did not return")
			}
			reports, _ := store.LoadReports(context.Background(), "ns")
			assert.Empty(t, reports)
			assert.Equal(t, 100, store.session("ns").User.Points)
			assert.Equal(t, 2, store.session("ns").Warnings)
		})
	}
}

func TestWorkflow_ConcurrentSubmitImageQueues(t *testing.T) {
	store := newMemStore()
	store.signIn("ns", domain.User{Email: "a@x.in", Points: 0})
	model := newGatedModel(`{"isValid":true,"category":"Municipal","description":"Garbage"}`)
	wf := newClassifiedWorkflow(store, model)

	var wg sync.WaitGroup
	send := func(name string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wf.SubmitImage(context.Background(), usecase.Image{Data: []byte(name)})
			assert.NoError(t, err)
		}()
	}
	send("A")
	<-model.started
	send("B")
	send("C")
	time.Sleep(50 * time.Millisecond)
	close(model.release)
	wg.Wait()

	assert.ElementsMatch(t, []string{"A", "B", "C"}, model.seen())
	reports, _ := store.LoadReports(context.Background(), "ns")
	require.Len(t, reports, 3)
	assert.Equal(t, 150, store.session("ns").User.Points)
}

func TestWorkflows_OnePerNamespace(t *testing.T) {
	ws := usecase.NewWorkflows(usecase.WorkflowDeps{Store: newMemStore()})

	assert.Same(t, ws.For("a"), ws.For("a"))
	assert.NotSame(t, ws.For("a"), ws.For("b"))
	assert.Equal(t, "b", ws.For("b").Namespace())
}
