package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeAPI scripts the remote export endpoints. Post starts a job, Get
// pops the next percent from the progress queue, GetText serves the
// artifact. All calls honor context cancellation like the real
// pipeline does.
type fakeAPI struct {
	// scripted behavior
	startErrs   map[int]error // error for the nth start call (0-based)
	progress    []float64     // percent sequence; last value repeats
	statuses    []string      // optional parallel status overrides
	checkErr    error         // error for every progress check
	fileContent string
	downloadErr error

	// recorded activity
	startBodies []map[string]any
	checks      int
	downloads   int
}

func (f *fakeAPI) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.Contains(path, "/export-responses") {
		return nil, fmt.Errorf("unexpected POST %s", path)
	}

	n := len(f.startBodies)
	f.startBodies = append(f.startBodies, body.(map[string]any))
	if err := f.startErrs[n]; err != nil {
		return nil, err
	}
	return map[string]any{
		"result": map[string]any{"progressId": fmt.Sprintf("ES_%d", n)},
	}, nil
}

func (f *fakeAPI) Get(ctx context.Context, path string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.checkErr != nil {
		return nil, f.checkErr
	}

	i := f.checks
	f.checks++

	pct := 0.0
	if len(f.progress) > 0 {
		if i < len(f.progress) {
			pct = f.progress[i]
		} else {
			pct = f.progress[len(f.progress)-1]
		}
	}

	status := "inProgress"
	if pct == 100 {
		status = "complete"
	}
	if i < len(f.statuses) && f.statuses[i] != "" {
		status = f.statuses[i]
	}

	result := map[string]any{
		"percentComplete": pct,
		"status":          status,
	}
	if status == "complete" {
		result["fileId"] = "F_1"
	}
	return map[string]any{"result": result}, nil
}

func (f *fakeAPI) GetText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.downloads++
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.fileContent, nil
}

// newTestPoller wires a poller to the fake with instant sleeps.
func newTestPoller(api *fakeAPI) *Poller {
	p := NewPoller(api, nil)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
	return p
}

func waitReq() Request {
	return Request{
		SurveyID:          "SV_123",
		Format:            "json",
		WaitForCompletion: true,
	}
}

// --- Primary path ---

func TestRun_CompletesAfterProgressSequence(t *testing.T) {
	api := &fakeAPI{progress: []float64{30, 60, 100}, fileContent: "payload"}
	p := newTestPoller(api)

	res := p.Run(context.Background(), waitReq())

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s, want completed (err: %v)", res.Outcome, res.Err)
	}
	// Exactly 3 status checks, then exactly one download.
	if api.checks != 3 {
		t.Errorf("checks = %d, want 3", api.checks)
	}
	if api.downloads != 1 {
		t.Errorf("downloads = %d, want 1", api.downloads)
	}
	if res.Content != "payload" {
		t.Errorf("Content = %q, want payload", res.Content)
	}
	if res.FileID != "F_1" {
		t.Errorf("FileID = %q, want F_1", res.FileID)
	}
	if res.Checks != 3 {
		t.Errorf("Checks = %d, want 3", res.Checks)
	}
}

func TestRun_NearlyCompleteKeepsPolling(t *testing.T) {
	// 99.9 must not count as complete — only exact 100 does.
	api := &fakeAPI{progress: []float64{99.9, 99.9, 100}, fileContent: "x"}
	p := newTestPoller(api)

	res := p.Run(context.Background(), waitReq())

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s, want completed", res.Outcome)
	}
	if api.checks != 3 {
		t.Errorf("checks = %d, want 3", api.checks)
	}
}

func TestRun_BudgetExhaustedIsTimeoutNotError(t *testing.T) {
	api := &fakeAPI{progress: []float64{50}}
	p := newTestPoller(api)

	res := p.Run(context.Background(), waitReq())

	if res.Outcome != OutcomeTimeout {
		t.Fatalf("Outcome = %s, want timeout", res.Outcome)
	}
	if res.Err != nil {
		t.Errorf("timeout must not carry an error, got %v", res.Err)
	}
	if api.checks != maxAttempts {
		t.Errorf("checks = %d, want %d", api.checks, maxAttempts)
	}
	if api.downloads != 0 {
		t.Errorf("downloads = %d, want 0", api.downloads)
	}
	if res.ProgressID == "" {
		t.Error("timeout result must keep the progress id for re-polling")
	}
}

func TestRun_FireAndForgetReturnsStarted(t *testing.T) {
	api := &fakeAPI{}
	p := newTestPoller(api)

	req := waitReq()
	req.WaitForCompletion = false
	res := p.Run(context.Background(), req)

	if res.Outcome != OutcomeStarted {
		t.Fatalf("Outcome = %s, want started", res.Outcome)
	}
	if res.ProgressID != "ES_0" {
		t.Errorf("ProgressID = %q, want ES_0", res.ProgressID)
	}
	if api.checks != 0 {
		t.Errorf("checks = %d, want 0 (no polling requested)", api.checks)
	}
}

// --- Fallback policy ---

func TestRun_StartFailureTriggersNarrowedCSVFallback(t *testing.T) {
	primaryErr := errors.New("413 payload too large")
	api := &fakeAPI{
		startErrs:   map[int]error{0: primaryErr},
		progress:    []float64{100},
		fileContent: "a,b\n1,2\n",
	}
	p := newTestPoller(api)

	req := waitReq()
	req.Filters = Filters{
		StartDate:       "2026-01-01T00:00:00Z",
		EndDate:         "2026-02-01T00:00:00Z",
		Status:          "complete",
		QuestionIDs:     []string{"QID1", "QID2"},
		EmbeddedDataIDs: []string{"source"},
	}
	res := p.Run(context.Background(), req)

	if res.Outcome != OutcomeCompletedViaFallback {
		t.Fatalf("Outcome = %s, want completed_via_fallback (err: %v, fallback: %v)",
			res.Outcome, res.Err, res.FallbackErr)
	}
	if !errors.Is(res.Err, primaryErr) {
		t.Errorf("Err = %v, want the original failure preserved", res.Err)
	}
	if res.FallbackErr != nil {
		t.Errorf("FallbackErr = %v, want nil", res.FallbackErr)
	}
	if res.Format != FallbackFormat {
		t.Errorf("Format = %q, want csv", res.Format)
	}

	if len(api.startBodies) != 2 {
		t.Fatalf("starts = %d, want 2", len(api.startBodies))
	}
	fb := api.startBodies[1]
	if fb["format"] != "csv" {
		t.Errorf("fallback format = %v, want csv", fb["format"])
	}
	// Date and completion filters survive; question/embedded-data
	// selections are dropped.
	if fb["startDate"] != "2026-01-01T00:00:00Z" || fb["endDate"] != "2026-02-01T00:00:00Z" {
		t.Errorf("fallback lost date filters: %v", fb)
	}
	if fb["responseStatus"] != "complete" {
		t.Errorf("fallback lost completion filter: %v", fb)
	}
	if _, ok := fb["questionIds"]; ok {
		t.Error("fallback must drop questionIds")
	}
	if _, ok := fb["embeddedDataIds"]; ok {
		t.Error("fallback must drop embeddedDataIds")
	}
}

func TestRun_RemoteFailureStatusTriggersFallback(t *testing.T) {
	api := &fakeAPI{
		progress:    []float64{40, 40, 100},
		statuses:    []string{"inProgress", "failed"},
		fileContent: "csv",
	}
	p := newTestPoller(api)

	res := p.Run(context.Background(), waitReq())

	if res.Outcome != OutcomeCompletedViaFallback {
		t.Fatalf("Outcome = %s, want completed_via_fallback (err: %v)", res.Outcome, res.Err)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "failed") {
		t.Errorf("Err = %v, want remote failure message", res.Err)
	}
}

func TestRun_FallbackTimeout(t *testing.T) {
	api := &fakeAPI{
		startErrs: map[int]error{0: errors.New("boom")},
		progress:  []float64{10},
	}
	p := newTestPoller(api)

	res := p.Run(context.Background(), waitReq())

	if res.Outcome != OutcomeFallbackTimeout {
		t.Fatalf("Outcome = %s, want fallback_timeout", res.Outcome)
	}
	if res.Err == nil {
		t.Error("primary error must be preserved")
	}
}

func TestRun_BothAttemptsFail(t *testing.T) {
	primaryErr := errors.New("primary boom")
	fallbackErr := errors.New("fallback boom")
	api := &fakeAPI{
		startErrs: map[int]error{0: primaryErr, 1: fallbackErr},
	}
	p := newTestPoller(api)

	res := p.Run(context.Background(), waitReq())

	if res.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %s, want failed", res.Outcome)
	}
	// Both messages surfaced.
	if !errors.Is(res.Err, primaryErr) {
		t.Errorf("Err = %v, want primary error", res.Err)
	}
	if !errors.Is(res.FallbackErr, fallbackErr) {
		t.Errorf("FallbackErr = %v, want fallback error", res.FallbackErr)
	}
}

// --- Cancellation ---

func TestRun_CancellationAbortsPromptly(t *testing.T) {
	api := &fakeAPI{progress: []float64{10}}
	p := newTestPoller(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan Result, 1)
	go func() { done <- p.Run(ctx, waitReq()) }()

	select {
	case res := <-done:
		if res.Outcome != OutcomeFailed {
			t.Errorf("Outcome = %s, want failed on cancellation", res.Outcome)
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// --- Artifact sizing ---

func TestNeedsPersistence_Boundary(t *testing.T) {
	atLimit := Result{Content: strings.Repeat("a", inlineLimit)}
	if atLimit.NeedsPersistence() {
		t.Error("exactly 100 KiB must still be inlineable")
	}

	overLimit := Result{Content: strings.Repeat("a", inlineLimit+1)}
	if !overLimit.NeedsPersistence() {
		t.Error("100 KiB + 1 byte must require persistence")
	}
}

// --- Progress helpers ---

func TestCheckProgress_ParsesResult(t *testing.T) {
	api := &fakeAPI{progress: []float64{100}}
	p := newTestPoller(api)

	pr, err := p.CheckProgress(context.Background(), "SV_123", "ES_0")
	if err != nil {
		t.Fatalf("CheckProgress failed: %v", err)
	}
	if !pr.Complete() {
		t.Errorf("Complete() = false at percent %v", pr.Percent)
	}
	if pr.FileID != "F_1" {
		t.Errorf("FileID = %q, want F_1", pr.FileID)
	}
}
