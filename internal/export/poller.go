// Package export drives the asynchronous response-export protocol:
// start a job, poll its progress, download the artifact.
//
// The remote state machine (queued → processing → complete/failed)
// belongs to Qualtrics; this package only observes it. Two outcomes
// that look like failures are deliberately not errors: a polling
// budget exhausted before completion is OutcomeTimeout (the job may
// still finish remotely, and check_export_progress can pick it up),
// and a hard failure of the primary attempt triggers one CSV fallback
// with a reduced filter set before anything is reported as failed.
package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// pollInterval is the fixed delay between status checks. No
	// backoff: remote completion time is not predictable from
	// observed progress, so a fixed cadence is as good as any.
	pollInterval = 10 * time.Second

	// maxAttempts bounds the polling loop (~5 minutes total).
	maxAttempts = 30

	// FallbackFormat is the conservative format used for the second
	// attempt after a hard failure. CSV is always supported.
	FallbackFormat = "csv"

	// inlineLimit is the largest artifact (in bytes) that may be
	// returned inline. Strictly larger payloads must be persisted.
	inlineLimit = 100 * 1024
)

// Outcome is the caller-visible status of an export run.
type Outcome string

const (
	// OutcomeStarted: job accepted, caller asked not to wait.
	OutcomeStarted Outcome = "started"
	// OutcomeInProgress: job still running (reported by progress checks).
	OutcomeInProgress Outcome = "in_progress"
	// OutcomeCompleted: artifact retrieved on the primary attempt.
	OutcomeCompleted Outcome = "completed"
	// OutcomeTimeout: polling budget exhausted; the job may still
	// complete remotely. Not an error.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeCompletedViaFallback: primary attempt failed hard, the
	// CSV fallback completed.
	OutcomeCompletedViaFallback Outcome = "completed_via_fallback"
	// OutcomeFallbackTimeout: primary failed hard and the fallback
	// exhausted its polling budget.
	OutcomeFallbackTimeout Outcome = "fallback_timeout"
	// OutcomeFailed: both primary and fallback raised hard errors.
	OutcomeFailed Outcome = "failed"
)

// Filters narrows which responses an export includes. QuestionIDs and
// EmbeddedDataIDs are dropped for fallback attempts — they are the
// likeliest cause of a failed primary export.
type Filters struct {
	StartDate       string
	EndDate         string
	Status          string // completion-status filter, e.g. "complete"
	QuestionIDs     []string
	EmbeddedDataIDs []string
}

// Request describes one export run.
type Request struct {
	SurveyID          string
	Format            string
	Filters           Filters
	WaitForCompletion bool
}

// Result is what an export run produced. Expected negative outcomes
// (timeout, fallback paths) are encoded in Outcome rather than raised;
// Err and FallbackErr preserve the underlying hard failures for
// diagnostics.
type Result struct {
	Outcome    Outcome
	ProgressID string
	FileID     string
	Content    string
	Format     string
	Checks     int // status checks performed across both attempts

	// Err is the primary attempt's hard failure, if any. It is kept
	// even when the fallback succeeds.
	Err error
	// FallbackErr is the fallback attempt's hard failure, if any.
	FallbackErr error
}

// NeedsPersistence reports whether the artifact is too large to return
// inline. The boundary is exclusive: exactly inlineLimit bytes may
// still be inlined.
func (r *Result) NeedsPersistence() bool {
	return len(r.Content) > inlineLimit
}

// api is the slice of the request pipeline the poller needs.
type api interface {
	Post(ctx context.Context, path string, body any) (map[string]any, error)
	Get(ctx context.Context, path string) (map[string]any, error)
	GetText(ctx context.Context, path string) (string, error)
}

// Poller orchestrates export jobs through the request pipeline.
type Poller struct {
	client api
	log    *zap.Logger

	// interval, attempts, and sleep are fixed in production and
	// injectable in tests.
	interval time.Duration
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller with production polling constants.
func NewPoller(client api, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		client:   client,
		log:      log,
		interval: pollInterval,
		attempts: maxAttempts,
		sleep:    sleepCtx,
	}
}

// Run executes the full export protocol for req and never returns a
// bare error: every failure mode is folded into the Result. The
// context flows into every HTTP call and every inter-poll sleep, so
// cancelling the tool invocation aborts a multi-minute wait.
func (p *Poller) Run(ctx context.Context, req Request) Result {
	res := p.runAttempt(ctx, req)
	if res.Err == nil {
		return res
	}

	// Hard failure on the primary attempt: one fallback run in the
	// conservative format, with the filter set reduced to date range
	// and completion status.
	p.log.Warn("primary export failed, starting fallback",
		zap.String("survey_id", req.SurveyID),
		zap.String("primary_format", req.Format),
		zap.Error(res.Err))

	fbReq := Request{
		SurveyID:          req.SurveyID,
		Format:            FallbackFormat,
		Filters:           narrowForFallback(req.Filters),
		WaitForCompletion: req.WaitForCompletion,
	}
	fb := p.runAttempt(ctx, fbReq)
	fb.Checks += res.Checks
	fb.FallbackErr = fb.Err
	fb.Err = res.Err // preserve the original failure for diagnostics

	switch fb.Outcome {
	case OutcomeCompleted:
		fb.Outcome = OutcomeCompletedViaFallback
	case OutcomeTimeout:
		fb.Outcome = OutcomeFallbackTimeout
	case OutcomeStarted:
		// Fire-and-forget fallback: the job was accepted; the primary
		// failure is still reported through Err.
	default:
		fb.Outcome = OutcomeFailed
	}
	return fb
}

// runAttempt performs one start → poll → download pass. Hard failures
// land in Result.Err; Run moves them to FallbackErr for the second
// attempt.
func (p *Poller) runAttempt(ctx context.Context, req Request) Result {
	res := Result{Format: req.Format}

	progressID, err := p.start(ctx, req)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	res.ProgressID = progressID

	if !req.WaitForCompletion {
		res.Outcome = OutcomeStarted
		return res
	}

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := p.sleep(ctx, p.interval); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}

		progress, err := p.CheckProgress(ctx, req.SurveyID, progressID)
		if err != nil {
			res.Checks++
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		res.Checks++

		p.log.Debug("export progress",
			zap.String("survey_id", req.SurveyID),
			zap.String("progress_id", progressID),
			zap.Int("attempt", attempt),
			zap.Float64("percent", progress.Percent))

		if progress.Failed() {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("export job %s reported status %q", progressID, progress.Status)
			return res
		}

		// Completion is exact equality with 100 — no epsilon. Anything
		// less keeps polling.
		if progress.Complete() {
			content, err := p.Download(ctx, req.SurveyID, progress.FileID)
			if err != nil {
				res.Outcome = OutcomeFailed
				res.Err = err
				return res
			}
			res.Outcome = OutcomeCompleted
			res.FileID = progress.FileID
			res.Content = content
			return res
		}
	}

	res.Outcome = OutcomeTimeout
	return res
}

// start posts the export job and returns its progress id.
func (p *Poller) start(ctx context.Context, req Request) (string, error) {
	body := map[string]any{"format": req.Format}
	if req.Filters.StartDate != "" {
		body["startDate"] = req.Filters.StartDate
	}
	if req.Filters.EndDate != "" {
		body["endDate"] = req.Filters.EndDate
	}
	if req.Filters.Status != "" {
		body["responseStatus"] = req.Filters.Status
	}
	if len(req.Filters.QuestionIDs) > 0 {
		body["questionIds"] = req.Filters.QuestionIDs
	}
	if len(req.Filters.EmbeddedDataIDs) > 0 {
		body["embeddedDataIds"] = req.Filters.EmbeddedDataIDs
	}

	resp, err := p.client.Post(ctx, fmt.Sprintf("/surveys/%s/export-responses", req.SurveyID), body)
	if err != nil {
		return "", fmt.Errorf("starting export: %w", err)
	}

	progressID := resultString(resp, "progressId")
	if progressID == "" {
		return "", fmt.Errorf("export start response missing progressId")
	}
	return progressID, nil
}

// Progress is one status-check observation of a remote export job.
type Progress struct {
	Percent float64
	Status  string
	FileID  string
}

// Complete reports completion: percent complete equals 100 exactly.
func (pr Progress) Complete() bool { return pr.Percent == 100 }

// Failed reports a remote-side hard failure.
func (pr Progress) Failed() bool { return pr.Status == "failed" }

// CheckProgress queries the status of an export job. It is also used
// directly by the check_export_progress tool to re-poll jobs that
// outlived the in-process budget.
func (p *Poller) CheckProgress(ctx context.Context, surveyID, progressID string) (Progress, error) {
	resp, err := p.client.Get(ctx, fmt.Sprintf("/surveys/%s/export-responses/%s", surveyID, progressID))
	if err != nil {
		return Progress{}, fmt.Errorf("checking export progress: %w", err)
	}

	pr := Progress{
		Status: resultString(resp, "status"),
		FileID: resultString(resp, "fileId"),
	}
	if result, ok := resp["result"].(map[string]any); ok {
		if pct, ok := result["percentComplete"].(float64); ok {
			pr.Percent = pct
		}
	}
	return pr, nil
}

// Download fetches a completed export artifact as text.
func (p *Poller) Download(ctx context.Context, surveyID, fileID string) (string, error) {
	text, err := p.client.GetText(ctx, fmt.Sprintf("/surveys/%s/export-responses/%s/file", surveyID, fileID))
	if err != nil {
		return "", fmt.Errorf("downloading export file: %w", err)
	}
	return text, nil
}

// narrowForFallback keeps only the date-range and completion-status
// filters. Question and embedded-data selections are dropped: they are
// assumed to be the likely cause of the primary failure. New filter
// types must opt in here explicitly rather than being carried over.
func narrowForFallback(f Filters) Filters {
	return Filters{
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Status:    f.Status,
	}
}

// resultString extracts result.<key> as a string from a decoded
// response, returning "" when absent.
func resultString(resp map[string]any, key string) string {
	result, ok := resp["result"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := result[key].(string)
	return s
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
