// Package archive keeps the files a user uploads for each symbol. It
// deduplicates uploads by content hash, assigns each file a category and
// hands new text files to the technique learner.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Reasons a file is ignored.
const (
	IgnoredDuplicateBatch    = "duplicate-batch"
	IgnoredDuplicateExisting = "duplicate-existing"
	IgnoredUnchanged         = "unchanged"
)

// RateLimitMessage is shown when the categorizer is throttled mid-batch.
const RateLimitMessage = "The AI service rate limit was reached. Processing stopped; please wait a minute and try again."

// RawFile is one uploaded file before archiving.
type RawFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// IgnoredFile is a file skipped by dedup, with the reason shown to the user.
type IgnoredFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}

// FileError is a per-file failure that did not stop the batch.
type FileError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// IngestReport summarises one batch.
type IngestReport struct {
	Added   []models.Artifact `json:"added"`
	Updated []models.Artifact `json:"updated"`
	Ignored []IgnoredFile     `json:"ignored"`
	Errors  []FileError       `json:"errors"`
}

// TechniqueSink receives new or updated text artifacts for technique
// extraction. It runs detached from the ingest call.
type TechniqueSink func(ctx context.Context, a models.Artifact) error

// Option configures a Manager.
type Option func(*Manager)

// WithTechniqueSink registers the background extraction hook.
func WithTechniqueSink(sink TechniqueSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithPublisher sets the event publisher for per-file progress.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.events = events.OrNop(p) }
}

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the artifact collection.
type Manager struct {
	artifacts   *store.Collection[models.Artifact, *models.Artifact]
	categorizer Categorizer
	sink        TechniqueSink
	events      events.Publisher
	now         func() time.Time

	mu sync.Mutex // serialises batches
	wg sync.WaitGroup
}

// NewManager creates an archive manager over the artifact collection.
func NewManager(artifacts *store.Collection[models.Artifact, *models.Artifact], c Categorizer, opts ...Option) *Manager {
	m := &Manager{
		artifacts:   artifacts,
		categorizer: c,
		events:      events.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ingest archives files for symbol, in order. A rate limit from the
// categorizer stops the batch: the report so far is returned together with
// a transient error and the remaining files are left untouched.
func (m *Manager) Ingest(ctx context.Context, symbol string, files []RawFile) (IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report IngestReport
	if symbol == "" {
		return report, apperr.Newf(apperr.KindValidation, "Select a symbol before uploading files.")
	}

	op := logger.StartOperation(ctx, "archive.ingest", "symbol", symbol, "files", len(files))
	ctx = op.Context()

	existing, err := m.ListFor(ctx, symbol)
	if err != nil {
		op.EndWithError(err)
		return report, err
	}
	byName := make(map[string]models.Artifact, len(existing))
	byHash := make(map[string]string, len(existing))
	for _, a := range existing {
		byName[a.Name] = a
		byHash[a.ContentHash] = a.Name
	}
	batch := make(map[string]string)

	for _, f := range files {
		art, outcome, err := m.ingestOne(ctx, symbol, f, byName, byHash, batch)
		switch {
		case err != nil && llm.IsRateLimit(err):
			m.publish(ctx, symbol, f.Name, "error", RateLimitMessage)
			op.EndWithError(err, "added", len(report.Added), "updated", len(report.Updated))
			return report, apperr.New(apperr.KindTransient, RateLimitMessage, err)
		case err != nil:
			logger.ErrorWithErr(ctx, "archive: file failed", err, "file", f.Name)
			report.Errors = append(report.Errors, FileError{Name: f.Name, Error: apperr.UserMessage(err)})
			m.publish(ctx, symbol, f.Name, "error", apperr.UserMessage(err))
			continue
		}

		switch outcome.status {
		case "added":
			report.Added = append(report.Added, art)
		case "updated":
			report.Updated = append(report.Updated, art)
		default:
			report.Ignored = append(report.Ignored, outcome.ignored)
			m.publish(ctx, symbol, f.Name, "ignored", outcome.ignored.Reason)
			continue
		}
		if prev, ok := byName[art.Name]; ok && byHash[prev.ContentHash] == art.Name {
			delete(byHash, prev.ContentHash)
		}
		byName[art.Name] = art
		byHash[art.ContentHash] = art.Name
		m.publish(ctx, symbol, f.Name, outcome.status, string(art.Category))

		if !art.IsImage() && m.sink != nil {
			m.learn(art)
		}
	}

	op.End("added", len(report.Added), "updated", len(report.Updated),
		"ignored", len(report.Ignored), "errors", len(report.Errors))
	return report, nil
}

type outcome struct {
	status  string // added, updated, ignored
	ignored IgnoredFile
}

func (m *Manager) ingestOne(ctx context.Context, symbol string, f RawFile,
	byName map[string]models.Artifact, byHash, batch map[string]string) (models.Artifact, outcome, error) {

	if len(f.Data) == 0 {
		return models.Artifact{}, outcome{}, fmt.Errorf("file %q is empty", f.Name)
	}
	mt := detectMIME(f.MimeType, f.Data)
	content, err := readContent(f.Name, mt, f.Data)
	if err != nil {
		return models.Artifact{}, outcome{}, fmt.Errorf("reading %q: %w", f.Name, err)
	}
	hash := hashContent(content)

	if other, dup := batch[hash]; dup {
		return models.Artifact{}, ignore(f.Name, IgnoredDuplicateBatch,
			fmt.Sprintf("%q has the same content as %q in this upload.", f.Name, other)), nil
	}
	prev, sameName := byName[f.Name]
	if other, dup := byHash[hash]; dup && other != f.Name {
		return models.Artifact{}, ignore(f.Name, IgnoredDuplicateExisting,
			fmt.Sprintf("%q has the same content as the archived file %q for this symbol.", f.Name, other)), nil
	}
	if sameName && prev.ContentHash == hash {
		return models.Artifact{}, ignore(f.Name, IgnoredUnchanged,
			fmt.Sprintf("%q is unchanged.", f.Name)), nil
	}

	art := models.Artifact{
		Name:        f.Name,
		MimeType:    mt,
		SizeBytes:   int64(len(f.Data)),
		Content:     content,
		ContentHash: hash,
		Symbol:      symbol,
		UploadedAt:  m.now().UTC(),
	}
	art.Category, err = m.categorize(ctx, art, mt)
	if err != nil {
		return models.Artifact{}, outcome{}, err
	}

	if sameName {
		art.ID = prev.ID
		if err := m.artifacts.Update(ctx, &art); err != nil {
			return models.Artifact{}, outcome{}, err
		}
		batch[hash] = f.Name
		return art, outcome{status: "updated"}, nil
	}
	if _, err := m.artifacts.Add(ctx, &art); err != nil {
		return models.Artifact{}, outcome{}, err
	}
	batch[hash] = f.Name
	return art, outcome{status: "added"}, nil
}

func ignore(name, kind, reason string) outcome {
	return outcome{status: "ignored", ignored: IgnoredFile{Name: name, Kind: kind, Reason: reason}}
}

// categorize returns chart image for images, the categorizer's answer for
// text and other for everything else. Only a rate limit is returned as an
// error.
func (m *Manager) categorize(ctx context.Context, a models.Artifact, mt string) (models.FileCategory, error) {
	if a.IsImage() {
		return models.CategoryChartImage, nil
	}
	if m.categorizer == nil || !(isText(mt) || isHTML(mt, a.Name)) {
		return models.CategoryOther, nil
	}
	cat, err := m.categorizer.Categorize(ctx, a.Content)
	if err != nil {
		if llm.IsRateLimit(err) {
			return "", err
		}
		logger.Warn(ctx, "archive: categorization failed, using other", "file", a.Name, "error", err)
		return models.CategoryOther, nil
	}
	return cat, nil
}

// learn runs the technique sink detached from the caller's context.
func (m *Manager) learn(a models.Artifact) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx := context.Background()
		if err := m.sink(ctx, a); err != nil {
			logger.Warn(ctx, "archive: technique extraction failed", "file", a.Name, "error", err)
		}
	}()
}

// Wait blocks until background extraction tasks have finished.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) publish(ctx context.Context, symbol, name, status, detail string) {
	m.events.Publish(ctx, events.New(events.IngestFile, map[string]string{
		"symbol": symbol, "file": name, "status": status, "detail": detail,
	}))
}

// ── Queries and maintenance ──

// ListFor returns the artifacts of symbol in insertion order.
func (m *Manager) ListFor(ctx context.Context, symbol string) ([]models.Artifact, error) {
	all, err := m.artifacts.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Artifact, 0, len(all))
	for _, a := range all {
		if a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out, nil
}

// List returns every artifact.
func (m *Manager) List(ctx context.Context) ([]models.Artifact, error) {
	return m.artifacts.GetAll(ctx)
}

// Remove deletes the artifact named name under symbol. Absent files are a no-op.
func (m *Manager) Remove(ctx context.Context, symbol, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.ListFor(ctx, symbol)
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.Name == name {
			err := m.artifacts.Delete(ctx, a.ID)
			if errors.Is(err, apperr.NotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

// ClearAll removes every artifact.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts.Clear(ctx)
}

// ReplaceAll swaps the archive contents.
func (m *Manager) ReplaceAll(ctx context.Context, items []models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts.ReplaceAll(ctx, items)
}
