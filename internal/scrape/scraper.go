// Package scrape runs the scrape cycle: it fetches the listing, reconciles
// it against the previous snapshot, derives events and publishes the result.
package scrape

import (
	"context"
	"fmt"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/components/assert"
	"chattysync/internal/components/chrono"
	"chattysync/internal/components/telemetry"
	"chattysync/internal/events"
	"chattysync/internal/parser"
	"chattysync/internal/shack"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("chattysync/internal/scrape")

const (
	report_service_scrape   = "service.scrape"
	report_scraper_archive  = "scraper.archive"
	report_scraper_save     = "scraper.save"
	report_scraper_threads  = "scraper.threads"
	report_scraper_posts    = "scraper.posts"
	report_scraper_duration = "scraper.cycle-duration-ms"
)

// Upstream is what a cycle reads from the chatty.
type Upstream interface {
	GetPage(ctx context.Context, page int, previous *chatty.CachedPage) (chatty.CachedPage, error)
	GetThreadBodies(ctx context.Context, rootId int64) (map[int64]parser.PostBody, error)
	ThreadExists(ctx context.Context, id int64) (bool, error)
	GetLolCounts(ctx context.Context, previous shack.LolCountsResult) (shack.LolCountsResult, error)
}

// Publisher makes a cycle's result visible to readers.
type Publisher interface {
	Publish(snapshot *chatty.Chatty, lols chatty.LolCounts, events []chatty.Event) []chatty.Event
	GetLastEventID() int64
	Events() []chatty.Event
}

type StateSaver interface {
	Save(state chatty.ScrapeState) error
}

type EventArchive interface {
	Append(ctx context.Context, events []chatty.Event) error
}

type Options struct {
	// Interval is the time between the start of consecutive cycles.
	Interval time.Duration
	// ExpiryAge is how old a thread that left the listing must be before
	// it is dropped instead of kept in the snapshot.
	ExpiryAge       time.Duration
	ParallelPages   int
	BackfillWorkers int
	// BaseUrl is what site-relative links in bodies are resolved against.
	BaseUrl string
	Events  events.Options
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.ExpiryAge <= 0 {
		o.ExpiryAge = 24 * time.Hour
	}
	if o.ParallelPages <= 0 {
		o.ParallelPages = 3
	}
	if o.BackfillWorkers <= 0 {
		o.BackfillWorkers = 4
	}
	return o
}

// Scraper owns the scrape state, only one cycle may run at a time.
type Scraper struct {
	upstream  Upstream
	publisher Publisher
	saver     StateSaver
	archive   EventArchive
	time      chrono.TimeAPI
	tel       telemetry.API
	opts      Options

	state chatty.ScrapeState
}

// New creates a scraper resuming from state. archive may be nil.
func New(
	upstream Upstream,
	publisher Publisher,
	saver StateSaver,
	archive EventArchive,
	state chatty.ScrapeState,
	opts Options,
	clock chrono.TimeAPI,
	tel telemetry.API,
) *Scraper {
	assert.NotNil(upstream)
	assert.NotNil(publisher)
	assert.NotNil(saver)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if state.Chatty == nil {
		state.Chatty = chatty.NewChatty(nil)
	}
	return &Scraper{
		upstream:  upstream,
		publisher: publisher,
		saver:     saver,
		archive:   archive,
		time:      clock,
		tel:       telemetry.NewScopedAPI("scrape", tel),
		opts:      opts.withDefaults(),
		state:     state,
	}
}

// State returns the state as of the last completed cycle.
func (s *Scraper) State() chatty.ScrapeState {
	return s.state
}

// Run cycles until ctx ends. A failed cycle is reported and the next one
// starts on schedule.
func (s *Scraper) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		err := s.Cycle(ctx)
		if err != nil && ctx.Err() == nil {
			s.tel.ReportBroken(report_service_scrape, err)
		}
		elapsed := time.Since(start)
		s.tel.ReportCount(report_scraper_duration, elapsed.Milliseconds())
		timer.Reset(max(s.opts.Interval-elapsed, 0))
	}
}

// stopwatch records how long each step of a cycle took.
type stopwatch struct {
	last  time.Time
	steps []any
}

func newStopwatch() *stopwatch {
	return &stopwatch{last: time.Now()}
}

func (w *stopwatch) lap(name string) {
	now := time.Now()
	w.steps = append(w.steps, name, now.Sub(w.last).String())
	w.last = now
}

func step(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scrape:"+name)
}

func endStep(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Cycle runs one scrape. When it fails nothing is published and the state
// is left as it was.
func (s *Scraper) Cycle(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "scrape:cycle")
	defer func() { endStep(span, err) }()

	watch := newStopwatch()
	prev := s.state
	now := s.time.Now()

	pages, lols, err := s.fetch(ctx, prev)
	if err != nil {
		return err
	}
	watch.lap("fetch")

	threads := mergePages(pages)
	threads, nukedIds, expiredIds, err := s.reconcileMissing(ctx, prev.Chatty, threads, now)
	if err != nil {
		return err
	}
	next := chatty.NewChatty(threads)
	next.SortByActivity()
	next.NukedThreadIDs = nukedIds
	next.ExpiredThreadIDs = expiredIds
	watch.lap("merge")

	missing := copyForward(prev.Chatty, next)
	err = s.backfill(ctx, next, missing)
	if err != nil {
		return err
	}
	watch.lap("backfill")

	pruned := pruneMissingBodies(next)
	if pruned > 0 {
		s.tel.ReportDebug("removed posts without a body", "count", pruned)
	}
	finishPosts(next, s.opts.BaseUrl)
	watch.lap("finish")

	_, diffSpan := step(ctx, "diff")
	derived := events.Diff(
		events.Snapshot{Chatty: prev.Chatty, LolCounts: prev.LolCounts},
		events.Snapshot{Chatty: next, LolCounts: lols.Counts},
		s.publisher.GetLastEventID(),
		now,
		s.opts.Events,
	)
	diffSpan.SetAttributes(attribute.Int("events", len(derived)))
	endStep(diffSpan, nil)
	watch.lap("diff")

	appended := s.publisher.Publish(next, lols.Counts, derived)
	watch.lap("publish")

	s.state = chatty.ScrapeState{
		Chatty:    next,
		Pages:     pages,
		LolJSON:   lols.JSON,
		LolCounts: lols.Counts,
		Events:    s.publisher.Events(),
	}
	if len(appended) > 0 {
		s.persist(ctx, appended)
		watch.lap("save")
	}

	s.tel.ReportCount(report_scraper_threads, int64(len(next.Threads)))
	s.tel.ReportCount(report_scraper_posts, int64(next.PostCount()))
	s.tel.ReportDebug("cycle complete", append([]any{"events", len(appended)}, watch.steps...)...)
	return nil
}

// persist failures are reported but do not fail the cycle, the published
// state stays authoritative until the next save succeeds.
func (s *Scraper) persist(ctx context.Context, appended []chatty.Event) {
	_, span := step(ctx, "save")
	err := s.saver.Save(s.state)
	if err != nil {
		s.tel.ReportWarning(report_scraper_save, err)
	}
	if s.archive != nil {
		archiveErr := s.archive.Append(ctx, appended)
		if archiveErr != nil {
			s.tel.ReportWarning(report_scraper_archive, archiveErr)
			err = archiveErr
		}
	}
	endStep(span, err)
}

// fetch reads every listing page and the chatty-wide lol counts
// concurrently.
func (s *Scraper) fetch(ctx context.Context, prev chatty.ScrapeState) ([]chatty.CachedPage, shack.LolCountsResult, error) {
	ctx, span := step(ctx, "fetch")
	var pages []chatty.CachedPage
	var lols shack.LolCountsResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lols, err = s.upstream.GetLolCounts(gctx, shack.LolCountsResult{
			JSON:   prev.LolJSON,
			Counts: prev.LolCounts,
		})
		return err
	})
	g.Go(func() error {
		var err error
		pages, err = s.fetchPages(gctx, prev.Pages)
		return err
	})
	err := g.Wait()
	if err == nil {
		span.SetAttributes(attribute.Int("pages", len(pages)))
	}
	endStep(span, err)
	return pages, lols, err
}

// fetchPages reads page 1, which tells how many pages there are, then the
// remaining pages with bounded parallelism. Pages are kept in page order no
// matter the order they complete in.
func (s *Scraper) fetchPages(ctx context.Context, cached []chatty.CachedPage) ([]chatty.CachedPage, error) {
	previous := func(page int) *chatty.CachedPage {
		if page-1 < len(cached) {
			return &cached[page-1]
		}
		return nil
	}

	first, err := s.upstream.GetPage(ctx, 1, previous(1))
	if err != nil {
		return nil, err
	}
	pages := []chatty.CachedPage{first}

	// the number of pages can grow while they are being read
	for lastPage := first.Page.LastPage; len(pages) < lastPage; {
		from := len(pages) + 1
		batch := make([]chatty.CachedPage, lastPage-len(pages))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.ParallelPages)
		for i := range batch {
			page := from + i
			g.Go(func() error {
				fetched, err := s.upstream.GetPage(gctx, page, previous(page))
				if err != nil {
					return err
				}
				batch[i] = fetched
				return nil
			})
		}
		err := g.Wait()
		if err != nil {
			return nil, err
		}

		pages = append(pages, batch...)
		for _, p := range batch {
			lastPage = max(lastPage, p.Page.LastPage)
		}
	}
	return pages, nil
}

// reconcileMissing decides the fate of threads that left the listing,
// retained threads are appended to threads.
func (s *Scraper) reconcileMissing(ctx context.Context, prev *chatty.Chatty, threads []chatty.Thread, now time.Time) ([]chatty.Thread, []int64, []int64, error) {
	gone := disappeared(prev, threads)
	if len(gone) == 0 {
		return threads, nil, nil, nil
	}

	ctx, span := step(ctx, "probe")
	results := make([]disposition, len(gone))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BackfillWorkers)
	for i, thread := range gone {
		g.Go(func() error {
			d, err := classify(thread, now, s.opts.ExpiryAge, func() (bool, error) {
				return s.upstream.ThreadExists(gctx, thread.ID)
			})
			if err != nil {
				return fmt.Errorf("probe thread %d: %w", thread.ID, err)
			}
			results[i] = d
			return nil
		})
	}
	err := g.Wait()
	endStep(span, err)
	if err != nil {
		return nil, nil, nil, err
	}

	var nukedIds, expiredIds []int64
	for i, thread := range gone {
		switch results[i] {
		case retained:
			threads = append(threads, thread.Clone())
		case expired:
			expiredIds = append(expiredIds, thread.ID)
		case nuked:
			nukedIds = append(nukedIds, thread.ID)
		}
	}
	if len(nukedIds) > 0 {
		s.tel.ReportDebug("threads nuked", "ids", nukedIds)
	}
	return threads, nukedIds, expiredIds, nil
}

// backfill loads bodies for the given threads with bounded parallelism.
func (s *Scraper) backfill(ctx context.Context, next *chatty.Chatty, threadIds []int64) error {
	if len(threadIds) == 0 {
		return nil
	}
	ctx, span := step(ctx, "backfill")
	span.SetAttributes(attribute.Int("threads", len(threadIds)))

	results := make([]map[int64]parser.PostBody, len(threadIds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BackfillWorkers)
	for i, id := range threadIds {
		g.Go(func() error {
			bodies, err := s.upstream.GetThreadBodies(gctx, id)
			if err != nil {
				return err
			}
			results[i] = bodies
			return nil
		})
	}
	err := g.Wait()
	endStep(span, err)
	if err != nil {
		return err
	}

	for i, id := range threadIds {
		for ti := range next.Threads {
			if next.Threads[ti].ID == id {
				applyBodies(&next.Threads[ti], results[i])
				break
			}
		}
	}
	return nil
}
