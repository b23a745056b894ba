// Package provider publishes completed snapshots and serves them, along
// with the event log, to any number of concurrent readers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chattysync/internal/chatty"
	"chattysync/internal/components/assert"
	"chattysync/internal/components/chrono"
	"chattysync/internal/components/telemetry"
	"chattysync/internal/eventlog"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNotInitialized is returned by snapshot reads before the first
// snapshot is published.
var ErrNotInitialized = errors.New("snapshot not initialized")

const (
	report_provider_get_thread      = "provider.get-thread"
	report_provider_get_thread_lols = "provider.get-thread-lols"
)

// ThreadFetcher fetches threads that are not part of the current snapshot.
type ThreadFetcher interface {
	GetThread(ctx context.Context, id int64) (chatty.Thread, error)
	GetThreadLols(ctx context.Context, postIds []int64) (chatty.ThreadLols, error)
}

type Options struct {
	// Capacity is the number of events the log retains.
	Capacity int
	// MaxWait bounds how long WaitForEvent blocks.
	MaxWait time.Duration
	// ThreadCacheTTL is how long an on-demand thread is served from cache.
	ThreadCacheTTL  time.Duration
	ThreadCacheSize int
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = eventlog.DefaultCapacity
	}
	if o.MaxWait <= 0 {
		o.MaxWait = time.Minute
	}
	if o.ThreadCacheTTL <= 0 {
		o.ThreadCacheTTL = 30 * time.Second
	}
	if o.ThreadCacheSize <= 0 {
		o.ThreadCacheSize = 512
	}
	return o
}

// Provider holds the published snapshot. A published snapshot is never
// mutated, publishing swaps the reference under the write lock.
type Provider struct {
	mutex    sync.RWMutex
	snapshot *chatty.Chatty
	lols     chatty.LolCounts
	log      *eventlog.Log
	// notify is closed and replaced whenever events are appended
	notify chan struct{}

	opts    Options
	fetcher ThreadFetcher
	threads *expirable.LRU[int64, chatty.Thread]
	time    chrono.TimeAPI
	tel     telemetry.API
}

// New creates a provider whose event log continues from restored.
func New(fetcher ThreadFetcher, restored []chatty.Event, opts Options, clock chrono.TimeAPI, tel telemetry.API) *Provider {
	assert.NotNil(fetcher)
	assert.NotNil(clock)
	assert.NotNil(tel)

	opts = opts.withDefaults()
	return &Provider{
		log:     eventlog.New(opts.Capacity, restored),
		notify:  make(chan struct{}),
		opts:    opts,
		fetcher: fetcher,
		threads: expirable.NewLRU[int64, chatty.Thread](opts.ThreadCacheSize, nil, opts.ThreadCacheTTL),
		time:    clock,
		tel:     telemetry.NewScopedAPI("provider", tel),
	}
}

// wake must be called with the write lock held.
func (p *Provider) wake() {
	close(p.notify)
	p.notify = make(chan struct{})
}

// Publish makes a snapshot and its lol counts visible and appends the
// events derived from it. The snapshot must not be modified afterwards.
// The events as appended, with their final ids, are returned.
func (p *Provider) Publish(snapshot *chatty.Chatty, lols chatty.LolCounts, events []chatty.Event) []chatty.Event {
	assert.NotNil(snapshot)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	appended := p.log.Append(p.time.Now(), events)
	p.snapshot = snapshot
	p.lols = lols
	if len(appended) > 0 {
		p.wake()
	}
	return appended
}

// AppendReadStatusUpdate records that a user's read position changed.
func (p *Provider) AppendReadStatusUpdate(username string) chatty.Event {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	appended := p.log.Append(p.time.Now(), []chatty.Event{{
		Type:             chatty.EventReadStatusUpdate,
		ReadStatusUpdate: &chatty.ReadStatusUpdateEvent{Username: username},
	}})
	p.wake()
	return appended[0]
}

func (p *Provider) GetSnapshot() (*chatty.Chatty, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.snapshot == nil {
		return nil, ErrNotInitialized
	}
	return p.snapshot, nil
}

// GetSnapshotWithLastEventID returns the snapshot together with the id of
// the last event it reflects, read atomically.
func (p *Provider) GetSnapshotWithLastEventID() (*chatty.Chatty, int64, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.snapshot == nil {
		return nil, 0, ErrNotInitialized
	}
	return p.snapshot, p.log.LastID(), nil
}

func (p *Provider) GetLolCounts() chatty.LolCounts {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.lols.Threads == nil {
		return chatty.LolCounts{Threads: map[int64]chatty.ThreadLols{}}
	}
	return p.lols
}

func (p *Provider) resident(id int64) (chatty.Thread, chatty.ThreadLols, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.snapshot == nil {
		return chatty.Thread{}, nil, false
	}
	thread, ok := p.snapshot.ThreadOfPost(id)
	if !ok {
		return chatty.Thread{}, nil, false
	}
	return thread, p.lols.Thread(thread.ID), true
}

// GetThread returns the thread containing a post id. Threads outside the
// snapshot are fetched from upstream and cached briefly.
func (p *Provider) GetThread(ctx context.Context, id int64) (chatty.Thread, error) {
	thread, _, ok := p.resident(id)
	if ok {
		return thread.Clone(), nil
	}

	cached, ok := p.threads.Get(id)
	if ok {
		return cached.Clone(), nil
	}

	thread, err := p.fetcher.GetThread(ctx, id)
	if err != nil {
		p.tel.ReportDebug("on-demand thread fetch failed", id, err.Error())
		return chatty.Thread{}, fmt.Errorf("get thread %d: %w", id, err)
	}
	if thread.IndexOf(id) == -1 {
		err = fmt.Errorf("get thread %d: upstream returned thread %d", id, thread.ID)
		p.tel.ReportWarning(report_provider_get_thread, err)
		return chatty.Thread{}, err
	}
	p.threads.Add(id, thread)
	if id != thread.ID {
		p.threads.Add(thread.ID, thread)
	}
	return thread.Clone(), nil
}

// GetThreadLols returns the lol counts of the thread containing a post id.
func (p *Provider) GetThreadLols(ctx context.Context, id int64) (chatty.ThreadLols, error) {
	_, lols, ok := p.resident(id)
	if ok {
		return lols, nil
	}

	thread, err := p.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(thread.Posts))
	for i, post := range thread.Posts {
		ids[i] = post.ID
	}
	lols, err = p.fetcher.GetThreadLols(ctx, ids)
	if err != nil {
		p.tel.ReportWarning(report_provider_get_thread_lols, err, thread.ID)
		return nil, fmt.Errorf("get thread lols %d: %w", thread.ID, err)
	}
	return lols, nil
}

// GetEvents returns every event after lastEventID, or
// eventlog.ErrTooFarBehind when some of them were already evicted.
func (p *Provider) GetEvents(lastEventID int64) ([]chatty.Event, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.log.Since(lastEventID)
}

func (p *Provider) GetLastEventID() int64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.log.LastID()
}

// Events returns every retained event, for persistence.
func (p *Provider) Events() []chatty.Event {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.log.All()
}

// WaitForEvent blocks until an event after lastEventID exists, the timeout
// elapses or ctx ends. The timeout is capped at the configured maximum
// wait, a non-positive timeout waits the maximum. On timeout it returns no
// events and lastEventID unchanged.
func (p *Provider) WaitForEvent(ctx context.Context, lastEventID int64, timeout time.Duration) ([]chatty.Event, int64, error) {
	if timeout <= 0 || timeout > p.opts.MaxWait {
		timeout = p.opts.MaxWait
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		p.mutex.RLock()
		events, err := p.log.Since(lastEventID)
		notify := p.notify
		p.mutex.RUnlock()

		if err != nil {
			return nil, lastEventID, err
		}
		if len(events) > 0 {
			return events, events[len(events)-1].ID, nil
		}

		select {
		case <-notify:
		case <-timer.C:
			return nil, lastEventID, nil
		case <-ctx.Done():
			return nil, lastEventID, ctx.Err()
		}
	}
}
