// Package shack is the client for the upstream chatty. It composes the
// downloader with the markup parsers.
package shack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"chattysync/internal/chatty"
	"chattysync/internal/components/assert"
	"chattysync/internal/components/telemetry"
	"chattysync/internal/parser"
)

const (
	report_client_get_page          = "client.get-page"
	report_client_get_thread_tree   = "client.get-thread-tree"
	report_client_get_thread_bodies = "client.get-thread-bodies"
	report_client_get_lol_counts    = "client.get-lol-counts"
	report_client_get_thread_lols   = "client.get-thread-lols"
	report_client_thread_exists     = "client.thread-exists"
)

// Downloader is the fetch capability the client needs.
type Downloader interface {
	SharedLogin(ctx context.Context, path string) (string, error)
	Anonymous(ctx context.Context, path string) (string, error)
	AnonymousPost(ctx context.Context, path string, form url.Values) (string, error)
}

type Client struct {
	dl  Downloader
	tel telemetry.API
}

func NewClient(dl Downloader, tel telemetry.API) Client {
	assert.NotNil(dl)
	assert.NotNil(tel)
	return Client{dl: dl, tel: telemetry.NewScopedAPI("shack", tel)}
}

// GetPage fetches a listing page. When the normalized markup equals the
// markup of previous, previous is returned without parsing again.
func (c Client) GetPage(ctx context.Context, page int, previous *chatty.CachedPage) (chatty.CachedPage, error) {
	markup, err := c.dl.SharedLogin(ctx, fmt.Sprintf("/chatty?page=%d", page))
	if err != nil {
		return chatty.CachedPage{}, fmt.Errorf("get page %d: %w", page, err)
	}
	normalized := parser.NormalizePage(markup)
	if previous != nil && previous.HTML == normalized {
		return *previous, nil
	}

	parsed, err := parser.ParsePage(normalized)
	if err != nil {
		c.tel.ReportBroken(report_client_get_page, fmt.Errorf("parse: %w", err), page)
		return chatty.CachedPage{}, fmt.Errorf("parse page %d: %w", page, err)
	}
	return chatty.CachedPage{HTML: normalized, Page: parsed}, nil
}

// GetThreadTree fetches the structure of a single thread. The returned
// error wraps parser.ErrMissingThread when the id is not a chatty thread.
func (c Client) GetThreadTree(ctx context.Context, id int64) (chatty.Thread, error) {
	markup, err := c.dl.SharedLogin(ctx, fmt.Sprintf("/chatty?id=%d", id))
	if err != nil {
		return chatty.Thread{}, fmt.Errorf("get thread %d: %w", id, err)
	}
	thread, err := parser.ParseThreadPage(markup)
	if errors.Is(err, parser.ErrMissingThread) {
		return chatty.Thread{}, fmt.Errorf("thread %d: %w", id, err)
	}
	if err != nil {
		c.tel.ReportBroken(report_client_get_thread_tree, fmt.Errorf("parse: %w", err), id)
		return chatty.Thread{}, fmt.Errorf("parse thread %d: %w", id, err)
	}
	return thread, nil
}

// GetThreadBodies fetches the bodies of every post in a thread.
func (c Client) GetThreadBodies(ctx context.Context, rootId int64) (map[int64]parser.PostBody, error) {
	markup, err := c.dl.Anonymous(ctx, fmt.Sprintf("/frame_laryn.x?root=%d", rootId))
	if err != nil {
		return nil, fmt.Errorf("get bodies %d: %w", rootId, err)
	}
	bodies, err := parser.ParseThreadBodies(markup)
	if err != nil {
		c.tel.ReportBroken(report_client_get_thread_bodies, fmt.Errorf("parse: %w", err), rootId)
		return nil, fmt.Errorf("parse bodies %d: %w", rootId, err)
	}
	return bodies, nil
}

// GetThread fetches a thread with every body loaded.
func (c Client) GetThread(ctx context.Context, id int64) (chatty.Thread, error) {
	thread, err := c.GetThreadTree(ctx, id)
	if err != nil {
		return chatty.Thread{}, err
	}
	bodies, err := c.GetThreadBodies(ctx, thread.ID)
	if err != nil {
		return chatty.Thread{}, err
	}
	for i := range thread.Posts {
		body, ok := bodies[thread.Posts[i].ID]
		if ok {
			body.Apply(&thread.Posts[i])
		}
	}
	return thread, nil
}

// ThreadExists probes whether a thread id can still be viewed.
func (c Client) ThreadExists(ctx context.Context, id int64) (bool, error) {
	_, err := c.GetThreadTree(ctx, id)
	if errors.Is(err, parser.ErrMissingThread) {
		c.tel.ReportDebug("probed missing thread", id, err.Error())
		return false, nil
	}
	if err != nil {
		c.tel.ReportWarning(report_client_thread_exists, err, id)
		return false, err
	}
	return true, nil
}

// LolCountsResult is the decoded chatty-wide lol counts with the raw
// document they were decoded from.
type LolCountsResult struct {
	JSON   string
	Counts chatty.LolCounts
}

// GetLolCounts fetches the chatty-wide lol counts, reusing previous when
// the document did not change.
func (c Client) GetLolCounts(ctx context.Context, previous LolCountsResult) (LolCountsResult, error) {
	data, err := c.dl.Anonymous(ctx, "/api2/api-index.php?action2=ext_get_counts")
	if err != nil {
		return LolCountsResult{}, fmt.Errorf("get lol counts: %w", err)
	}
	if previous.JSON != "" && data == previous.JSON {
		return previous, nil
	}
	counts, err := parser.ParseLolCounts([]byte(data))
	if err != nil {
		c.tel.ReportBroken(report_client_get_lol_counts, err)
		return LolCountsResult{}, err
	}
	return LolCountsResult{JSON: data, Counts: counts}, nil
}

// GetThreadLols fetches the current tag totals of specific posts.
func (c Client) GetThreadLols(ctx context.Context, postIds []int64) (chatty.ThreadLols, error) {
	form := url.Values{}
	for _, id := range postIds {
		form.Add("ids[]", strconv.FormatInt(id, 10))
	}
	data, err := c.dl.AnonymousPost(ctx, "/api2/api-index.php?action2=get_all_tags_for_posts", form)
	if err != nil {
		return nil, fmt.Errorf("get thread lols: %w", err)
	}
	lols, err := parser.ParseThreadTags([]byte(data))
	if err != nil {
		c.tel.ReportBroken(report_client_get_thread_lols, err)
		return nil, err
	}
	return lols, nil
}
