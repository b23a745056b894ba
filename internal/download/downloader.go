package download

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"chattysync/internal/components/assert"
	"chattysync/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_downloader_shared_login = "downloader.shared-login"
	report_downloader_user_login   = "downloader.user-login"
	report_downloader_anonymous    = "downloader.anonymous"
)

var (
	ErrLoginFailed   = errors.New("login failed")
	ErrUserLoginBusy = errors.New("timed out waiting for another user login to finish")
)

// loggedInMarker only appears on pages served to a logged in session.
const loggedInMarker = `<li style="display: none" id="user_posts">`

const loginSuccessMarker = `{"result":{"valid":"true"`

type Options struct {
	Client ClientOptions

	// Username and Password are the credentials of the shared session.
	Username string
	Password string

	RequestsPerSecond float64
	// UserLoginWait bounds how long a user login waits for another one to finish.
	UserLoginWait time.Duration
}

// Downloader fetches upstream pages. Requests that need to be logged in
// go through one shared session, the session is refreshed when a response
// comes back logged out. Actions taken on behalf of a specific user run
// one at a time in a throwaway session.
type Downloader struct {
	opts    Options
	limiter *rate.Limiter
	tel     telemetry.API

	sharedLock sync.RWMutex
	shared     *resty.Client
	loggedIn   bool
	// generation increments each time the shared session logs in
	generation uint64

	userSlot chan struct{}
}

func New(opts Options, tel telemetry.API) (*Downloader, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Client.BaseUrl)

	tel = telemetry.NewScopedAPI("downloader", tel)

	opts.Client = opts.Client.withDefaults()
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.UserLoginWait <= 0 {
		opts.UserLoginWait = time.Second * 30
	}

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)

	shared, err := newClient(opts.Client, limiter, tel)
	if err != nil {
		return nil, err
	}

	return &Downloader{
		opts:     opts,
		limiter:  limiter,
		tel:      tel,
		shared:   shared,
		userSlot: make(chan struct{}, 1),
	}, nil
}

func get(ctx context.Context, client *resty.Client, path string) (string, error) {
	res, err := client.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return "", err
	}
	err = checkResponse(res)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func postForm(ctx context.Context, client *resty.Client, path string, form url.Values) (string, error) {
	res, err := client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(path)
	if err != nil {
		return "", err
	}
	err = checkResponse(res)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// login replaces the cookies of client with a freshly logged in session.
func login(ctx context.Context, client *resty.Client, username, password string) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client.SetCookieJar(jar)

	res, err := client.R().
		SetContext(ctx).
		SetHeader("x-requested-with", "XMLHttpRequest").
		SetFormDataFromValues(url.Values{
			"get_fields[]":    {"result"},
			"user-identifier": {username},
			"supplied-pass":   {password},
			"remember-login":  {"1"},
		}).
		Post("/account/signin")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !strings.Contains(res.String(), loginSuccessMarker) {
		return fmt.Errorf("%w: credentials for '%s' were rejected", ErrLoginFailed, username)
	}
	return nil
}

// SharedLogin fetches path with the shared logged in session, logging in
// again when the response comes back logged out.
func (d *Downloader) SharedLogin(ctx context.Context, path string) (string, error) {
	d.sharedLock.RLock()
	generation := d.generation
	var body string
	var err error
	accepted := false
	if d.loggedIn {
		body, err = get(ctx, d.shared, path)
		accepted = err == nil && strings.Contains(body, loggedInMarker)
	}
	d.sharedLock.RUnlock()

	if err != nil {
		d.tel.ReportBroken(report_downloader_shared_login, fmt.Errorf("get: %w", err), path)
		return "", err
	}
	if accepted {
		return body, nil
	}

	d.sharedLock.Lock()
	defer d.sharedLock.Unlock()

	// another caller may have already refreshed the session while this
	// one was waiting for the lock
	if d.generation == generation {
		d.loggedIn = false
		err = login(ctx, d.shared, d.opts.Username, d.opts.Password)
		if err != nil {
			d.tel.ReportBroken(report_downloader_shared_login, err)
			return "", err
		}
		d.generation++
		d.loggedIn = true
		d.tel.ReportDebug("shared session logged in", d.generation)
	}

	body, err = get(ctx, d.shared, path)
	if err != nil {
		d.tel.ReportBroken(report_downloader_shared_login, fmt.Errorf("get: %w", err), path)
		return "", err
	}
	if !strings.Contains(body, loggedInMarker) {
		err = fmt.Errorf("%w: response for '%s' was not logged in", ErrLoginFailed, path)
		d.tel.ReportBroken(report_downloader_shared_login, err)
		return "", err
	}
	return body, nil
}

// Anonymous fetches path without verifying the login state of the response.
func (d *Downloader) Anonymous(ctx context.Context, path string) (string, error) {
	d.sharedLock.RLock()
	defer d.sharedLock.RUnlock()

	body, err := get(ctx, d.shared, path)
	if err != nil {
		d.tel.ReportBroken(report_downloader_anonymous, fmt.Errorf("get: %w", err), path)
		return "", err
	}
	return body, nil
}

// AnonymousPost posts a form without verifying the login state of the response.
func (d *Downloader) AnonymousPost(ctx context.Context, path string, form url.Values) (string, error) {
	d.sharedLock.RLock()
	defer d.sharedLock.RUnlock()

	body, err := postForm(ctx, d.shared, path, form)
	if err != nil {
		d.tel.ReportBroken(report_downloader_anonymous, fmt.Errorf("post: %w", err), path)
		return "", err
	}
	return body, nil
}

// UserLogin logs in as a specific user in a throwaway session and posts
// form to path. Only one user action runs at a time, callers wait up to
// UserLoginWait for their turn.
func (d *Downloader) UserLogin(ctx context.Context, username, password, path string, form url.Values) (string, error) {
	timer := time.NewTimer(d.opts.UserLoginWait)
	defer timer.Stop()
	select {
	case d.userSlot <- struct{}{}:
	case <-timer.C:
		return "", ErrUserLoginBusy
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-d.userSlot }()

	client, err := newClient(d.opts.Client, d.limiter, d.tel)
	if err != nil {
		return "", err
	}
	err = login(ctx, client, username, password)
	if err != nil {
		d.tel.ReportWarning(report_downloader_user_login, err)
		return "", err
	}

	body, err := postForm(ctx, client, path, form)
	if err != nil {
		d.tel.ReportBroken(report_downloader_user_login, fmt.Errorf("post: %w", err), path)
		return "", err
	}
	return body, nil
}

// CloseIdleConnections drops idle keep-alive connections of the shared
// session so long lived connections get recycled.
func (d *Downloader) CloseIdleConnections() {
	d.sharedLock.RLock()
	defer d.sharedLock.RUnlock()
	d.shared.GetClient().CloseIdleConnections()
}
