// client.go contains the construction of http sessions against the upstream site.

package download

import (
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"chattysync/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type ClientOptions struct {
	BaseUrl string
	// UserAgent is sent on every request.
	UserAgent string
	Timeout   time.Duration
	// CloudflareBypass wraps the transport with browser-like tls settings and headers.
	CloudflareBypass bool
	// Output receives a dump of every http message, it may be nil.
	Output telemetry.MessageOutput
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.UserAgent == "" {
		o.UserAgent = "chattysync"
	}
	if o.Timeout == 0 {
		o.Timeout = time.Second * 30
	}
	return o
}

func newClient(opts ClientOptions, limiter *rate.Limiter, tel telemetry.API) (*resty.Client, error) {
	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetHeader("x-requested-with", "libcurl")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	// the limiter is shared by every session so the upstream sees one
	// request budget no matter how many sessions exist
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	return httpClient, nil
}

func checkResponse(res *resty.Response) error {
	if res.IsError() {
		return fmt.Errorf("%s %s: status %d", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return nil
}
