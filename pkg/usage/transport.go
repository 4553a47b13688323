package usage

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// Transport is an http.RoundTripper for clients of a metered service. It
// counts every request that received a response against Service, using the
// request path as the endpoint.
//
// Recording runs on a detached goroutine with its own timeout, so a slow or
// unavailable store never delays the response.
//
//	client := &http.Client{
//	    Transport: usage.NewTransport(nil, recorder, "geocoding", 0),
//	}
type Transport struct {
	Base     http.RoundTripper
	Recorder *Recorder
	Service  string
	Timeout  time.Duration

	pending sync.WaitGroup
}

// NewTransport wraps base (http.DefaultTransport when nil). A zero timeout
// uses the configured default.
func NewTransport(base http.RoundTripper, recorder *Recorder, service string, timeout time.Duration) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = config.DefaultUsageTransportRecordTimeout
	}
	return &Transport{
		Base:     base,
		Recorder: recorder,
		Service:  service,
		Timeout:  timeout,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	tracing.Inject(req.Context(), out.Header)

	resp, err := t.Base.RoundTrip(out)
	if err != nil {
		return resp, err
	}

	endpoint := req.URL.Path
	ctx := context.WithoutCancel(req.Context())
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, t.Timeout)
		defer cancel()
		if err := t.Recorder.RecordUsage(ctx, t.Service, endpoint); err != nil {
			t.Recorder.logger.Debug("usage not recorded",
				"service", t.Service,
				"endpoint", endpoint,
				"error", err)
		}
	}()

	return resp, nil
}

// Wait blocks until every detached recording has finished.
func (t *Transport) Wait() {
	t.pending.Wait()
}
