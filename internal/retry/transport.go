package retry

import (
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
}

// NewClient returns an HTTP client whose requests are retried by on with
// strategy. timeout bounds the whole exchange including retries.
func NewClient(timeout time.Duration, strategy Strategy, on *On) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: strategy,
			RetryOn:       on,
		},
	}
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()

	for retryCount := uint(0); ; retryCount++ {
		attempt := request
		if retryCount > 0 {
			var err error
			if attempt, err = rewind(request); err != nil {
				return nil, err
			}
		}

		response, err := t.base().RoundTrip(attempt)
		if !t.shouldRetry(response, err) {
			return response, err
		}

		sleep, exceeded := t.retryStrategy().Sleep(retryCount)
		if exceeded {
			return response, err
		}
		if response != nil {
			_, _ = io.Copy(io.Discard, response.Body)
			_ = response.Body.Close()
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) shouldRetry(response *http.Response, err error) bool {
	if t.RetryOn == nil {
		return false
	}
	if err != nil {
		return t.RetryOn.CheckError(err)
	}
	return t.RetryOn.CheckResponse(response)
}

// rewind clones request with a fresh body for another attempt.
func rewind(request *http.Request) (*http.Request, error) {
	clone := request.Clone(request.Context())
	if request.Body == nil || request.Body == http.NoBody {
		return clone, nil
	}
	if request.GetBody == nil {
		return nil, xerrors.Errorf("cannot retry %s %s: request body is not replayable", request.Method, request.URL)
	}
	body, err := request.GetBody()
	if err != nil {
		return nil, xerrors.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}
