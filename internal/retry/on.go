package retry

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/xerrors"
)

type condition uint8

const (
	on5xx condition = 1 << iota
	onGatewayError
	onConnectFailure
	onRetriable4xx
	onThrottled
)

// On decides which responses and transport errors are worth another attempt.
// Conditions follow envoy's retry_on names plus "throttled" for 429.
type On struct {
	conditions  condition
	statusCodes []int
}

// NewDefaultRetryOn suits object storage: gateways, throttling and dropped
// connections are retried, plain 5xx are not.
func NewDefaultRetryOn() *On {
	return &On{
		conditions: onGatewayError | onConnectFailure | onRetriable4xx | onThrottled,
	}
}

func NewRetryOnFromString(s string) (*On, error) {
	o := &On{}
	for _, s := range strings.Split(s, ",") {
		switch s = strings.TrimSpace(s); s {
		case "":
		case "5xx":
			o.conditions |= on5xx
		case "gateway-error":
			o.conditions |= onGatewayError
		case "connect-failure":
			o.conditions |= onConnectFailure
		case "retriable-4xx":
			o.conditions |= onRetriable4xx
		case "throttled":
			o.conditions |= onThrottled
		default:
			statusCode, err := strconv.Atoi(s)
			if err != nil {
				return nil, xerrors.Errorf("invalid retryOn: %s", s)
			}
			o.statusCodes = append(o.statusCodes, statusCode)
		}
	}
	return o, nil
}

func (o *On) has(c condition) bool {
	return o.conditions&c != 0
}

// https://github.com/envoyproxy/envoy/blob/70d6ec1df6384118cf2fa2f02c0041edb76b2377/source/common/router/retry_state_impl.cc#L387
func (o *On) CheckResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case o.has(on5xx) && code >= 500 && code < 600:
		return true
	case o.has(onGatewayError) && code >= 502 && code < 505:
		return true
	case o.has(onRetriable4xx) && code == http.StatusConflict:
		return true
	case o.has(onThrottled) && code == http.StatusTooManyRequests:
		return true
	}

	return slices.Contains(o.statusCodes, code)
}

func (o *On) CheckError(err error) bool {
	if !o.has(onConnectFailure) && !o.has(on5xx) {
		return false
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	return (errors.As(err, &terr) && terr.Temporary()) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
