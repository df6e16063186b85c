package exchange

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// metricsTransport wraps an http.RoundTripper to collect metrics on calls
// made during code exchange
type metricsTransport struct {
	base   http.RoundTripper
	target string
}

// newMetricsTransport labels every call with target ("backend" or "provider")
func newMetricsTransport(base http.RoundTripper, target string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{base: base, target: target}
}

// RoundTrip implements http.RoundTripper, wrapping the base transport with metrics collection
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	route := normalizeRoute(req.URL.Path)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	metrics.OutboundCalls.WithLabelValues(t.target, req.Method, route, strconv.Itoa(statusCode)).Inc()
	metrics.OutboundDuration.WithLabelValues(t.target, req.Method, route).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		metrics.OutboundErrors.WithLabelValues(t.target, route, classifyError(statusCode, err)).Inc()
	}

	return resp, err
}

var idSegment = regexp.MustCompile(`/(\d+|[0-9a-fA-F-]{32,})(/|$)`)

// normalizeRoute replaces numeric and long hex path segments with :id so
// metric cardinality stays bounded
func normalizeRoute(path string) string {
	if path == "" {
		return "/"
	}
	// applied twice because adjacent matches share a slash
	normalized := idSegment.ReplaceAllString(path, "/:id$2")
	return idSegment.ReplaceAllString(normalized, "/:id$2")
}

// classifyError categorizes outbound errors for metrics
func classifyError(statusCode int, err error) string {
	if err != nil {
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
			return "timeout"
		case strings.Contains(errStr, "connection"):
			return "connection"
		case strings.Contains(errStr, "TLS") || strings.Contains(errStr, "tls"):
			return "tls"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
