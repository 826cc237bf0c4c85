// internal/api/transport.go
package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// loggingTransport logs each outgoing request with its method, path,
// status, and duration using Logrus.
type loggingTransport struct {
	logger *logrus.Logger
	next   http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	fields := logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"duration": time.Since(start),
	}
	if err != nil {
		fields["error"] = err
		t.logger.WithFields(fields).Warn("HTTP Request failed")
		return nil, err
	}
	fields["status"] = resp.StatusCode
	t.logger.WithFields(fields).Debug("HTTP Request")
	return resp, nil
}

// newHTTPClient builds the client used for all command calls.
func newHTTPClient(logger *logrus.Logger) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &loggingTransport{
			logger: logger,
			next:   http.DefaultTransport,
		},
	}
}
