// Package middleware adapts the TAP verification worker to net/http. A gin
// adapter lives in the gin subpackage; other runtimes implement the same
// pattern against worker.Result.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/peacprotocol/tap-go/tap"
	"github.com/peacprotocol/tap-go/worker"
)

type contextKey string

// controlEntryKey is the context key under which the control entry is
// stored on the forward path.
const controlEntryKey contextKey = "tap_control_entry"

// ErrNoWorker is returned when Config has no Worker configured.
var ErrNoWorker = errors.New("middleware: worker must not be nil")

// Config configures the verification middleware.
type Config struct {
	// Worker runs the verification state machine. Required.
	Worker *worker.Worker

	// OnReject is called for challenge and error results. When nil, the
	// problem payload is written as application/problem+json.
	OnReject func(w http.ResponseWriter, r *http.Request, result worker.Result)
}

// Handler wraps next with TAP verification. Bypassed and verified requests
// reach next; verified ones carry the control entry in the request context.
func Handler(cfg Config) (func(http.Handler) http.Handler, error) {
	if cfg.Worker == nil {
		return nil, ErrNoWorker
	}

	onReject := cfg.OnReject
	if onReject == nil {
		onReject = writeProblem
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := cfg.Worker.Handle(r.Context(), messageFor(r))

			switch result.Action {
			case worker.ActionPass:
				next.ServeHTTP(w, r)

			case worker.ActionForward:
				if result.Warning != "" {
					w.Header().Set("Warning", result.Warning)
				}

				ctx := context.WithValue(r.Context(), controlEntryKey, result.ControlEntry)
				next.ServeHTTP(w, r.WithContext(ctx))

			default:
				onReject(w, r, result)
			}
		})
	}, nil
}

// ControlEntry returns the control entry attached by the middleware on the
// forward path, if any.
func ControlEntry(ctx context.Context) (*tap.ControlEntry, bool) {
	entry, ok := ctx.Value(controlEntryKey).(*tap.ControlEntry)
	return entry, ok
}

// messageFor builds the runtime-neutral message for an inbound server
// request. Server-side request URLs carry no scheme or host; both are
// recovered from the connection and the Host header.
func messageFor(r *http.Request) *tap.Message {
	m := tap.FromHTTPRequest(r)

	if m.URL != nil && m.URL.Scheme == "" {
		u := *m.URL
		if r.TLS != nil {
			u.Scheme = "https"
		} else {
			u.Scheme = "http"
		}

		u.Host = r.Host
		m.URL = &u
	}

	return m
}

// writeProblem writes the result's problem payload per RFC 9457.
func writeProblem(w http.ResponseWriter, _ *http.Request, result worker.Result) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(result.Status)

	if result.Problem != nil {
		_ = json.NewEncoder(w).Encode(result.Problem)
	}
}
