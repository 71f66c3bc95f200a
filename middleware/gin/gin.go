// Package gin provides Gin framework middleware for TAP request
// verification.
//
// Usage:
//
//	r := gin.Default()
//	r.Use(tapgin.Verifier(tapgin.Config{Worker: w}))
package gin

import (
	"github.com/gin-gonic/gin"

	"github.com/peacprotocol/tap-go/tap"
	"github.com/peacprotocol/tap-go/worker"
)

// ControlEntryKey is the gin context key for the verified control entry.
const ControlEntryKey = "tap_control_entry"

// Config configures the TAP middleware for Gin.
type Config struct {
	// Worker runs the verification state machine. Required.
	Worker *worker.Worker

	// OnReject is called for challenge and error results. When nil, the
	// problem payload is written as application/problem+json.
	OnReject func(c *gin.Context, result worker.Result)
}

// Verifier creates the verification middleware. It panics when no worker is
// configured, matching gin's convention for construction-time misuse.
func Verifier(cfg Config) gin.HandlerFunc {
	if cfg.Worker == nil {
		panic("tapgin: worker must not be nil")
	}

	onReject := cfg.OnReject
	if onReject == nil {
		onReject = writeProblem
	}

	return func(c *gin.Context) {
		result := cfg.Worker.Handle(c.Request.Context(), messageFor(c))

		switch result.Action {
		case worker.ActionPass:
			c.Next()

		case worker.ActionForward:
			if result.Warning != "" {
				c.Header("Warning", result.Warning)
			}

			c.Set(ControlEntryKey, result.ControlEntry)
			c.Next()

		default:
			onReject(c, result)
			c.Abort()
		}
	}
}

// ControlEntry returns the control entry attached on the forward path.
func ControlEntry(c *gin.Context) (*tap.ControlEntry, bool) {
	value, ok := c.Get(ControlEntryKey)
	if !ok {
		return nil, false
	}

	entry, ok := value.(*tap.ControlEntry)

	return entry, ok
}

func messageFor(c *gin.Context) *tap.Message {
	r := c.Request
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

func writeProblem(c *gin.Context, result worker.Result) {
	c.Header("Content-Type", "application/problem+json")

	if result.Problem != nil {
		c.JSON(result.Status, result.Problem)
		return
	}

	c.Status(result.Status)
}
