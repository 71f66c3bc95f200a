// Package worker implements the TAP verification orchestrator: the
// request-handling state machine that turns one inbound request into a
// runtime-neutral Result. States run in a fixed order and are terminal on
// first exit: bypass check, configuration validation, signature mapping,
// replay check, issuer allowlist check, forward.
//
// The worker is deployment-agnostic: adapters (see the middleware package)
// build a tap.Message from their runtime's request type and translate the
// Result back. The only suspension points are the key resolver and the
// replay store, both injected; callers own timeout policy around them.
package worker

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peacprotocol/tap-go/replay"
	"github.com/peacprotocol/tap-go/tap"
)

// Worker verifies inbound requests against the TAP profile.
type Worker struct {
	cfg      Config
	resolver tap.KeyResolver
	store    replay.Store
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithReplayStore installs a replay protection backend. Without one,
// nonce-carrying signatures are rejected unless the unsafe no-replay
// override is set.
func WithReplayStore(store replay.Store) Option {
	return func(w *Worker) { w.store = store }
}

// WithLogger installs a structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) { w.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// New creates a Worker. The resolver is required for any non-bypassed
// request to succeed.
func New(cfg Config, resolver tap.KeyResolver, opts ...Option) *Worker {
	w := &Worker{
		cfg:      cfg,
		resolver: resolver,
		log:      zap.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Handle runs the verification state machine for one request. It never
// panics on malformed input; every outcome is a Result.
func (w *Worker) Handle(ctx context.Context, m *tap.Message) Result {
	requestID := uuid.NewString()
	log := w.log.With(zap.String("request_id", requestID))

	instance := ""
	if m.URL != nil {
		instance = m.URL.String()
	}

	// Bypass runs before config validation so that bypassed paths never
	// 500 on a misconfigured deployment.
	if w.bypassed(m) {
		log.Debug("bypass path matched", zap.String("path", pathFor(m)))
		return Result{Action: ActionPass, RequestID: requestID}
	}

	if len(w.cfg.IssuerAllowlist) == 0 && !w.cfg.UnsafeAllowAnyIssuer {
		log.Error("issuer allowlist empty without override")
		return w.reject(requestID, tap.CodeConfigAllowlistRequired,
			"issuer_allowlist must be configured unless unsafe_allow_any_issuer is set", instance)
	}

	result := tap.MapSignature(ctx, m, tap.MapOptions{
		Resolver:         w.resolver,
		Now:              w.now,
		AllowUnknownTags: w.cfg.UnsafeAllowUnknownTags,
	})

	if !result.IsTAP {
		switch w.cfg.mode() {
		case ModeReceiptOrTAP:
			log.Debug("no signature headers, challenging for receipt")
			return Result{
				Action:    ActionChallenge,
				Status:    tap.CodeReceiptMissing.HTTPStatus(),
				Code:      tap.CodeReceiptMissing,
				Problem:   NewProblem(tap.CodeReceiptMissing, "no TAP signature or payment receipt presented", instance),
				RequestID: requestID,
			}
		default:
			return w.reject(requestID, tap.CodeSignatureMissing, "signature headers not present", instance)
		}
	}

	if !result.Valid {
		log.Info("signature rejected",
			zap.String("code", string(result.Code)),
			zap.String("reason", result.Message))
		return w.reject(requestID, result.Code, result.Message, instance)
	}

	entry := result.ControlEntry
	warning := ""

	if entry.Evidence.Nonce != "" && entry.Evidence.KeyID != "" {
		replayed, warn, rerr := w.checkReplay(ctx, entry)
		if rerr != nil {
			log.Error("replay store failure", zap.Error(rerr))
			return w.reject(requestID, tap.CodeInternal, "replay check failed", instance)
		}

		if replayed != "" {
			return w.reject(requestID, replayed, "nonce already used or replay protection unavailable", instance)
		}

		warning = warn
	}

	if !w.cfg.UnsafeAllowAnyIssuer {
		if _, ok := w.cfg.allowedOrigins()[entry.Evidence.Issuer]; !ok {
			log.Info("issuer not in allowlist", zap.String("issuer", entry.Evidence.Issuer))
			return w.reject(requestID, tap.CodeIssuerNotAllowed,
				"issuer "+entry.Evidence.Issuer+" is not in the allowlist", instance)
		}
	}

	log.Debug("request verified",
		zap.String("issuer", entry.Evidence.Issuer),
		zap.String("keyid", entry.Evidence.KeyID),
		zap.String("tag", entry.Evidence.Tag))

	return Result{
		Action:       ActionForward,
		ControlEntry: entry,
		Warning:      warning,
		RequestID:    requestID,
	}
}

// checkReplay runs the replay state. It returns a non-empty code when the
// request must be rejected, a warning when an unsafe override let it
// through, or an error when the store itself failed.
func (w *Worker) checkReplay(ctx context.Context, entry *tap.ControlEntry) (tap.Code, string, error) {
	if w.store == nil {
		if w.cfg.UnsafeNoReplayProtection {
			return "", `299 - "replay protection disabled by configuration"`, nil
		}

		return tap.CodeReplayProtectionRequired, "", nil
	}

	ttl := entry.Evidence.Expires.Sub(w.now())
	if ttl <= 0 || ttl > tap.MaxWindow {
		ttl = tap.MaxWindow
	}

	seen, err := w.store.Seen(ctx, replay.Context{
		Issuer: entry.Evidence.Issuer,
		KeyID:  entry.Evidence.KeyID,
		Nonce:  entry.Evidence.Nonce,
		TTL:    ttl,
	})
	if err != nil {
		return "", "", err
	}

	if seen {
		return tap.CodeNonceReplay, "", nil
	}

	return "", "", nil
}

func (w *Worker) reject(requestID string, code tap.Code, detail, instance string) Result {
	code = code.Normalize()

	return Result{
		Action:    ActionError,
		Status:    code.HTTPStatus(),
		Code:      code,
		Problem:   NewProblem(code, detail, instance),
		RequestID: requestID,
	}
}

// bypassed reports whether the request path matches a configured bypass
// pattern. Patterns use path.Match syntax; a trailing "/**" matches the
// whole subtree.
func (w *Worker) bypassed(m *tap.Message) bool {
	p := pathFor(m)

	for _, pattern := range w.cfg.BypassPaths {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}

			continue
		}

		if matched, err := path.Match(pattern, p); err == nil && matched {
			return true
		}
	}

	return false
}

func pathFor(m *tap.Message) string {
	if m.URL == nil || m.URL.Path == "" {
		return "/"
	}

	return m.URL.Path
}
