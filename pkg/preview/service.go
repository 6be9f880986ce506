package preview

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/stampworks/previewd/pkg/errors"
)

// RenderBudget is the absolute wall-clock budget for one render, chosen to
// stay under the upstream load balancer's 60s idle timeout.
const RenderBudget = 55 * time.Second

// Cache status values reported to the HTTP layer.
const (
	StatusHit      = "hit"
	StatusRendered = "rendered"
	StatusFallback = "fallback"
)

// Fallback reasons.
const (
	ReasonFailed   = "render-failed-or-unsupported"
	ReasonMemoized = "failure-memoized"
	ReasonTimeout  = "timeout"
)

// Result is what the memoization layer hands the HTTP layer. Exactly one
// of PNG and RedirectURL is set on success; neither is set on fallback.
type Result struct {
	PNG         []byte
	RedirectURL string
	Metadata    map[string]string
	Status      string // StatusHit, StatusRendered, or StatusFallback
	Reason      string // set when Status is StatusFallback
}

// Fallback reports whether the caller should serve the fallback artifact.
func (r *Result) Fallback() bool { return r.Status == StatusFallback }

// PreviewRenderer produces a finished preview for an identifier. The
// orchestrator's Renderer is the production implementation.
type PreviewRenderer interface {
	Render(ctx context.Context, identifier string) (*Preview, error)
}

// Service wraps the Renderer with persistence and memoization: store
// lookup, single-flight de-duplication of concurrent renders for the same
// identifier, failure memoization, and the overall render budget.
type Service struct {
	Renderer PreviewRenderer
	Storage  Storage
	Logger   *log.Logger

	// Budget overrides RenderBudget when positive. Tests shrink it.
	Budget time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	group singleflight.Group
}

// NewService wires the memoization layer around a renderer.
func NewService(r PreviewRenderer, storage Storage, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		Renderer: r,
		Storage:  storage,
		Logger:   logger,
	}
}

// Preview returns the cached or freshly rendered preview for identifier.
//
// With refresh set, any existing entry (success or failure marker) is
// invalidated first and a new render always runs. Failures never
// propagate: the result carries a fallback status instead, and the
// failure is memoized for FailureWindow so repeated requests short-circuit
// without re-attempting expensive work. Budget timeouts and cancelled
// renders are not memoized; a later request is allowed to re-render
// rather than being forced to wait out a marker's window.
func (s *Service) Preview(ctx context.Context, identifier string, refresh bool) (*Result, error) {
	logger := s.Logger.With("identifier", identifier)

	if refresh {
		if err := s.Storage.Invalidate(ctx, identifier); err != nil {
			logger.Warn("invalidate failed", "err", err)
		}
		// A forced refresh must not piggyback on an in-flight render that
		// started before the invalidation.
		s.group.Forget(identifier)
	} else {
		stored, err := s.Storage.Get(ctx, identifier)
		if err != nil {
			logger.Warn("cache read failed", "err", err)
		}
		if stored != nil {
			if stored.IsFailure() {
				if s.now().Sub(stored.FailedAt) < FailureWindow {
					logger.Debug("failure marker fresh, serving fallback")
					return &Result{Status: StatusFallback, Reason: ReasonMemoized}, nil
				}
				// Expired marker: treated as absent, one fresh attempt.
			} else {
				logger.Debug("cache hit")
				return &Result{
					PNG:         stored.PNG,
					RedirectURL: stored.RedirectURL,
					Metadata:    stored.Metadata,
					Status:      StatusHit,
				}, nil
			}
		}
	}

	return s.renderAndStore(ctx, identifier, logger)
}

// renderAndStore runs one budgeted render through the single-flight group.
// On budget expiry the in-flight render is abandoned (raced against the
// context, not forcibly killed) and the fallback is returned immediately.
//
// The flight carries its own budget timer detached from the calling
// request: late joiners share the render, so it must not die with the
// first caller's context (disconnect or budget expiry).
func (s *Service) renderAndStore(ctx context.Context, identifier string, logger *log.Logger) (*Result, error) {
	budget := s.Budget
	if budget <= 0 {
		budget = RenderBudget
	}
	waitCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ch := s.group.DoChan(identifier, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
		defer cancel()

		start := time.Now()
		p, err := s.Renderer.Render(flightCtx, identifier)
		if err != nil {
			return nil, err
		}
		logger.Info("rendered preview",
			"method", p.Metadata["conversion-method"],
			"duration", time.Since(start).Round(time.Millisecond))
		return p, nil
	})

	select {
	case <-waitCtx.Done():
		logger.Warn("render budget exhausted, serving fallback")
		return &Result{Status: StatusFallback, Reason: ReasonTimeout}, nil

	case res := <-ch:
		if res.Err != nil {
			// Budget expiry and cancellation are not memoized; only
			// genuine content failures earn a marker. A later request is
			// allowed to re-render rather than wait out a marker window.
			if isTimeout(res.Err) {
				logger.Warn("render timed out, serving fallback")
				return &Result{Status: StatusFallback, Reason: ReasonTimeout}, nil
			}
			return s.recordFailure(ctx, identifier, res.Err, logger)
		}
		p := res.Val.(*Preview)
		stored, err := s.Storage.Put(ctx, identifier, p)
		if err != nil {
			// The render succeeded; serve it even if persistence failed.
			logger.Error("persist preview failed", "err", err)
			return &Result{PNG: p.PNG, Metadata: p.Metadata, Status: StatusRendered}, nil
		}
		return &Result{
			PNG:         stored.PNG,
			RedirectURL: stored.RedirectURL,
			Metadata:    stored.Metadata,
			Status:      StatusRendered,
		}, nil
	}
}

func (s *Service) recordFailure(ctx context.Context, identifier string, renderErr error, logger *log.Logger) (*Result, error) {
	logger.Warn("render failed", "code", errors.GetCode(renderErr), "err", renderErr)

	if err := s.Storage.MarkFailure(ctx, identifier, s.now()); err != nil {
		logger.Warn("persist failure marker failed", "err", err)
	}
	return &Result{Status: StatusFallback, Reason: ReasonFailed}, nil
}

// isTimeout reports whether err represents an exhausted budget or a
// cancelled render rather than a content failure.
func isTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, context.Canceled) ||
		errors.Is(err, errors.ErrCodeTimeout)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
