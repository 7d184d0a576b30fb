package portal

import (
	"context"

	"github.com/b0bbywan/go-odio-portal/events"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// Screenshot takes screenshots and picks colors through the broker.
type Screenshot struct {
	capability
	defaults ScreenshotOptions

	shot requestGuard
	pick requestGuard
}

func newScreenshot(base capability, defaults ScreenshotOptions) *Screenshot {
	return &Screenshot{capability: base, defaults: defaults}
}

func (s *Screenshot) State() State {
	if s.shot.State() == StateRequesting || s.pick.State() == StateRequesting {
		return StateRequesting
	}
	return StateIdle
}

// withDefaults fills unset fields from d.
func (o ScreenshotOptions) withDefaults(d ScreenshotOptions) ScreenshotOptions {
	if o.Interactive == nil {
		o.Interactive = d.Interactive
	}
	if o.Modal == nil {
		o.Modal = d.Modal
	}
	return o
}

// Take asks the broker for a screenshot and returns its uri.
func (s *Screenshot) Take(ctx context.Context, window WindowIdentifier, opts ScreenshotOptions) (ScreenshotResult, error) {
	if err := s.shot.begin(); err != nil {
		return ScreenshotResult{}, err
	}
	defer s.shot.end()

	req, err := s.proxy.Screenshot(ctx, window, opts.withDefaults(s.defaults))
	if err != nil {
		return ScreenshotResult{}, err
	}
	outcome, err := s.await(ctx, req)
	if err := s.settle(CapabilityScreenshot, outcome, err); err != nil {
		return ScreenshotResult{}, err
	}
	res, err := DecodeScreenshot(outcome.Results)
	if err != nil {
		return ScreenshotResult{}, s.decodeFailed(CapabilityScreenshot, outcome, err)
	}

	logger.Info("[screenshot] saved to %s", res.URI)
	s.emit(events.Event{Type: events.TypeScreenshotTaken, Data: res})
	return res, nil
}

// PickColor lets the user pick a pixel and returns its color.
func (s *Screenshot) PickColor(ctx context.Context, window WindowIdentifier) (Color, error) {
	if err := s.pick.begin(); err != nil {
		return Color{}, err
	}
	defer s.pick.end()

	req, err := s.proxy.PickColor(ctx, window)
	if err != nil {
		return Color{}, err
	}
	outcome, err := s.await(ctx, req)
	if err := s.settle(CapabilityScreenshot, outcome, err); err != nil {
		return Color{}, err
	}
	color, err := DecodeColor(outcome.Results)
	if err != nil {
		return Color{}, s.decodeFailed(CapabilityScreenshot, outcome, err)
	}

	logger.Info("[screenshot] picked color %.3f,%.3f,%.3f", color.Red, color.Green, color.Blue)
	s.emit(events.Event{Type: events.TypeColorPicked, Data: color})
	return color, nil
}
