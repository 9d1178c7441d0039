package cdp

import (
	"context"

	"github.com/chromedp/cdproto/browser"
	protocdp "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// browserAPI is the slice of the DevTools protocol the host needs.
type browserAPI interface {
	own(id target.ID) bool
	targets(ctx context.Context) ([]*target.Info, error)
	window(ctx context.Context, id target.ID) (int64, error)
	activate(ctx context.Context, id target.ID) error
	close(ctx context.Context, id target.ID) error
}

// remote issues browser-level commands on a chromedp connection.
type remote struct {
	browser *chromedp.Browser

	// self is the page chromedp attached to when connecting, hidden from
	// the tab list when it is a blank tab chromedp opened itself.
	self target.ID
}

func (r *remote) exec(ctx context.Context) context.Context {
	return protocdp.WithExecutor(ctx, r.browser)
}

func (r *remote) own(id target.ID) bool {
	return r.self != "" && id == r.self
}

func (r *remote) discover(ctx context.Context) error {
	return target.SetDiscoverTargets(true).Do(r.exec(ctx))
}

func (r *remote) targets(ctx context.Context) ([]*target.Info, error) {
	return target.GetTargets().Do(r.exec(ctx))
}

func (r *remote) window(ctx context.Context, id target.ID) (int64, error) {
	w, _, err := browser.GetWindowForTarget().WithTargetID(id).Do(r.exec(ctx))
	return int64(w), err
}

func (r *remote) activate(ctx context.Context, id target.ID) error {
	return target.ActivateTarget(id).Do(r.exec(ctx))
}

func (r *remote) close(ctx context.Context, id target.ID) error {
	return target.CloseTarget(id).Do(r.exec(ctx))
}
