package router

import (
	"context"
	"net/url"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/urlparam"
)

// navigation is one attempt to reach a location. Every navigation gets a
// fresh token; only the navigation holding the latest token may publish.
type navigation struct {
	token       uint64
	location    Location
	replace     bool
	fromHistory bool
	reload      bool
	redirects   int
	started     time.Time

	ctx    context.Context
	cancel context.CancelFunc

	once    sync.Once
	done    chan struct{}
	outcome Outcome
	err     error
	next    *navigation
}

// settle records the outcome once and cancels the navigation's loaders.
// Waiters are released separately by closing done.
func (n *navigation) settle(outcome Outcome, err error, next *navigation) bool {
	settled := false
	n.once.Do(func() {
		n.outcome, n.err, n.next = outcome, err, next
		n.cancel()
		settled = true
	})
	return settled
}

// coalesces reports whether req targets the location n is heading to with
// the same history action. Reloads and requests carrying state always start
// a navigation of their own.
func (n *navigation) coalesces(req navRequest) bool {
	return !req.reload && !n.reload &&
		req.replace == n.replace &&
		req.fromHistory == n.fromHistory &&
		req.location.State == nil && n.location.State == nil &&
		req.location.key() == n.location.key()
}

type navRequest struct {
	location     Location
	replace      bool
	fromHistory  bool
	reload       bool
	redirectFrom *navigation
}

// start allocates a token for req and runs it in the background. A
// request that would write the same history entry as the pending
// navigation joins that navigation instead.
func (r *Router) start(req navRequest) (*navigation, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	prev := r.pending
	if req.redirectFrom != nil && prev != req.redirectFrom {
		r.mu.Unlock()
		return nil, ErrSuperseded
	}
	if prev != nil && req.redirectFrom == nil && prev.coalesces(req) {
		r.mu.Unlock()
		r.logger.Debug("navigation coalesced", "token", prev.token, "href", prev.location.Href)
		return prev, nil
	}

	r.token++
	nav := &navigation{
		token:       r.token,
		location:    req.location,
		replace:     req.replace,
		fromHistory: req.fromHistory,
		reload:      req.reload,
		started:     time.Now(),
		done:        make(chan struct{}),
	}
	if req.redirectFrom != nil {
		nav.redirects = req.redirectFrom.redirects + 1
	}
	nav.ctx, nav.cancel = context.WithCancel(context.Background())
	r.pending = nav
	r.phase = PhasePlanning
	r.mu.Unlock()

	if prev != nil {
		if prev == req.redirectFrom {
			r.finish(prev, OutcomeRedirected, nil, nav)
		} else {
			r.finish(prev, OutcomeSuperseded, ErrSuperseded, nil)
		}
	}

	r.logger.Debug("navigation started", "token", nav.token, "href", nav.location.Href, "redirects", nav.redirects)
	ev := r.event(nav)
	for _, o := range r.observers {
		o.NavigationStarted(ev)
	}

	go r.run(nav)
	return nav, nil
}

// wait blocks until nav, or the end of the redirect chain it starts,
// finishes.
func (r *Router) wait(ctx context.Context, nav *navigation) error {
	for {
		select {
		case <-nav.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if nav.outcome == OutcomeRedirected && nav.next != nil {
			nav = nav.next
			continue
		}
		return nav.err
	}
}

// finish ends nav, notifies observers and then releases its waiters.
func (r *Router) finish(nav *navigation, outcome Outcome, err error, next *navigation) {
	if !nav.settle(outcome, err, next) {
		return
	}
	ev := r.event(nav)
	ev.Outcome = outcome
	ev.Err = err
	ev.Duration = time.Since(nav.started)

	if outcome == OutcomeFailed {
		r.logger.Warn("navigation failed", "token", nav.token, "href", nav.location.Href, "error", err)
	} else {
		r.logger.Debug("navigation finished", "token", nav.token, "href", nav.location.Href,
			"outcome", outcome.String(), "duration", ev.Duration)
	}
	for _, o := range r.observers {
		o.NavigationFinished(ev)
	}
	close(nav.done)
}

func (r *Router) event(nav *navigation) NavigationEvent {
	return NavigationEvent{
		Token:     nav.token,
		Location:  nav.location,
		Redirects: nav.redirects,
		Started:   nav.started,
	}
}

func (r *Router) isCurrent(nav *navigation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending == nav
}

func (r *Router) setPhase(nav *navigation, phase Phase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nav {
		return false
	}
	r.phase = phase
	return true
}

// run drives nav through planning, loading and committing. It returns
// early as soon as nav stops being the latest navigation.
func (r *Router) run(nav *navigation) {
	p, redirect := r.plan(nav, r.store.Get())
	if nav.ctx.Err() != nil {
		return
	}
	if redirect != nil {
		r.followRedirect(nav, redirect)
		return
	}

	if !r.setPhase(nav, PhaseLoading) {
		return
	}
	r.publishPending(nav, p)

	if redirect := r.load(nav, p); redirect != nil {
		r.followRedirect(nav, redirect)
		return
	}
	if nav.ctx.Err() != nil {
		return
	}

	if !r.setPhase(nav, PhaseCommitting) {
		return
	}
	r.commit(nav, p)
}

// plan holds the matches of one navigation while it loads.
type plan struct {
	mu   sync.Mutex
	runs []*matchRun
}

// matchRun is the mutable record behind a Match during loading.
type matchRun struct {
	id       string
	route    *Route
	pathname string
	params   map[string]string
	search   url.Values
	depsKey  string
	context  map[string]any
	cause    LoadCause
	notFound error

	deferred *Deferred
	promise  *Promise
	invoked  chan struct{}

	// guarded by plan.mu
	status    MatchStatus
	data      any
	err       error
	updatedAt time.Time
	reused    *Match
	snap      *Match
}

// pendingRedirect is a redirect raised by the match at pathname.
type pendingRedirect struct {
	err      *RedirectError
	pathname string
	params   map[string]string
}

// plan matches the location and prepares one run per match. Results that
// are still valid are carried over from the committed state.
func (r *Router) plan(nav *navigation, committed State) (*plan, *pendingRedirect) {
	routeMatches, matchErr := r.tree.Match(nav.location.Pathname)
	if len(routeMatches) == 0 {
		routeMatches = []RouteMatch{{Route: r.tree.root, Params: map[string]string{}, Pathname: "/"}}
	}

	previous := make(map[string]*Match, len(committed.Matches))
	entered := make(map[string]bool, len(committed.Matches))
	for _, m := range committed.Matches {
		previous[m.ID] = m
		entered[m.RouteID] = true
	}

	p := &plan{runs: make([]*matchRun, 0, len(routeMatches))}
	search := nav.location.SearchParams
	parentCtx := r.rootContext
	now := time.Now()

	for i, rm := range routeMatches {
		route := rm.Route
		run := &matchRun{
			id:        route.id + "@" + rm.Pathname,
			route:     route,
			pathname:  rm.Pathname,
			params:    cloneParams(rm.Params),
			search:    search,
			depsKey:   nav.location.Search,
			invoked:   make(chan struct{}),
			updatedAt: now,
		}
		if route.opts.LoaderDeps != nil {
			run.depsKey = route.opts.LoaderDeps(search)
		}
		switch {
		case nav.reload:
			run.cause = CauseReload
		case entered[route.id]:
			run.cause = CauseStay
		default:
			run.cause = CauseEnter
		}
		if i == len(routeMatches)-1 && matchErr != nil {
			run.notFound = matchErr
		}

		var err error
		if route.opts.ValidateSearch != nil {
			if verr := route.opts.ValidateSearch(search); verr != nil {
				err = errors.New(errors.EInvalidSearch).WithRoute(route.id).Wrap(verr)
			}
		}

		run.context = parentCtx
		if err == nil && route.opts.Context != nil {
			values, cerr := callContext(nav.ctx, route, ContextOptions{
				Params:   run.params,
				Search:   search,
				Location: nav.location,
				Context:  parentCtx,
			})
			if re, ok := AsRedirect(cerr); ok {
				return p, &pendingRedirect{err: re, pathname: run.pathname, params: run.params}
			}
			if cerr != nil {
				err = errors.FromError(cerr, errors.ELoaderError).WithRoute(route.id)
			} else {
				run.context = mergeContext(parentCtx, values)
			}
		}
		parentCtx = run.context

		prev := previous[run.id]
		switch {
		case err != nil:
			run.status = MatchError
			run.err = err
			run.promise = Rejected(err)
			close(run.invoked)

		case prev != nil && r.canCarry(nav, prev, run):
			run.status = MatchSuccess
			run.data = prev.Data
			run.updatedAt = prev.UpdatedAt
			run.promise = prev.LoaderPromise
			if run.promise == nil {
				run.promise = Resolved(prev.Data)
			}
			if run.notFound == nil && prev.NotFound == nil &&
				urlparam.Equal(prev.Search, search) && reflect.DeepEqual(prev.Context, run.context) {
				run.reused = prev
			}
			close(run.invoked)

		case !route.HasLoader():
			run.status = MatchSuccess
			run.promise = Resolved(nil)
			close(run.invoked)

		default:
			run.status = MatchPending
			run.deferred = NewDeferred()
			run.promise = run.deferred.Promise
		}

		p.runs = append(p.runs, run)
	}
	return p, nil
}

// canCarry reports whether prev's loader result is still valid for run.
func (r *Router) canCarry(nav *navigation, prev *Match, run *matchRun) bool {
	return !nav.reload &&
		prev.Status == MatchSuccess &&
		prev.RouteID == run.route.id &&
		prev.depsKey == run.depsKey &&
		paramsEqual(prev.Params, run.params)
}

// load runs every pending loader. A child loader is never invoked before
// its parent's; otherwise loaders run concurrently. load returns when all
// loaders settled, when a loader redirects, or when nav is cancelled.
func (r *Router) load(nav *navigation, p *plan) *pendingRedirect {
	type settled struct {
		run *matchRun
		err error
	}

	g := new(errgroup.Group)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	results := make(chan settled, len(p.runs))

	for i, run := range p.runs {
		if run.status != MatchPending {
			continue
		}
		if nav.ctx.Err() != nil {
			break
		}

		var parentInvoked <-chan struct{}
		var parentPromise *Promise
		if i > 0 {
			parentInvoked = p.runs[i-1].invoked
			parentPromise = p.runs[i-1].promise
		}

		run := run
		lc := LoaderContext{
			RouteID:            run.route.id,
			Params:             run.params,
			Search:             run.search,
			ParentMatchPromise: parentPromise,
			Context:            run.context,
			Location:           nav.location,
			Cause:              run.cause,
		}
		info := LoaderInfo{RouteID: run.route.id, Pathname: run.pathname, Params: run.params, Token: nav.token, Cause: run.cause}

		g.Go(func() error {
			if parentInvoked != nil {
				select {
				case <-parentInvoked:
				case <-nav.ctx.Done():
					close(run.invoked)
					p.settle(run, nil, nav.ctx.Err())
					results <- settled{run: run, err: nav.ctx.Err()}
					return nil
				}
			}
			close(run.invoked)
			data, err := callLoader(nav.ctx, run.route, lc, info, r.middleware)
			p.settle(run, data, err)
			results <- settled{run: run, err: err}
			return nil
		})
	}

	all := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(all)
	}()

	handle := func(s settled) *pendingRedirect {
		if re, ok := AsRedirect(s.err); ok && nav.ctx.Err() == nil {
			return &pendingRedirect{err: re, pathname: s.run.pathname, params: s.run.params}
		}
		return nil
	}

	for {
		select {
		case s := <-results:
			if pr := handle(s); pr != nil {
				return pr
			}
			if nav.ctx.Err() == nil {
				r.publishPending(nav, p)
			}
		case <-all:
			for {
				select {
				case s := <-results:
					if pr := handle(s); pr != nil {
						return pr
					}
				default:
					return nil
				}
			}
		case <-nav.ctx.Done():
			return nil
		}
	}
}

// settle records a loader result and settles the match's promise.
func (p *plan) settle(run *matchRun, data any, err error) {
	p.mu.Lock()
	if err != nil {
		run.status = MatchError
		run.err = err
		run.data = nil
	} else {
		run.status = MatchSuccess
		run.data = data
	}
	run.updatedAt = time.Now()
	run.snap = nil
	p.mu.Unlock()

	if err != nil {
		run.deferred.Reject(err)
	} else {
		run.deferred.Resolve(data)
	}
}

// snapshot builds the immutable matches for the current progress.
// Unchanged runs keep returning the same *Match.
func (p *plan) snapshot() []*Match {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Match, len(p.runs))
	for i, run := range p.runs {
		if run.reused != nil {
			out[i] = run.reused
			continue
		}
		if run.snap == nil {
			run.snap = &Match{
				ID:            run.id,
				RouteID:       run.route.id,
				Pathname:      run.pathname,
				Params:        run.params,
				Search:        run.search,
				Status:        run.status,
				Data:          run.data,
				Error:         run.err,
				NotFound:      run.notFound,
				Context:       run.context,
				LoaderPromise: run.promise,
				UpdatedAt:     run.updatedAt,
				route:         run.route,
				depsKey:       run.depsKey,
			}
		}
		out[i] = run.snap
	}
	return out
}

// publishPending exposes nav's progress while leaving the committed
// matches untouched.
func (r *Router) publishPending(nav *navigation, p *plan) {
	matches := p.snapshot()
	loc := nav.location
	r.store.Update(func(s State) (State, bool) {
		if !r.isCurrent(nav) {
			return s, false
		}
		s.PendingLocation = &loc
		s.PendingMatches = matches
		s.Status = StatusPending
		return s, true
	})
}

// commit publishes nav's matches if nav still holds the latest token. The
// check and the write happen under the store lock so a newer navigation
// cannot interleave.
func (r *Router) commit(nav *navigation, p *plan) {
	matches := p.snapshot()
	committed := r.store.Update(func(s State) (State, bool) {
		r.mu.Lock()
		ok := r.pending == nav
		if ok {
			r.pending = nil
			r.phase = PhaseIdle
		}
		r.mu.Unlock()
		if !ok {
			return s, false
		}

		if !nav.fromHistory {
			if nav.replace {
				r.history.Replace(nav.location.Href, nav.location.State)
			} else {
				r.history.Push(nav.location.Href, nav.location.State)
			}
		}
		return State{
			Location: nav.location,
			Matches:  matches,
			Status:   StatusIdle,
			Token:    nav.token,
		}, true
	})
	if committed {
		r.finish(nav, OutcomeCommitted, nil, nil)
	}
}

// followRedirect starts the navigation a redirect asks for. The new
// navigation replaces nav; nav's waiters follow it.
func (r *Router) followRedirect(nav *navigation, pr *pendingRedirect) {
	if nav.redirects >= r.maxRedirects {
		r.fail(nav, ErrTooManyRedirects)
		return
	}

	target := pr.err.Target
	loc, err := r.buildLocation(target, pr.pathname, pr.params)
	if err != nil {
		r.fail(nav, err)
		return
	}

	req := navRequest{
		location:     loc,
		replace:      target.Replace || nav.replace || nav.fromHistory,
		reload:       target.Reload,
		redirectFrom: nav,
	}
	r.logger.Debug("navigation redirected", "token", nav.token, "from", nav.location.Href, "to", loc.Href)
	if _, err := r.start(req); err != nil {
		r.logger.Debug("redirect dropped", "token", nav.token, "error", err)
	}
}

// fail ends nav with err and clears the pending state.
func (r *Router) fail(nav *navigation, err error) {
	r.mu.Lock()
	ok := r.pending == nav
	if ok {
		r.pending = nil
		r.phase = PhaseIdle
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.finish(nav, OutcomeFailed, err, nil)
	r.clearPending()
}

// clearPending drops the pending fields unless a newer navigation owns
// them.
func (r *Router) clearPending() {
	r.store.Update(func(s State) (State, bool) {
		r.mu.Lock()
		busy := r.pending != nil
		r.mu.Unlock()
		if busy || (s.Status == StatusIdle && s.PendingLocation == nil) {
			return s, false
		}
		s.PendingLocation = nil
		s.PendingMatches = nil
		s.Status = StatusIdle
		return s, true
	})
}

func callContext(ctx context.Context, route *Route, co ContextOptions) (values map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.ELoaderError).
				WithRoute(route.id).
				WithDetailf("context function panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return route.opts.Context(ctx, co)
}

func mergeContext(parent, values map[string]any) map[string]any {
	if len(values) == 0 {
		return parent
	}
	out := make(map[string]any, len(parent)+len(values))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}
