package router

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/history"
	"github.com/vango-dev/pathway/pkg/routepath"
	"github.com/vango-dev/pathway/pkg/store"
	"github.com/vango-dev/pathway/pkg/urlparam"
)

// DefaultMaxRedirects bounds redirect chains.
const DefaultMaxRedirects = 20

// Router matches locations against a frozen route tree, runs loaders and
// publishes the result through a store.
type Router struct {
	tree         *RouteTree
	history      history.History
	search       urlparam.SearchParser
	basepath     string
	rootContext  map[string]any
	logger       *slog.Logger
	observers    []Observer
	middleware   []LoaderMiddleware
	concurrency  int
	maxRedirects int

	store *store.Store[State]

	mu       sync.Mutex
	token    uint64
	pending  *navigation
	phase    Phase
	closed   bool
	unlisten func()
}

// Option configures a Router.
type Option func(*Router)

// WithHistory sets the location source. The default is an in-memory
// history starting at "/".
func WithHistory(h history.History) Option {
	return func(r *Router) { r.history = h }
}

// WithSearchParser sets how search strings are parsed and stringified.
func WithSearchParser(p urlparam.SearchParser) Option {
	return func(r *Router) { r.search = p }
}

// WithContext sets the context every match starts from.
func WithContext(values map[string]any) Option {
	return func(r *Router) { r.rootContext = values }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithObserver adds navigation observers.
func WithObserver(o ...Observer) Option {
	return func(r *Router) { r.observers = append(r.observers, o...) }
}

// WithLoaderMiddleware adds loader middleware. The first one added runs
// outermost.
func WithLoaderMiddleware(mw ...LoaderMiddleware) Option {
	return func(r *Router) { r.middleware = append(r.middleware, mw...) }
}

// WithLoaderConcurrency limits how many loaders of one navigation run at
// once. Zero or less means no limit.
func WithLoaderConcurrency(n int) Option {
	return func(r *Router) { r.concurrency = n }
}

// WithBasepath mounts the router under a path prefix.
func WithBasepath(base string) Option {
	return func(r *Router) { r.basepath = base }
}

// WithMaxRedirects bounds redirect chains.
func WithMaxRedirects(n int) Option {
	return func(r *Router) { r.maxRedirects = n }
}

// New freezes the tree under root and creates a router for it. Tree
// construction errors are aggregated into the returned error.
func New(root *Route, opts ...Option) (*Router, error) {
	tree, err := BuildTree(root)
	if err != nil {
		return nil, err
	}

	r := &Router{
		tree:         tree,
		search:       urlparam.Flat,
		logger:       slog.Default(),
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.history == nil {
		r.history = history.NewMemory("/")
	}
	if r.basepath != "" {
		res, err := routepath.CanonicalizePath(r.basepath)
		if err != nil {
			return nil, errors.New(errors.EInvalidPath).WithDetailf("basepath %q", r.basepath).Wrap(err)
		}
		r.basepath = res.Path
		if r.basepath == "/" {
			r.basepath = ""
		}
	}

	initial := State{}
	if loc, err := r.locationFromHistory(r.history.Location()); err == nil {
		initial.Location = loc
	}
	r.store = store.New(initial)
	r.unlisten = r.history.Subscribe(r.onPop)

	return r, nil
}

// Tree returns the frozen route tree.
func (r *Router) Tree() *RouteTree { return r.tree }

// History returns the router's history.
func (r *Router) History() history.History { return r.history }

// State returns the current snapshot.
func (r *Router) State() State { return r.store.Get() }

// Subscribe registers fn for every published snapshot. Snapshots are
// delivered in publish order, one listener call at a time. A subscriber
// may navigate; the snapshots that navigation publishes are delivered
// after fn returns.
func (r *Router) Subscribe(fn func(State)) (unsubscribe func()) {
	return r.store.Subscribe(fn)
}

// Phase returns the controller phase.
func (r *Router) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// GetMatch returns the committed match for routeID.
func (r *Router) GetMatch(routeID string) (MatchView, bool) {
	m := r.store.Get().MatchByRoute(routeID)
	if m == nil {
		return MatchView{}, false
	}
	return MatchView{Status: m.Status, Data: m.Data, Error: m.Error, NotFound: m.NotFound}, true
}

// MatchRoutes matches a pathname without navigating. The pathname may
// include the basepath.
func (r *Router) MatchRoutes(pathname string) ([]RouteMatch, error) {
	if p, ok := routepath.TrimBasepath(pathname, r.basepath); ok {
		pathname = p
	}
	return r.tree.Match(pathname)
}

// Load navigates to the history's current location. Call it once after
// New; later history changes are followed automatically.
func (r *Router) Load(ctx context.Context) error {
	loc, err := r.locationFromHistory(r.history.Location())
	if err != nil {
		return err
	}
	nav, err := r.start(navRequest{location: loc, fromHistory: true})
	if err != nil {
		return err
	}
	return r.wait(ctx, nav)
}

// Navigate builds a target from to and opts and navigates to it. It blocks
// until the navigation, or the redirect chain it starts, commits. It
// returns ErrSuperseded or ErrAborted when the navigation does not commit.
// Cancelling ctx stops waiting but does not cancel the navigation.
//
// A request for the location the pending navigation is already heading to,
// with the same push or replace and no state, joins that navigation.
//
// Navigate returns once the commit is visible through State. Subscribers
// may not have received the committed snapshot yet when another delivery
// is in progress, for example when Navigate is called from a subscriber.
func (r *Router) Navigate(ctx context.Context, to string, opts ...NavigateOption) error {
	return r.NavigateTo(ctx, NewTo(to, opts...))
}

// NavigateTo is Navigate with a prepared target.
func (r *Router) NavigateTo(ctx context.Context, to To) error {
	loc, err := r.BuildLocation(to)
	if err != nil {
		return err
	}
	nav, err := r.start(navRequest{location: loc, replace: to.Replace, reload: to.Reload})
	if err != nil {
		return err
	}
	return r.wait(ctx, nav)
}

// Invalidate reruns every loader for the committed location without
// touching history.
func (r *Router) Invalidate(ctx context.Context) error {
	loc := r.store.Get().Location
	if loc.Pathname == "" {
		return r.Load(ctx)
	}
	nav, err := r.start(navRequest{location: loc, fromHistory: true, reload: true})
	if err != nil {
		return err
	}
	return r.wait(ctx, nav)
}

// Abort drops the pending navigation, if any. Its loaders are cancelled
// and the committed state is kept.
func (r *Router) Abort() bool {
	r.mu.Lock()
	nav := r.pending
	r.pending = nil
	r.phase = PhaseIdle
	r.mu.Unlock()

	if nav == nil {
		return false
	}
	r.finish(nav, OutcomeAborted, ErrAborted, nil)
	r.clearPending()
	return true
}

// Close stops following history and aborts the pending navigation.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unlisten := r.unlisten
	r.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	r.Abort()
}

// onPop follows back/forward movements of the history.
func (r *Router) onPop(u history.Update) {
	loc, err := r.locationFromHistory(u.Location)
	if err != nil {
		r.logger.Warn("ignoring history entry", "href", u.Location.Href(), "error", err)
		return
	}
	if _, err := r.start(navRequest{location: loc, fromHistory: true}); err != nil {
		r.logger.Debug("history navigation not started", "href", loc.Href, "error", err)
	}
}

// locationFromHistory parses a raw history entry into a canonical
// Location relative to the basepath.
func (r *Router) locationFromHistory(hl history.Location) (Location, error) {
	pathname := hl.Pathname
	if p, ok := routepath.TrimBasepath(pathname, r.basepath); ok {
		pathname = p
	}
	res, err := routepath.CanonicalizePath(pathname)
	if err != nil {
		return Location{}, errors.New(errors.EInvalidPath).WithDetailf("%q", hl.Pathname).Wrap(err)
	}
	values, err := r.search.Parse(hl.Search)
	if err != nil {
		return Location{}, errors.New(errors.EInvalidSearch).WithDetailf("%q", hl.Search).Wrap(err)
	}
	return r.newLocation(res.Path, values, hl.Hash, hl.State), nil
}

// newLocation assembles a Location from canonical parts.
func (r *Router) newLocation(pathname string, values url.Values, hash string, state any) Location {
	if values == nil {
		values = url.Values{}
	}
	search := r.search.Stringify(values)
	return Location{
		Pathname:     pathname,
		Search:       search,
		SearchParams: values,
		Hash:         hash,
		Href:         routepath.BuildHref(routepath.JoinBasepath(r.basepath, pathname), search, hash),
		State:        state,
	}
}
