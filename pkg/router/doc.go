// Package router implements hierarchical route matching and data loading.
//
// A route tree is declared with NewRootRoute, NewRoute and AddChildren and
// frozen by New:
//
//	root := router.NewRootRoute(router.RouteOptions{})
//	posts := router.NewRoute(router.RouteOptions{
//		Path:   "posts",
//		Loader: loadPosts,
//	})
//	post := router.NewRoute(router.RouteOptions{
//		Path: "$id",
//		Loader: func(ctx context.Context, lc router.LoaderContext) (any, error) {
//			list, err := lc.ParentMatchPromise.Await(ctx)
//			if err != nil {
//				return nil, err
//			}
//			return findPost(list, lc.Params["id"])
//		},
//	})
//	root.AddChildren(posts.AddChildren(post))
//
//	r, err := router.New(root, router.WithHistory(history.NewMemory("/posts/1")))
//	if err != nil {
//		return err
//	}
//	err = r.Load(ctx)
//
// # Matching
//
// A pathname is canonicalized and matched against the tree depth first.
// Siblings are tried literal, param, pathless, splat, then in declaration
// order, with backtracking. The result is a chain of matches from the root
// to the deepest route. A location that only partially matches yields the
// deepest partial chain with ENotFound on its last match.
//
// # Loading
//
// Every navigation gets a token. Loaders of a navigation run concurrently,
// a child never before its parent, and each receives its parent's result
// as ParentMatchPromise. A loader error is confined to its own match. A
// newer navigation cancels the context of the older one's loaders and the
// older results are discarded. Only the latest navigation commits.
//
// # State
//
// State snapshots are published through a store in publish order. Matches
// inside a snapshot are immutable; a match whose route, params, loader
// deps and search are unchanged keeps its pointer across navigations.
package router
