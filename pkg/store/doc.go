// Package store provides a single-writer, many-reader state holder with
// synchronous, ordered change notification.
//
// Usage:
//
//	s := store.New(State{})
//	unsubscribe := s.Subscribe(func(st State) {
//	    render(st)
//	})
//	defer unsubscribe()
//
//	s.Set(func(prev State) State {
//	    next := prev
//	    next.Count++
//	    return next
//	})
//
// Listeners observe every produced value exactly once and in production
// order. A write issued from inside a listener is queued and delivered after
// the current notification round, so no listener ever sees a torn sequence.
package store
