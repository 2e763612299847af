// Package errors provides the structured error taxonomy used by pathway.
//
// Every error raised by the route tree, the matcher, the loader pipeline and
// the link resolver is a *RouterError carrying a stable code:
//
//	ENotFound       matcher stopped below the root while path segments remain
//	ELoaderError    a loader rejected; attached to its match
//	ERedirect       a loader asked for a redirect
//	EMissingParam   link resolver could not interpolate a param
//	EInvalidPath    a path could not be canonicalized or resolved
//	EDuplicateChild a child was attached twice
//	ECycle          a route is its own ancestor
//
// # Usage
//
//	err := errors.New(errors.EMissingParam).
//	    WithDetail(`param "postId" is required by "/posts/$postId"`)
//
//	if errors.Is(err, errors.EMissingParam) {
//	    // ...
//	}
//
//	fmt.Println(err.Format())
//	// ERROR EMissingParam: Missing route parameter
//	//
//	//   param "postId" is required by "/posts/$postId"
package errors
