package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
}

// Registered error codes.
const (
	ENotFound       Code = "ENotFound"
	ELoaderError    Code = "ELoaderError"
	ERedirect       Code = "ERedirect"
	EMissingParam   Code = "EMissingParam"
	EInvalidPath    Code = "EInvalidPath"
	EDuplicateChild Code = "EDuplicateChild"
	ECycle          Code = "ECycle"
	EParentMismatch Code = "EParentMismatch"
	EInvalidSearch  Code = "EInvalidSearch"
	EManifest       Code = "EManifest"
	EConfig         Code = "EConfig"
)

// registry maps error codes to their templates.
var registry = map[Code]ErrorTemplate{
	// Route tree construction
	EDuplicateChild: {
		Category: CategoryBuild,
		Message:  "Route child attached more than once",
	},
	ECycle: {
		Category: CategoryBuild,
		Message:  "Route tree contains a cycle",
	},
	EParentMismatch: {
		Category: CategoryBuild,
		Message:  "Route parent does not match getParentRoute",
	},

	// Matching
	ENotFound: {
		Category: CategoryMatch,
		Message:  "No route matches the remaining path",
	},
	EInvalidPath: {
		Category: CategoryMatch,
		Message:  "Invalid path",
	},

	// Loading
	ELoaderError: {
		Category: CategoryLoader,
		Message:  "Route loader failed",
	},
	ERedirect: {
		Category: CategoryLoader,
		Message:  "Redirect",
	},
	EInvalidSearch: {
		Category: CategorySearch,
		Message:  "Search params failed validation",
	},

	// Link resolution
	EMissingParam: {
		Category: CategoryLink,
		Message:  "Missing route parameter",
	},

	// Tooling
	EManifest: {
		Category: CategoryManifest,
		Message:  "Invalid route manifest",
	},
	EConfig: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
}

// Lookup returns the template registered for code.
func Lookup(code Code) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
