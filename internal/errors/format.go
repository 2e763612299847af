package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Terminal styles.
const (
	styleReset  = "\033[0m"
	styleHeader = "\033[1;31m"
	styleCode   = "\033[1;37m"
	styleRoute  = "\033[36m"
	styleCause  = "\033[90m"
	styleHint   = "\033[33m"
)

var colorEnabled = true

// DisableColors turns off ANSI styling, e.g. when output is not a terminal.
func DisableColors() { colorEnabled = false }

// EnableColors turns ANSI styling back on.
func EnableColors() { colorEnabled = true }

func paint(style, text string) string {
	if !colorEnabled {
		return text
	}
	return style + text + styleReset
}

// Format renders the error for a terminal: a header line with the code and
// message, followed by the route, detail, cause and hint when present.
func (e *RouterError) Format() string {
	var b strings.Builder
	e.write(&b, "")
	return b.String()
}

// write renders e with prefix (the context added by outer wrapping) in
// front of the header.
func (e *RouterError) write(b *strings.Builder, prefix string) {
	b.WriteString(paint(styleHeader, "ERROR "))
	b.WriteString(prefix)
	if e.Code != "" {
		b.WriteString(paint(styleCode, e.Code+": "))
	}
	b.WriteString(e.Message)
	b.WriteByte('\n')

	if e.RouteID != "" {
		fmt.Fprintf(b, "  %s\n", paint(styleRoute, "route "+e.RouteID))
	}
	for _, line := range strings.Split(e.Detail, "\n") {
		if line != "" {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}
	if e.Wrapped != nil {
		fmt.Fprintf(b, "  %s\n", paint(styleCause, "caused by: "+e.Wrapped.Error()))
	}
	if e.Suggestion != "" {
		fmt.Fprintf(b, "  %s%s\n", paint(styleHint, "Hint: "), e.Suggestion)
	}
}

// FormatError renders any error for a terminal. Router errors anywhere in
// the chain are expanded, aggregated errors are rendered one per entry and
// anything else becomes a single ERROR line.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	writeError(&b, err)
	return b.String()
}

func writeError(b *strings.Builder, err error) {
	var merr *multierror.Error
	if stderrors.As(err, &merr) && len(merr.Errors) > 0 {
		fmt.Fprintf(b, "%s%d problems\n", paint(styleHeader, "ERROR "), len(merr.Errors))
		for _, e := range merr.Errors {
			b.WriteByte('\n')
			writeError(b, e)
		}
		return
	}

	var re *RouterError
	if stderrors.As(err, &re) {
		prefix := strings.TrimSuffix(err.Error(), re.Error())
		if prefix == err.Error() {
			prefix = ""
		}
		re.write(b, prefix)
		return
	}

	b.WriteString(paint(styleHeader, "ERROR "))
	b.WriteString(err.Error())
	b.WriteByte('\n')
}

// PrintError writes the formatted error to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprint(w, FormatError(err))
}
