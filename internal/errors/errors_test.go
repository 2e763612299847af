package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    Code
		wantMsg string
		wantCat Category
	}{
		{
			name:    "build error",
			code:    EDuplicateChild,
			wantMsg: "Route child attached more than once",
			wantCat: CategoryBuild,
		},
		{
			name:    "match error",
			code:    ENotFound,
			wantMsg: "No route matches the remaining path",
			wantCat: CategoryMatch,
		},
		{
			name:    "link error",
			code:    EMissingParam,
			wantMsg: "Missing route parameter",
			wantCat: CategoryLink,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != string(tt.code) {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := New(EMissingParam).WithDetail(`"id" is required`)
	want := `EMissingParam: Missing route parameter: "id" is required`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := New(ELoaderError).Wrap(stderrors.New("boom"))
	if !strings.HasSuffix(wrapped.Error(), ": boom") {
		t.Errorf("Error() = %q, want suffix %q", wrapped.Error(), ": boom")
	}
}

func TestIsCode(t *testing.T) {
	base := New(ENotFound).WithDetail("/missing")
	wrapped := fmt.Errorf("matching: %w", base)

	if !Is(wrapped, ENotFound) {
		t.Error("Is(wrapped, ENotFound) = false, want true")
	}
	if Is(wrapped, ECycle) {
		t.Error("Is(wrapped, ECycle) = true, want false")
	}
	if !HasCode(wrapped, ENotFound) {
		t.Error("HasCode(wrapped, ENotFound) = false, want true")
	}
	if !Is(wrapped, New(ENotFound)) {
		t.Error("Is(wrapped, New(ENotFound)) = false, want true")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(ELoaderError).Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, ELoaderError) != nil {
		t.Error("FromError(nil) should return nil")
	}

	orig := New(ECycle)
	if got := FromError(fmt.Errorf("ctx: %w", orig), ELoaderError); got != orig {
		t.Error("FromError should return the existing RouterError")
	}

	plain := stderrors.New("plain")
	got := FromError(plain, ELoaderError)
	if got.Code != string(ELoaderError) || got.Wrapped != plain {
		t.Errorf("FromError(plain) = %+v", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(EMissingParam).
		WithRoute("/posts/$postId").
		WithDetail(`param "postId" is required`).
		WithSuggestion("pass Params")

	out := err.Format()
	for _, want := range []string{
		"ERROR EMissingParam: Missing route parameter",
		"route /posts/$postId",
		`param "postId" is required`,
		"Hint: pass Params",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	missing := New(EMissingParam).WithRoute("/posts/$id").WithSuggestion("pass the param")
	var agg *multierror.Error
	agg = multierror.Append(agg,
		New(EConfig).WithDetail("inspect.port out of range"),
		New(EConfig).WithDetail("log.format must be text or json"),
	)

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "router error",
			err:  missing,
			want: []string{"ERROR EMissingParam: ", "route /posts/$id", "Hint: pass the param"},
		},
		{
			name: "wrapped router error keeps context",
			err:  fmt.Errorf("navigate /posts: %w", missing),
			want: []string{"ERROR navigate /posts: EMissingParam: ", "route /posts/$id"},
		},
		{
			name: "aggregated errors",
			err:  agg.ErrorOrNil(),
			want: []string{"ERROR 2 problems", "inspect.port out of range", "log.format must be text or json"},
		},
		{
			name: "plain error",
			err:  stderrors.New("disk full"),
			want: []string{"ERROR disk full\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintError(&buf, tt.err)
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("missing %q in:\n%s", want, out)
				}
			}
		})
	}

	if got := strings.Count(FormatError(agg), "ERROR EConfig: "); got != 2 {
		t.Errorf("aggregated entries = %d, want 2", got)
	}
	if FormatError(nil) != "" {
		t.Error("FormatError(nil) should be empty")
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(ECycle); !ok {
		t.Error("ECycle should be registered")
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("unregistered code should not be found")
	}
}
