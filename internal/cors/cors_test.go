package cors

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnnotate(t *testing.T) {
	tests := []struct {
		name         string
		allowHeaders string
		expected     http.Header
	}{
		{
			name:         "default allow headers",
			allowHeaders: "",
			expected: http.Header{
				"Access-Control-Allow-Origin":      {"*"},
				"Access-Control-Request-Method":    {"GET,POST,PUT,DELETE,OPTIONS,HEAD,PATCH"},
				"Access-Control-Allow-Headers":     {"Content-Type,Authorization"},
				"Access-Control-Allow-Credentials": {"true"},
			},
		},
		{
			name:         "custom allow headers",
			allowHeaders: "X-Custom",
			expected: http.Header{
				"Access-Control-Allow-Origin":      {"*"},
				"Access-Control-Request-Method":    {"GET,POST,PUT,DELETE,OPTIONS,HEAD,PATCH"},
				"Access-Control-Allow-Headers":     {"X-Custom"},
				"Access-Control-Allow-Credentials": {"true"},
			},
		},
		{
			name:         "custom list passed verbatim",
			allowHeaders: "X-A, X-B,x-c",
			expected: http.Header{
				"Access-Control-Allow-Origin":      {"*"},
				"Access-Control-Request-Method":    {"GET,POST,PUT,DELETE,OPTIONS,HEAD,PATCH"},
				"Access-Control-Allow-Headers":     {"X-A, X-B,x-c"},
				"Access-Control-Allow-Credentials": {"true"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := make(http.Header)
			Annotate(h, tc.allowHeaders)
			if diff := cmp.Diff(tc.expected, h); diff != "" {
				t.Errorf("Annotate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnnotate_KeepsExistingHeaders(t *testing.T) {
	h := http.Header{
		"Content-Type":                {"application/json"},
		"Access-Control-Allow-Origin": {"https://upstream.example"},
	}

	Annotate(h, "")

	if got := h.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	want := []string{"https://upstream.example", "*"}
	if diff := cmp.Diff(want, h.Values(HeaderAllowOrigin)); diff != "" {
		t.Errorf("Access-Control-Allow-Origin mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnotate_Twice(t *testing.T) {
	h := make(http.Header)

	Annotate(h, "X-Custom")
	Annotate(h, "X-Custom")

	expected := http.Header{
		"Access-Control-Allow-Origin":      {"*", "*"},
		"Access-Control-Request-Method":    {RequestMethods, RequestMethods},
		"Access-Control-Allow-Headers":     {"X-Custom", "X-Custom"},
		"Access-Control-Allow-Credentials": {"true", "true"},
	}
	if diff := cmp.Diff(expected, h); diff != "" {
		t.Errorf("double Annotate() mismatch (-want +got):\n%s", diff)
	}
}
