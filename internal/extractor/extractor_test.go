package extractor_test

import (
	"testing"

	"github.com/torosent/loadsink/internal/extractor"
)

func TestExtract(t *testing.T) {
	body := []byte(`{
		"count": 42,
		"rate": 3.25,
		"enabled": true,
		"disabled": false,
		"latency": "12.5",
		"name": "socks",
		"nested": {"depth": {"value": 7}},
		"items": [{"score": 1.5}, {"score": 2.5}],
		"nothing": null
	}`)

	tests := []struct {
		name   string
		path   string
		want   float64
		wantOK bool
	}{
		{name: "integer field", path: "$.count", want: 42, wantOK: true},
		{name: "float field", path: "$.rate", want: 3.25, wantOK: true},
		{name: "true as one", path: "$.enabled", want: 1, wantOK: true},
		{name: "false as zero", path: "$.disabled", want: 0, wantOK: true},
		{name: "numeric string", path: "$.latency", want: 12.5, wantOK: true},
		{name: "nested path", path: "$.nested.depth.value", want: 7, wantOK: true},
		{name: "array index", path: "$.items.1.score", want: 2.5, wantOK: true},
		{name: "without dollar prefix", path: "count", want: 42, wantOK: true},
		{name: "non-numeric string", path: "$.name", wantOK: false},
		{name: "null value", path: "$.nothing", wantOK: false},
		{name: "missing field", path: "$.absent", wantOK: false},
		{name: "empty path", path: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractor.Extract(body, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Extract(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Extract(%q) = %g, want %g", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtractBareDollar(t *testing.T) {
	got, ok := extractor.Extract([]byte(`99.5`), "$")
	if !ok || got != 99.5 {
		t.Fatalf("Extract($) = %g, %v, want 99.5, true", got, ok)
	}
}

func TestExtractInvalidJSON(t *testing.T) {
	if _, ok := extractor.Extract([]byte(`{not json`), "$.count"); ok {
		t.Fatal("Extract() ok = true on malformed body, want false")
	}
}
