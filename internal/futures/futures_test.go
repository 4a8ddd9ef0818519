package futures

import (
	"strings"
	"testing"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantVerdict string
		wantErr     bool
	}{
		{
			name:        "clean json",
			in:          `{"verdict":"narrow","impact_summary":"couples db to transport"}`,
			wantVerdict: "narrow",
		},
		{
			name:        "fenced json",
			in:          "```json\n{\"verdict\":\"expand\"}\n```",
			wantVerdict: "expand",
		},
		{
			name:        "surrounding prose",
			in:          "Here is my assessment:\n{\"verdict\":\"neutral\"}\nHope that helps.",
			wantVerdict: "neutral",
		},
		{
			name:        "unknown verdict coerced",
			in:          `{"verdict":"amazing"}`,
			wantVerdict: "neutral",
		},
		{
			name:    "no json at all",
			in:      "I cannot assess this diff.",
			wantErr: true,
		},
		{
			name:    "broken json",
			in:      `{"verdict": }`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResult(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResult error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Verdict != tt.wantVerdict {
				t.Errorf("Verdict = %q, want %q", got.Verdict, tt.wantVerdict)
			}
		})
	}
}

func TestSummarizeDiff(t *testing.T) {
	diff := `diff --git a/internal/db/db.go b/internal/db/db.go
--- a/internal/db/db.go
+++ b/internal/db/db.go
@@ -1,3 +1,4 @@
+import "fmt"
diff --git a/cmd/ec/main.go b/cmd/ec/main.go
--- a/cmd/ec/main.go
+++ b/cmd/ec/main.go
@@ -5,2 +5,3 @@
+// hi
`

	got := summarizeDiff(diff)
	if !strings.Contains(got, "internal/db/db.go") || !strings.Contains(got, "cmd/ec/main.go") {
		t.Errorf("Summary missing file names: %q", got)
	}
}

func TestSummarizeDiffWithoutHeaders(t *testing.T) {
	got := summarizeDiff("some opaque diff content")
	if !strings.Contains(got, "bytes") {
		t.Errorf("Expected byte-count fallback, got %q", got)
	}
}
