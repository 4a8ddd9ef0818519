package shadow

import (
	"encoding/json"
	"strings"
)

// MergeTranscripts unions two JSONL transcripts, deduplicating by turn id
// and keeping first-seen order (local wins). This is an app-level merge for
// shadow-branch content, not a git 3-way merge. Unparseable lines are
// dropped.
func MergeTranscripts(local, remote string) string {
	seen := make(map[string]bool)
	var merged []string

	for _, content := range []string{local, remote} {
		for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var entry struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				continue
			}
			if entry.ID == "" || seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true
			merged = append(merged, line)
		}
	}

	if len(merged) == 0 {
		return ""
	}
	return strings.Join(merged, "\n") + "\n"
}
