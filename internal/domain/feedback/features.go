package feedback

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
)

// Feature weights. They sum to 1.0.
const (
	weightKind         = 0.4
	weightTargetDomain = 0.3
	weightTimeOfDay    = 0.1
	weightDayOfWeek    = 0.1
	weightKeywords     = 0.1
)

// similarityKeywords are the content tokens that contribute to the keyword
// feature. Order does not matter; the extracted set is sorted.
var similarityKeywords = []string{"urgent", "important", "meeting", "deadline", "review", "report"}

// vipMarkers and clientMarkers bucket non-email targets by role.
var (
	vipMarkers    = []string{"ceo", "cto", "investor", "board"}
	clientMarkers = []string{"client", "customer"}
)

// Features is the similarity feature vector derived from an action.
// Not persisted; computed on demand.
type Features struct {
	Kind         string
	TargetDomain string
	TimeOfDay    int // 0-3: night, morning, afternoon, evening
	DayOfWeek    int // 0-6, Monday = 0
	Keywords     string
}

// Extract derives the feature vector for an action observed at the given time.
func Extract(a action.Action, at time.Time) Features {
	return Features{
		Kind:         string(a.Kind),
		TargetDomain: targetDomain(a.Target),
		TimeOfDay:    at.Hour() / 6,
		DayOfWeek:    (int(at.Weekday()) + 6) % 7,
		Keywords:     keywordSet(a.Content),
	}
}

// Features derives the feature vector for a historical entry, using the
// entry's own timestamp for the time features.
func (e *Entry) Features() Features {
	return Extract(action.Action{
		Kind:    action.Kind(e.ActionKind),
		Target:  e.Target,
		Content: e.Content(),
	}, e.Timestamp)
}

// targetDomain buckets a target: its mail domain when it looks like an
// address, otherwise a role bucket (vip, client, other).
func targetDomain(target string) string {
	if i := strings.IndexByte(target, '@'); i >= 0 {
		return strings.ToLower(target[i+1:])
	}
	lower := strings.ToLower(target)
	for _, m := range vipMarkers {
		if strings.Contains(lower, m) {
			return "vip"
		}
	}
	for _, m := range clientMarkers {
		if strings.Contains(lower, m) {
			return "client"
		}
	}
	return "other"
}

func keywordSet(content string) string {
	lower := strings.ToLower(content)
	var hits []string
	for _, kw := range similarityKeywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	sort.Strings(hits)
	return strings.Join(hits, ",")
}

// Similarity returns the weighted similarity between two feature vectors in
// [0, 1]. Categorical features contribute 1.0 on exact match, numeric
// features contribute 1 - |delta| / maxDelta.
func (f Features) Similarity(other Features) float64 {
	var s float64
	if f.Kind == other.Kind {
		s += weightKind
	}
	if f.TargetDomain == other.TargetDomain {
		s += weightTargetDomain
	}
	s += weightTimeOfDay * (1 - math.Abs(float64(f.TimeOfDay-other.TimeOfDay))/3)
	s += weightDayOfWeek * (1 - math.Abs(float64(f.DayOfWeek-other.DayOfWeek))/6)
	if f.Keywords == other.Keywords {
		s += weightKeywords
	}
	return s
}

// Fingerprint returns a stable key for the vector, used to cache ledger
// query results.
func (f Features) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", f.Kind, f.TargetDomain, f.TimeOfDay, f.DayOfWeek, f.Keywords)
}
