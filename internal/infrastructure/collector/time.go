package collector

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Relative forms seen on scraped pages, English and Chinese.
var (
	relMinutes = regexp.MustCompile(`^(\d+)\s*(?:minutes?|mins?)\s+ago$`)
	relHours   = regexp.MustCompile(`^(\d+)\s*(?:hours?|hrs?)\s+ago$`)
	relDays    = regexp.MustCompile(`^(\d+)\s*days?\s+ago$`)
	cnMinutes  = regexp.MustCompile(`^(\d+)\s*分钟前$`)
	cnHours    = regexp.MustCompile(`^(\d+)\s*小时前$`)
	cnDays     = regexp.MustCompile(`^(\d+)\s*天前$`)
	yesterday  = regexp.MustCompile(`^(?:昨天|yesterday)\s*(\d{1,2}):(\d{2})$`)
)

// nowFunc is swapped in tests to pin relative-time arithmetic.
var nowFunc = time.Now

// ParsePublishTime turns a scraped time string into UTC. It accepts relative
// forms ("3 hours ago", "5分钟前", "昨天 08:30") and arbitrary absolute
// formats; anything unparseable yields nil so the item survives without a
// date rather than failing extraction.
func ParsePublishTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	now := nowFunc().UTC()
	lower := strings.ToLower(raw)

	if lower == "just now" || raw == "刚刚" {
		return &now
	}
	if t, ok := matchRelative(lower, raw, now); ok {
		return t
	}
	if m := yesterday.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		y := now.AddDate(0, 0, -1)
		t := time.Date(y.Year(), y.Month(), y.Day(), h, min, 0, 0, time.UTC)
		return &t
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		utc := t.UTC()
		return &utc
	}
	return nil
}

func matchRelative(lower, raw string, now time.Time) (*time.Time, bool) {
	type rule struct {
		re   *regexp.Regexp
		text string
		unit time.Duration
	}
	rules := []rule{
		{relMinutes, lower, time.Minute},
		{relHours, lower, time.Hour},
		{relDays, lower, 24 * time.Hour},
		{cnMinutes, raw, time.Minute},
		{cnHours, raw, time.Hour},
		{cnDays, raw, 24 * time.Hour},
	}
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(r.text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			t := now.Add(-time.Duration(n) * r.unit)
			return &t, true
		}
	}
	return nil, false
}
