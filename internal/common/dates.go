package common

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeDateRegex = regexp.MustCompile(`(?i)^(\d+)\s*(day|days|hour|hours|week|weeks)\s+ago$`)

// absoluteDateLayouts are tried in order; the first successful parse wins.
var absoluteDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// ParsePostedDate parses the date formats seen on job boards: ISO dates,
// US and EU numeric dates, and relative forms like "3 days ago", "today"
// and "yesterday". Returns nil for anything it cannot interpret.
func ParsePostedDate(raw string, now time.Time) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	switch strings.ToLower(s) {
	case "today", "just now", "now":
		t := now
		return &t
	case "yesterday":
		t := now.AddDate(0, 0, -1)
		return &t
	}

	if m := relativeDateRegex.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		var t time.Time
		switch strings.ToLower(m[2]) {
		case "day", "days":
			t = now.AddDate(0, 0, -n)
		case "hour", "hours":
			t = now.Add(-time.Duration(n) * time.Hour)
		case "week", "weeks":
			t = now.AddDate(0, 0, -7*n)
		}
		return &t
	}

	for _, layout := range absoluteDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}
