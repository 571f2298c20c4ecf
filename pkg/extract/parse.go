package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/screen-pilot/pkg/types"
)

var (
	reNonDigit = regexp.MustCompile(`\D`)
	reFraction = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

// ParseTimestamp converts an HH:MM:SS or MM:SS countdown into seconds.
// A bare "0" is zero. When the separators were lost, six digits are read as
// HHMMSS and four as MMSS.
func ParseTimestamp(text string) (int, error) {
	s := strings.TrimSpace(text)
	if s == "0" {
		return 0, nil
	}
	if strings.Contains(s, ":") {
		if secs, ok := parseColon(strings.Split(s, ":")); ok {
			return secs, nil
		}
	}

	digits := reNonDigit.ReplaceAllString(s, "")
	switch len(digits) {
	case 6:
		return atoi(digits[0:2])*3600 + atoi(digits[2:4])*60 + atoi(digits[4:6]), nil
	case 4:
		return atoi(digits[0:2])*60 + atoi(digits[2:4]), nil
	}
	return 0, types.NewError(types.ReasonTextUnreadable, "extract.ParseTimestamp", "unparseable timestamp %q", text)
}

// ParseDuration is ParseTimestamp returning a time.Duration.
func ParseDuration(text string) (time.Duration, error) {
	secs, err := ParseTimestamp(text)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

func parseColon(parts []string) (int, bool) {
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ParseInt keeps only the digits of text and parses them.
func ParseInt(text string) (int, error) {
	digits := reNonDigit.ReplaceAllString(text, "")
	if digits == "" {
		return 0, types.NewError(types.ReasonTextUnreadable, "extract.ParseInt", "no digits in %q", text)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, types.WrapError(types.ReasonTextUnreadable, "extract.ParseInt", err)
	}
	return n, nil
}

// ParseFraction reads "current/max" from the first line containing keyword
// (case-insensitive). An empty keyword accepts any line.
func ParseFraction(text, keyword string) (current, total int, err error) {
	keyword = strings.ToLower(keyword)
	for _, line := range strings.Split(text, "\n") {
		if keyword != "" && !strings.Contains(strings.ToLower(line), keyword) {
			continue
		}
		m := reFraction.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		return atoi(m[1]), atoi(m[2]), nil
	}
	return 0, 0, types.NewError(types.ReasonTextUnreadable, "extract.ParseFraction", "no %q fraction in %q", keyword, text)
}

// HasFraction reports whether text contains a "current/max" pair.
func HasFraction(text string) bool {
	return reFraction.MatchString(text)
}

// HasDigits reports whether text contains at least one digit.
func HasDigits(text string) bool {
	return reNonDigit.ReplaceAllString(text, "") != ""
}
