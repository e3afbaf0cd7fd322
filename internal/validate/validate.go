package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"motodean/internal/domain"
)

var (
	reEmail  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ      = regexp.MustCompile(`^[A-Za-z0-9 _.@#'\\-]{1,100}$`)
	reDigits = regexp.MustCompile(`^[0-9]{1,18}$`)
)

// ID parses a positive numeric resource identifier.
func ID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !reDigits.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil && n > 0
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 100 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a free-text search: trims, caps the length and restricts characters.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s, reQ.MatchString(s)
}

// Status accepts only the six order statuses, spelled exactly.
func Status(s string) (domain.OrderStatus, bool) {
	return domain.ParseOrderStatus(s)
}

// Quantity is a stock amount between 0 and 100000.
func Quantity(n int) bool { return n >= 0 && n <= 100000 }

// Notes trims free text and caps it at 500 characters.
func Notes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}

// Page turns a 1-based page number into an offset for the given page size.
func Page(s string, size int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		n = 1
	}
	if n > 10000 {
		n = 10000
	}
	return (n - 1) * size
}

// Date parses YYYY-MM-DD. With endOfDay the last instant of that day is returned.
func Date(s string, endOfDay bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// Password enforces a length window and mixed character classes.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
