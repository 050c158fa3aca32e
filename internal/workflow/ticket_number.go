package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// TicketNumberPrefix is the fixed leading segment of every ticket number.
const TicketNumberPrefix = "TKT"

// TicketNumberWidth is the zero-padded width of the per-year sequence.
const TicketNumberWidth = 6

// TicketNumberYearPrefix returns the prefix shared by all numbers of a year,
// e.g. "TKT-2026-".
func TicketNumberYearPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", TicketNumberPrefix, year)
}

// FormatTicketNumber renders TKT-<year>-<sequence>.
func FormatTicketNumber(year, sequence int) string {
	return fmt.Sprintf("%s%0*d", TicketNumberYearPrefix(year), TicketNumberWidth, sequence)
}

// ParseTicketNumber extracts the year and sequence from a ticket number.
func ParseTicketNumber(number string) (year, sequence int, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != TicketNumberPrefix {
		return 0, 0, fmt.Errorf("invalid ticket number %q", number)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, 0, fmt.Errorf("invalid ticket number %q: bad year", number)
	}
	sequence, err = strconv.Atoi(parts[2])
	if err != nil || sequence < 1 {
		return 0, 0, fmt.Errorf("invalid ticket number %q: bad sequence", number)
	}
	return year, sequence, nil
}

// NextTicketNumber returns the number following latest within year. An empty
// latest starts the year at sequence 1.
func NextTicketNumber(year int, latest string) (string, error) {
	if latest == "" {
		return FormatTicketNumber(year, 1), nil
	}
	latestYear, sequence, err := ParseTicketNumber(latest)
	if err != nil {
		return "", err
	}
	if latestYear != year {
		return "", fmt.Errorf("ticket number %s does not belong to %d", latest, year)
	}
	return FormatTicketNumber(year, sequence+1), nil
}
