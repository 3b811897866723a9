package mapper

import (
	"regexp"
	"strconv"
	"strings"
)

// Amounts are stored in man-yen (units of 10,000 yen). Raw numeric values at
// or above one display unit are assumed to be yen and converted; smaller
// numbers are assumed to already be in the display unit, so small counters
// are never misread as sub-yen amounts.
const yenPerUnit = 10_000

// unitsPerOku is how many display units one oku-yen (100,000,000 yen) holds.
const unitsPerOku = 10_000

var (
	okuPattern    = regexp.MustCompile(`^([0-9,]+)億(?:([0-9,]+)万)?円?$`)
	manPattern    = regexp.MustCompile(`^([0-9,]+)万円?$`)
	digitsPattern = regexp.MustCompile(`^[0-9,]+$`)
)

// ParseAmount normalizes an upstream monetary limit into display units.
// It tries each literal format in a fixed order and returns nil when none
// matches or the value is negative.
func ParseAmount(raw any) *int64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return fromYen(int64(v))
	case int:
		return fromYen(int64(v))
	case int64:
		return fromYen(v)
	case string:
		return parseAmountString(v)
	}
	return nil
}

func parseAmountString(raw string) *int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	if m := okuPattern.FindStringSubmatch(s); m != nil {
		oku, err := parseGrouped(m[1])
		if err != nil {
			return nil
		}
		total := oku * unitsPerOku
		if m[2] != "" {
			man, err := parseGrouped(m[2])
			if err != nil {
				return nil
			}
			total += man
		}
		return &total
	}

	if m := manPattern.FindStringSubmatch(s); m != nil {
		man, err := parseGrouped(m[1])
		if err != nil {
			return nil
		}
		return &man
	}

	if digitsPattern.MatchString(s) {
		n, err := parseGrouped(s)
		if err != nil {
			return nil
		}
		return fromYen(n)
	}

	return nil
}

// fromYen converts a raw numeric amount, treating values below one display
// unit as already converted.
func fromYen(n int64) *int64 {
	if n < 0 {
		return nil
	}
	if n < yenPerUnit {
		return &n
	}
	units := n / yenPerUnit
	return &units
}

func parseGrouped(s string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
}
