package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a sum of money in whole so'm.
type Amount int64

// MaxTopUp bounds a single manual balance adjustment.
const MaxTopUp Amount = 100_000_000

// ParseAmount accepts an optionally signed integer. A fractional part is
// tolerated only when it is all zeros ("20000.00").
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := s[i+1:]
		if strings.Trim(frac, "0") != "" {
			return 0, fmt.Errorf("%w: amount %q must be whole so'm", ErrInvalidInput, s)
		}
		s = s[:i]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", ErrInvalidInput, s)
	}
	return Amount(n), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings, since the web
// view posts raw <input> values.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: amount is required", ErrInvalidInput)
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Add returns a+delta, or false when the sum does not fit in an Amount.
func (a Amount) Add(delta Amount) (Amount, bool) {
	if delta > 0 && a > math.MaxInt64-delta {
		return 0, false
	}
	if delta < 0 && a < math.MinInt64-delta {
		return 0, false
	}
	return a + delta, true
}

func (a Amount) Int64() int64 {
	return int64(a)
}

// String formats with thin grouping: 1234567 -> "1 234 567".
func (a Amount) String() string {
	n := int64(a)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var sb strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(d)
	}
	return sign + sb.String()
}
