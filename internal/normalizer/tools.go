package normalizer

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/rfqnorm/backend/internal/calendar"
	"github.com/wonny/rfqnorm/backend/internal/contracts"
)

// ErrInvalidArgument is wrapped by every ValidationError
var ErrInvalidArgument = errors.New("invalid argument")

// tool arguments beyond these are rejected rather than computed
const (
	maxToolMonths = 1200
	maxToolDays   = 36600
)

// Expiry units accepted by ExpireDate
const (
	UnitMonths  = "months"
	UnitNatural = "natural"
	UnitTrading = "trading"
)

// ValidationError reports a caller-supplied value that breaks the input contract
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrInvalidArgument) true
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExpireDateByMonths adds calendar months (fractions allowed) to current
func ExpireDateByMonths(current time.Time, months float64) (string, error) {
	if err := checkCurrent(current); err != nil {
		return "", err
	}
	if math.IsNaN(months) || math.IsInf(months, 0) || months < 0 || months > maxToolMonths {
		return "", invalid("months", "must be a finite number in [0, %d], got %v", maxToolMonths, months)
	}
	return calendar.Format(calendar.AddMonths(current, months)), nil
}

// ExpireDateByNaturalDays adds days with no weekend skipping
func ExpireDateByNaturalDays(current time.Time, days int) (string, error) {
	if err := checkCurrent(current); err != nil {
		return "", err
	}
	if err := checkDays(days); err != nil {
		return "", err
	}
	return calendar.Format(calendar.AddNaturalDays(current, days)), nil
}

// ExpireDateByTradingDays adds weekdays only
func ExpireDateByTradingDays(current time.Time, days int) (string, error) {
	if err := checkCurrent(current); err != nil {
		return "", err
	}
	if err := checkDays(days); err != nil {
		return "", err
	}
	return calendar.Format(calendar.AddTradingDays(current, days)), nil
}

// ExpireDate is the string form used by the HTTP and CLI surfaces.
// unit is one of months, natural, trading; day units need a whole value.
func ExpireDate(currentDate, unit string, value float64) (string, error) {
	ctx, err := contracts.ParseInquiryContext(currentDate)
	if err != nil {
		return "", invalid("current_date", "expected YYYY-MM-DD, got %q", currentDate)
	}

	switch strings.ToLower(strings.TrimSpace(unit)) {
	case UnitMonths:
		return ExpireDateByMonths(ctx.CurrentDate, value)
	case UnitNatural, UnitTrading:
		if value != math.Trunc(value) || math.IsInf(value, 0) {
			return "", invalid("days", "must be a whole number, got %v", value)
		}
		if value < 0 || value > maxToolDays {
			return "", invalid("days", "must be in [0, %d], got %v", maxToolDays, value)
		}
		if strings.EqualFold(strings.TrimSpace(unit), UnitNatural) {
			return ExpireDateByNaturalDays(ctx.CurrentDate, int(value))
		}
		return ExpireDateByTradingDays(ctx.CurrentDate, int(value))
	default:
		return "", invalid("unit", "must be one of %s, %s, %s; got %q", UnitMonths, UnitNatural, UnitTrading, unit)
	}
}

func checkCurrent(current time.Time) error {
	if current.IsZero() {
		return invalid("current_date", "is required")
	}
	return nil
}

func checkDays(days int) error {
	if days < 0 || days > maxToolDays {
		return invalid("days", "must be in [0, %d], got %d", maxToolDays, days)
	}
	return nil
}
