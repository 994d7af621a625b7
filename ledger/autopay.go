/*
autopay.go - Recurring-payment schedule math

PURPOSE:
  Computes the NextRun timestamp for an auto-pay template on create and
  update. That is the whole feature: next-due is computed and displayed,
  nothing executes it. An executor would sit outside the reducer and
  dispatch ordinary AddTransaction actions when NextRun passes.

CLAMPING:
  A monthly auto-pay on day 31 runs on the last day of shorter months.
*/
package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NextRun computes the first instant strictly after now at which the
// auto-pay is due, evaluated in loc.
func (a AutoPay) NextRunAfter(now time.Time, loc *time.Location) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(a.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	lt := now.In(loc)

	switch a.Frequency {
	case FreqDaily:
		next := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, minute, 0, 0, loc)
		if !next.After(lt) {
			next = next.AddDate(0, 0, 1)
		}
		return next.UTC(), nil

	case FreqWeekly:
		next := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, minute, 0, 0, loc)
		offset := (int(a.DayOfWeek) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, offset)
		if !next.After(lt) {
			next = next.AddDate(0, 0, 7)
		}
		return next.UTC(), nil

	case FreqMonthly:
		next := monthlyOccurrence(lt.Year(), lt.Month(), a.DayOfMonth, hour, minute, loc)
		if !next.After(lt) {
			next = monthlyOccurrence(lt.Year(), lt.Month()+1, a.DayOfMonth, hour, minute, loc)
		}
		return next.UTC(), nil

	case FreqYearly:
		month := a.Month
		if month == 0 {
			month = lt.Month()
		}
		next := monthlyOccurrence(lt.Year(), month, a.DayOfMonth, hour, minute, loc)
		if !next.After(lt) {
			next = monthlyOccurrence(lt.Year()+1, month, a.DayOfMonth, hour, minute, loc)
		}
		return next.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, a.Frequency)
}

// monthlyOccurrence places day-of-month within year/month, clamped to the
// month's last day. time.Date would roll Feb 31 into March instead.
func monthlyOccurrence(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	if day < 1 {
		day = 1
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hour, minute, nil
}
