package backup

import (
	"fmt"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"strconv"
	"strings"
	"time"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseClock parses an "HH:MM" time of day
func ParseClock(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// CronExpression translates a declarative schedule into a five field cron expression.
// DayOfWeek counts from Monday = 0, cron counts from Sunday = 0.
func CronExpression(s *types.Schedule) (string, error) {
	if s == nil {
		return "", errors.New("no schedule configured")
	}

	hour, minute, err := ParseClock(s.Time)
	if err != nil {
		return "", err
	}

	switch s.Frequency {
	case types.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case types.FrequencyWeekly:
		dow := 0
		if s.DayOfWeek != nil {
			dow = *s.DayOfWeek
		}
		if dow < 0 || dow > 6 {
			return "", fmt.Errorf("invalid day of week %d", dow)
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, (dow+1)%7), nil
	case types.FrequencyMonthly:
		dom := 1
		if s.DayOfMonth != nil {
			dom = *s.DayOfMonth
		}
		if dom < 1 || dom > 28 {
			return "", fmt.Errorf("invalid day of month %d", dom)
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, dom), nil
	default:
		return "", fmt.Errorf("unknown frequency %q", s.Frequency)
	}
}

// NextRun returns the first activation of expression strictly after now, in UTC
func NextRun(expression string, now time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(now.UTC()), nil
}
