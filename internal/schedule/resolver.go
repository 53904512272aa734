package schedule

// #region imports
import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// #endregion

// #region resolve

const cannotDetermine = `I can answer schedule questions like: "What are my Monday hours?", "Am I on-call this week?", or "Any holidays coming up?"`

// Resolve answers a schedule-shaped question directly from cfg,
// anchored at now in the configured timezone. It never consults the
// index and never escalates; unrecognized questions get a clear
// cannot-determine answer instead of a guess.
func Resolve(cfg Config, question string, now time.Time) string {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	q := strings.ToLower(question)

	if strings.Contains(q, "holiday") {
		return resolveHoliday(cfg, q, local)
	}
	if day, ok := targetDay(q, local); ok {
		return resolveDay(cfg, day)
	}
	if strings.Contains(q, "on-call") || strings.Contains(q, "oncall") || strings.Contains(q, "on call") {
		return resolveOnCall(cfg, local)
	}
	return cannotDetermine
}

// #endregion resolve

// #region day

func normalizeDay(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// targetDay extracts the weekday a question refers to, resolving
// relative terms against the configured timezone.
func targetDay(q string, local time.Time) (time.Weekday, bool) {
	for name, day := range weekdays {
		if strings.Contains(q, name) {
			return day, true
		}
	}
	// "today" also covers "What are my hours today?"
	if strings.Contains(q, "today") {
		return local.Weekday(), true
	}
	if strings.Contains(q, "tomorrow") {
		return local.AddDate(0, 0, 1).Weekday(), true
	}
	return 0, false
}

func resolveDay(cfg Config, day time.Weekday) string {
	// Latest wins across duplicate entries.
	var entry *DayHours
	for i := range cfg.Week {
		if weekdays[normalizeDay(cfg.Week[i].Day)] == day && knownDay(cfg.Week[i].Day) {
			entry = &cfg.Week[i]
		}
	}
	if entry == nil {
		return fmt.Sprintf("No hours are configured for %s.", day)
	}
	note := ""
	if entry.Note != "" {
		note = " — " + entry.Note
	}
	return fmt.Sprintf("Your %s hours are %s–%s%s (%s).", day, entry.Start, entry.End, note, cfg.Timezone)
}

// #endregion day

// #region holiday

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

func resolveHoliday(cfg Config, q string, local time.Time) string {
	if len(cfg.Holidays) == 0 {
		return "No holidays are configured."
	}

	holidays := make([]Holiday, 0, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", h.Date); err == nil {
			holidays = append(holidays, h)
		}
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date < holidays[j].Date })

	for name, month := range monthNames {
		if !strings.Contains(q, name) {
			continue
		}
		var lines []string
		for _, h := range holidays {
			d, _ := time.Parse("2006-01-02", h.Date)
			if d.Month() == month {
				lines = append(lines, fmt.Sprintf("%s on %s", h.Name, h.Date))
			}
		}
		title := strings.ToUpper(name[:1]) + name[1:]
		if len(lines) == 0 {
			return fmt.Sprintf("No holidays found in %s.", title)
		}
		return fmt.Sprintf("Holidays in %s: %s (%s).", title, strings.Join(lines, ", "), cfg.Timezone)
	}

	today := local.Format("2006-01-02")
	for _, h := range holidays {
		if h.Date >= today {
			return fmt.Sprintf("Next holiday: %s on %s (%s).", h.Name, h.Date, cfg.Timezone)
		}
	}
	return "No upcoming holidays are in the schedule."
}

// #endregion holiday

// #region oncall

func resolveOnCall(cfg Config, local time.Time) string {
	if len(cfg.OnCall) == 0 {
		return "No on-call windows are configured."
	}
	today := local.Format("2006-01-02")

	for _, w := range cfg.OnCall {
		if w.From <= today && today <= w.To {
			return fmt.Sprintf("You are on-call from %s to %s%s.", w.From, w.To, noteSuffix(w.Note))
		}
	}

	var next *OnCallWindow
	for i := range cfg.OnCall {
		w := cfg.OnCall[i]
		if w.From > today && (next == nil || w.From < next.From) {
			next = &cfg.OnCall[i]
		}
	}
	if next != nil {
		return fmt.Sprintf("Next on-call window: %s to %s%s.", next.From, next.To, noteSuffix(next.Note))
	}
	return "No current or upcoming on-call windows."
}

func noteSuffix(note string) string {
	if note == "" {
		return ""
	}
	return " — " + note
}

// #endregion oncall
