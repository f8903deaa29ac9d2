package agenda

import (
	"fmt"
	"strings"
	"time"

	"dayparty/internal/model"
)

const icsStampLayout = "20060102T150405Z"

// BuildDayCalendarICS renders a day's top-level tasks as an iCalendar
// feed: one timed event per task, laid out back to back from startOfWork
// in bucket order. Groups span their summed duration.
func BuildDayCalendarICS(tasks []model.Task, day time.Time, startOfWorkHour int, now time.Time) string {
	if startOfWorkHour <= 0 || startOfWorkHour > 23 {
		startOfWorkHour = 9
	}
	cursor := time.Date(day.Year(), day.Month(), day.Day(), startOfWorkHour, 0, 0, 0, day.Location())

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//dayparty//Agenda Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}

	for _, t := range tasks {
		if !t.TopLevel() {
			continue
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = "Untitled task"
		}
		start := cursor
		end := start.Add(time.Duration(t.Duration) * time.Minute)
		cursor = end

		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+escapeICSText(fmt.Sprintf("task-%s@dayparty", t.ID)),
			"DTSTAMP:"+now.UTC().Format(icsStampLayout),
			"SUMMARY:"+escapeICSText(title),
			"DTSTART:"+start.UTC().Format(icsStampLayout),
			"DTEND:"+end.UTC().Format(icsStampLayout),
		)
		if t.TagKey != "" {
			lines = append(lines, "CATEGORIES:"+escapeICSText(t.TagKey))
		}
		if t.Status == model.StatusDone {
			lines = append(lines, "STATUS:COMPLETED")
		}
		lines = append(lines, "END:VEVENT")
	}

	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, "\r\n")
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}
