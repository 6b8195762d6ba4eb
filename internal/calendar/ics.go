// Package calendar emits iCalendar files and invite mails for approved
// registrations.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"eventdesk/internal/models"
)

const (
	defaultLeadTime = 24 * time.Hour
	defaultDuration = 2 * time.Hour
	icsTimeLayout   = "20060102T150405Z"
)

// GenerateICS renders a single-event VCALENDAR. Events without a parsed
// start time get a placeholder slot tomorrow; the free-text date stays in
// the description so nothing is lost.
func GenerateICS(e models.Event) []byte {
	start := time.Now().UTC().Add(defaultLeadTime)
	if e.EventAt != nil {
		start = e.EventAt.UTC()
	}
	end := start.Add(defaultDuration)

	desc := e.Description
	if e.Summary != "" {
		desc += "\n\n" + e.Summary
	}
	if e.EventAt == nil && e.DateText != "" {
		desc += "\nДата: " + e.DateText
	}

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//eventdesk//event export//EN\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s@eventdesk\r\n", e.ID)
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", time.Now().UTC().Format(icsTimeLayout))
	fmt.Fprintf(&b, "DTSTART:%s\r\n", start.Format(icsTimeLayout))
	fmt.Fprintf(&b, "DTEND:%s\r\n", end.Format(icsTimeLayout))
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeText(e.Title))
	if desc != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeText(desc))
	}
	if e.Location != "" {
		fmt.Fprintf(&b, "LOCATION:%s\r\n", escapeText(e.Location))
	}
	if !models.IsSentinelURL(e.SourceURL) {
		fmt.Fprintf(&b, "URL:%s\r\n", e.SourceURL)
	}
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

// escapeText applies RFC 5545 text escaping.
func escapeText(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return r.Replace(s)
}
