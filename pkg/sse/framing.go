package sse

import (
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// lineBreaks normalises CRLF and bare CR to LF.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// writeEvent writes one event frame: optional id and event fields, one data
// field per line of data, and a terminating blank line.
func writeEvent(w *server.StreamWriter, data, event, id string) error {
	if id = singleLine(id); id != "" {
		if err := w.WriteLine("id: " + id); err != nil {
			return err
		}
	}
	if event = singleLine(event); event != "" {
		if err := w.WriteLine("event: " + event); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(lineBreaks.Replace(data), "\n") {
		if err := w.WriteLine("data: " + line); err != nil {
			return err
		}
	}
	return w.WriteLine("")
}

// writeComment writes a comment frame. Multi-line comments get one comment
// line each.
func writeComment(w *server.StreamWriter, text string) error {
	for _, line := range strings.Split(lineBreaks.Replace(text), "\n") {
		if err := w.WriteLine(": " + line); err != nil {
			return err
		}
	}
	return w.WriteLine("")
}

// singleLine drops line breaks, which cannot appear in id or event fields.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
