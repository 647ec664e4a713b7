package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// EventPrefix starts every event line on the serial console
const EventPrefix = "EVENT "

// Console prints events as lines on the service console so a host can pick them up
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "%s%s\r\n", EventPrefix, strings.ReplaceAll(text, "\n", " "))
}

// ParseEvent returns the text of an event line printed by Console
func ParseEvent(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	text, ok := strings.CutPrefix(line, EventPrefix)
	if !ok {
		return "", false
	}
	return text, true
}
