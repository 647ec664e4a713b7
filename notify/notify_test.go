package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulti(t *testing.T) {
	var got []string
	record := Func(func(text string) { got = append(got, text) })

	Multi(record, Nop{}, record).Notify("Max portions reached.")
	assert.Equal(t, []string{"Max portions reached.", "Max portions reached."}, got)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify("Pill detected during dispensing.")
	c.Notify("two\nlines")
	assert.Equal(t, "EVENT Pill detected during dispensing.\r\nEVENT two lines\r\n", buf.String())
}

func TestParseEvent(t *testing.T) {
	text, ok := ParseEvent("EVENT Calibration completed.\r\n")
	assert.True(t, ok)
	assert.Equal(t, "Calibration completed.", text)

	_, ok = ParseEvent("STATUS phase=Calibration")
	assert.False(t, ok)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	NewLog(slog.New(slog.NewTextHandler(&buf, nil))).Notify("Calibration started.")
	assert.Contains(t, buf.String(), `text="Calibration started."`)
}
