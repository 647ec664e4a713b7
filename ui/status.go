package ui

import (
	"strconv"
	"strings"
)

const statusPrefix = "STATUS "

// status is what the panel shows from the device's status line
type status struct {
	phase              string
	portions           int
	calibrated         bool
	step               int
	stepsPerRevolution int
}

// parseStatus reads a line like "STATUS phase=Dispensing portions=2 calibrated=true step=512/4096".
// Unknown fields are ignored so older firmware still parses
func parseStatus(line string) (status, bool) {
	fields, ok := strings.CutPrefix(strings.TrimSpace(line), statusPrefix)
	if !ok {
		return status{}, false
	}

	var s status
	for _, field := range strings.Fields(fields) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		var err error
		switch key {
		case "phase":
			s.phase = value
		case "portions":
			s.portions, err = strconv.Atoi(value)
		case "calibrated":
			s.calibrated, err = strconv.ParseBool(value)
		case "step":
			step, spr, _ := strings.Cut(value, "/")
			s.step, err = strconv.Atoi(step)
			if err == nil && spr != "" {
				s.stepsPerRevolution, err = strconv.Atoi(spr)
			}
		}
		if err != nil {
			return status{}, false
		}
	}

	return s, true
}

func (s status) calibrationText() string {
	if !s.calibrated {
		return "Not calibrated"
	}
	return "Calibrated (" + strconv.Itoa(s.stepsPerRevolution) + " steps)"
}
