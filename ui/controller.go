package ui

import (
	"fmt"
	"io"
)

// controllerWrapper sends operator commands to the host bridge
type controllerWrapper struct {
	writer io.Writer
}

func (c *controllerWrapper) send(command string) {
	fmt.Fprintf(c.writer, "%s\n", command)
}

func (c *controllerWrapper) Calibrate() { c.send("calibrate") }

func (c *controllerWrapper) Dispense() { c.send("dispense") }

func (c *controllerWrapper) Status() { c.send("status") }

func (c *controllerWrapper) Reset() { c.send("reset") }
