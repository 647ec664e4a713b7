package commands

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	input   io.ByteReader
	calls   []string
	verbose bool
}

func (f *fakeController) Calibrate() { f.calls = append(f.calls, "calibrate") }
func (f *fakeController) Dispense()  { f.calls = append(f.calls, "dispense") }
func (f *fakeController) Reset()     { f.calls = append(f.calls, "reset") }

func (f *fakeController) Status() string {
	return "STATUS phase=Calibration portions=0 calibrated=false step=0/0"
}

func (f *fakeController) Verbose() bool {
	f.verbose = !f.verbose
	return f.verbose
}

func (f *fakeController) ReadByte() (byte, error) {
	return f.input.ReadByte()
}

func run(input string) (*fakeController, string) {
	c := &fakeController{input: strings.NewReader(input)}
	var out bytes.Buffer
	Run(c, &out)
	return c, out.String()
}

func TestRunDispatchesCommands(t *testing.T) {
	c, out := run("C\r\nD\nq")
	assert.Equal(t, []string{"calibrate", "dispense"}, c.calls)
	assert.Empty(t, out)
}

func TestStatusCommand(t *testing.T) {
	_, out := run("S")
	assert.Equal(t, "STATUS phase=Calibration portions=0 calibrated=false step=0/0\r\n", out)
}

func TestResetNeedsConfirmation(t *testing.T) {
	c, out := run("XD")
	assert.Empty(t, c.calls)
	assert.Equal(t, "error: reset not confirmed, send XX\r\n", out)

	c, _ = run("XX")
	assert.Equal(t, []string{"reset"}, c.calls)
}

func TestResetWaitsForInput(t *testing.T) {
	// the input ends before the confirmation arrives
	c, out := run("X")
	assert.Empty(t, c.calls)
	assert.Empty(t, out)
}

func TestVerboseCommand(t *testing.T) {
	_, out := run("VV")
	assert.Equal(t, "verbose=true\r\nverbose=false\r\n", out)
}

func TestHelpCommand(t *testing.T) {
	_, out := run("H")
	assert.True(t, strings.HasPrefix(out, "Available Commands:\r\n"))
	for _, cmd := range commands {
		assert.Contains(t, out, string(cmd.Flag)+": "+cmd.Description)
	}
}
