// Package ui is the operator panel for a dispenser connected through the host bridge.
package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/pilldispenser/dispenser"
	"github.com/calvinmclean/pilldispenser/notify"
)

const maxLogLines = 200

// panelState is the device as the panel understands it from the console output
type panelState struct {
	status   status
	lastPill time.Time
	log      []string
}

// apply updates the state from one console line and reports whether the status changed
func (p *panelState) apply(line string, now time.Time) bool {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return false
	}

	if s, ok := parseStatus(line); ok {
		p.status = s
		return true
	}

	p.log = append(p.log, line)
	if len(p.log) > maxLogLines {
		p.log = p.log[len(p.log)-maxLogLines:]
	}

	text, ok := notify.ParseEvent(line)
	if !ok {
		return false
	}

	switch text {
	case dispenser.EventPillDetected:
		p.lastPill = now
	case dispenser.EventCalibrationCompleted, dispenser.EventMaxPortions, dispenser.EventStateReset,
		dispenser.EventResetRequested, dispenser.EventDispenseFailed, dispenser.EventRealignFailed:
		// the device changed phase or count, so ask for a fresh status line
		return true
	}
	return false
}

// DispenserUI shows the state of the dispenser and sends commands to it. It is the io.Writer that the
// host bridge copies device output into
type DispenserUI struct {
	mtx     sync.Mutex
	partial []byte
	lines   chan string
}

func NewDispenserUI() *DispenserUI {
	return &DispenserUI{lines: make(chan string, 256)}
}

// Write implements io.Writer. Complete lines are queued for the panel; if the panel falls behind,
// lines are dropped rather than blocking the bridge
func (ui *DispenserUI) Write(p []byte) (int, error) {
	ui.mtx.Lock()
	defer ui.mtx.Unlock()

	ui.partial = append(ui.partial, p...)
	for {
		i := bytes.IndexByte(ui.partial, '\n')
		if i < 0 {
			break
		}
		line := string(ui.partial[:i])
		ui.partial = ui.partial[i+1:]

		select {
		case ui.lines <- line:
		default:
		}
	}

	return len(p), nil
}

// Run shows the panel in its own application until ctx is done or the window is closed
func (ui *DispenserUI) Run(ctx context.Context, commands io.Writer) {
	application := app.New()
	ui.Show(ctx, application, commands)

	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			application.Quit()
		})
	}()

	application.Run()
}

// Show opens the panel window in an existing application
func (ui *DispenserUI) Show(ctx context.Context, application fyne.App, commands io.Writer) {
	c := &controllerWrapper{writer: commands}
	window := application.NewWindow("Pill Dispenser")
	window.SetMaster()

	phaseLabel := widget.NewLabel("Unknown")
	portionsLabel := widget.NewLabel("0")
	calibrationLabel := widget.NewLabel("Not calibrated")

	lastPillTimer := newTimer()
	lastPillTimer.Go()

	logContent := widget.NewLabel("")
	logContent.Wrapping = fyne.TextWrapWord
	logScroll := container.NewVScroll(logContent)
	logScroll.SetMinSize(fyne.NewSize(400, 150))

	buttons := container.NewGridWithColumns(4,
		widget.NewButton("Calibrate", c.Calibrate),
		widget.NewButton("Dispense", c.Dispense),
		widget.NewButton("Status", c.Status),
		widget.NewButton("Reset", func() {
			dialog.ShowConfirm("Reset", "Forget the calibration and portion count?", func(ok bool) {
				if ok {
					c.Reset()
				}
			}, window)
		}),
	)

	content := container.NewVBox(
		container.NewGridWithColumns(2,
			widget.NewLabel("Phase:"), phaseLabel,
			widget.NewLabel("Portions:"), portionsLabel,
			widget.NewLabel("Motor:"), calibrationLabel,
		),
		container.NewHBox(
			widget.NewLabel("Since last pill:"),
			layout.NewSpacer(),
			container.NewPadded(lastPillTimer.text),
		),
		buttons,
		widget.NewAccordion(widget.NewAccordionItem("Logs", logScroll)),
	)

	go func() {
		defer lastPillTimer.Stop()

		state := &panelState{}
		for {
			select {
			case <-ctx.Done():
				return
			case line := <-ui.lines:
				refresh := state.apply(line, time.Now())
				if _, ok := parseStatus(line); !ok && refresh {
					c.Status()
				}
				lastPillTimer.Set(state.lastPill)

				s := state.status
				logText := strings.Join(state.log, "\n")
				fyne.Do(func() {
					phaseLabel.SetText(s.phase)
					portionsLabel.SetText(fmt.Sprint(s.portions))
					calibrationLabel.SetText(s.calibrationText())
					logContent.SetText(logText)
					logScroll.ScrollToBottom()
				})
			}
		}
	}()

	c.Status()

	window.SetContent(content)
	window.Resize(fyne.NewSize(420, 320))
	window.Show()
}
