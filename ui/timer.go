package ui

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

const idleTimerText = "--:--:--"

// timer shows the time since an event, like the last pill that was detected
type timer struct {
	mtx   sync.Mutex
	since time.Time
	text  *canvas.Text
	stop  chan struct{}
}

func newTimer() *timer {
	return &timer{
		text: canvas.NewText(idleTimerText, nil),
		stop: make(chan struct{}),
	}
}

func (t *timer) Set(since time.Time) {
	t.mtx.Lock()
	t.since = since
	t.mtx.Unlock()
}

func (t *timer) Stop() {
	close(t.stop)
}

func (t *timer) format(now time.Time) string {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.since.IsZero() {
		return idleTimerText
	}

	elapsed := now.Sub(t.since)
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func (t *timer) Go() {
	ticker := time.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C:
				text := t.format(now)
				fyne.Do(func() {
					t.text.Text = text
					t.text.Refresh()
				})
			}
		}
	}()
}
