package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/pilldispenser/controller"
)

type ConfigWindow struct {
	app      fyne.App
	OnSubmit func()
}

func NewConfigWindow(app fyne.App) *ConfigWindow {
	return &ConfigWindow{
		app: app,
	}
}

// loadConfigFromPreferences fills fields that were not set by the config file or environment
func (cw *ConfigWindow) loadConfigFromPreferences(cfg *controller.Config) {
	prefs := cw.app.Preferences()
	if cfg.SerialPort == "" {
		cfg.SerialPort = prefs.StringWithFallback("serialPort", "")
	}
	if cfg.BaudRate == "" || cfg.BaudRate == controller.DefaultBaudRate {
		cfg.BaudRate = prefs.StringWithFallback("baudRate", controller.DefaultBaudRate)
	}
	if cfg.EventLogAddr == "" {
		cfg.EventLogAddr = prefs.StringWithFallback("eventLogAddr", "")
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = prefs.StringWithFallback("deviceName", "")
	}
}

func (cw *ConfigWindow) saveConfigToPreferences(cfg *controller.Config) {
	prefs := cw.app.Preferences()
	prefs.SetString("serialPort", cfg.SerialPort)
	prefs.SetString("baudRate", cfg.BaudRate)
	prefs.SetString("eventLogAddr", cfg.EventLogAddr)
	prefs.SetString("deviceName", cfg.DeviceName)
}

func (cw *ConfigWindow) Show(cfg *controller.Config) {
	window := cw.app.NewWindow("Pill Dispenser - Configuration")
	window.Resize(fyne.NewSize(400, 220))
	window.SetCloseIntercept(func() {
		// Treat window close as cancel
		window.Close()
		cw.app.Quit()
	})
	window.Show()

	cw.loadConfigFromPreferences(cfg)

	serialPorts, err := controller.GetSerialPorts()
	if err != nil && !errors.Is(err, controller.ErrNoUSBSerial) {
		showError(cw.app, window, fmt.Errorf("error getting serial ports: %w", err))
		return
	}

	serialPorts = append(serialPorts, controller.SerialPortNone)

	serialEntry := widget.NewSelect(serialPorts, nil)
	if cfg.SerialPort == "" {
		cfg.SerialPort = serialPorts[0]
	}
	serialEntry.Bind(binding.BindString(&cfg.SerialPort))

	baudRateEntry := widget.NewEntry()
	baudRateEntry.Bind(binding.BindString(&cfg.BaudRate))

	eventLogAddrEntry := widget.NewEntry()
	eventLogAddrEntry.SetPlaceHolder("optional")
	eventLogAddrEntry.Bind(binding.BindString(&cfg.EventLogAddr))

	deviceNameEntry := widget.NewEntry()
	deviceNameEntry.SetPlaceHolder("optional")
	deviceNameEntry.Bind(binding.BindString(&cfg.DeviceName))

	submitButton := widget.NewButton("Submit", func() {
		cw.saveConfigToPreferences(cfg)
		window.Hide()
		cw.OnSubmit()
		window.Close()
	})
	submitButton.Disable()

	validateForm := func() {
		_, baudErr := cfg.Baud()
		if cfg.SerialPort != "" && baudErr == nil {
			submitButton.Enable()
		} else {
			submitButton.Disable()
		}
	}

	serialEntry.OnChanged = func(_ string) { validateForm() }
	baudRateEntry.OnChanged = func(_ string) { validateForm() }

	validateForm()

	form := container.NewVBox(
		widget.NewCard("Configuration", "", container.NewVBox(
			container.NewGridWithColumns(2,
				widget.NewLabel("Serial Port:"),
				serialEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Baud Rate:"),
				baudRateEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Event Log Address:"),
				eventLogAddrEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Device Name:"),
				deviceNameEntry,
			),
		)),
		container.NewHBox(
			widget.NewButton("Cancel", func() {
				window.Close()
				cw.app.Quit()
			}),
			submitButton,
		),
	)

	window.SetContent(form)
}

// RunWithConfig asks for the connection settings, connects the host bridge, and shows the panel. It
// returns when the application exits
func RunWithConfig(ctx context.Context, cfg controller.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	application := app.NewWithID("com.calvinmclean.pilldispenser")

	var runErr error
	cw := NewConfigWindow(application)
	cw.OnSubmit = func() {
		c, err := controller.New(cfg, logger)
		if err != nil {
			runErr = err
			window := application.NewWindow("Pill Dispenser")
			window.Resize(fyne.NewSize(400, 200))
			window.Show()
			showError(application, window, err)
			return
		}

		r, w := io.Pipe()
		panel := NewDispenserUI()
		panel.Show(ctx, application, w)

		go func() {
			defer c.Close()
			err := c.Run(ctx, r, panel)
			if err != nil {
				logger.Error("bridge stopped", "error", err)
				fyne.Do(func() {
					application.Quit()
				})
			}
		}()
	}
	cw.Show(&cfg)

	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			application.Quit()
		})
	}()

	application.Run()
	return runErr
}

func showError(app fyne.App, window fyne.Window, err error) {
	d := dialog.NewError(err, window)
	d.SetOnClosed(func() {
		app.Quit()
	})
	d.Show()
}
