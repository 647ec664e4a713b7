//go:build tinygo

package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/dispenser"
	"github.com/calvinmclean/pilldispenser/firmware/commands"
	"github.com/calvinmclean/pilldispenser/firmware/device"
	"github.com/calvinmclean/pilldispenser/motor"
	"github.com/calvinmclean/pilldispenser/notify"
	"github.com/calvinmclean/pilldispenser/piezo"
	"github.com/calvinmclean/pilldispenser/state"
)

// appKey is the LoRaWAN application key of the device
var appKey = "307fb94b705bd61559329b239686f653"

func main() {
	deviceCfg := device.Config{
		MotorPins:       [4]machine.Pin{machine.GP2, machine.GP3, machine.GP6, machine.GP13},
		Optofork:        machine.GP28,
		Piezo:           machine.GP27,
		CalibrateButton: machine.GP9,
		DispenseButton:  machine.GP7,
		LEDs:            []machine.Pin{machine.GP20, machine.GP21, machine.GP22},
		EEPROM: device.EEPROMConfig{
			Bus:       machine.I2C0,
			SDA:       machine.GP16,
			SCL:       machine.GP17,
			Frequency: 100 * machine.KHz,
			Address:   0x50,
			PageSize:  64,
			Size:      32 * 1024,
		},
		LoRa: device.UARTConfig{
			UART:     machine.UART1,
			TX:       machine.GP4,
			RX:       machine.GP5,
			BaudRate: 9600,
		},
	}
	cfg := pilldispenser.DefaultConfig()

	level := &slog.LevelVar{}
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	eeprom, err := device.NewEEPROM(deviceCfg.EEPROM)
	if err != nil {
		panic(err)
	}
	store := state.NewStore(eeprom, state.StoreConfig{WriteSettle: cfg.WriteSettle, Logger: logger})
	initial, reset, err := store.LoadOrReset()
	if err != nil {
		logger.Error("unable to persist default state", "error", err)
	}
	keeper := state.NewKeeper(store, initial, logger)

	stepper := motor.NewStepper(device.NewCoils(deviceCfg.MotorPins), nil, cfg.StepDelay)
	engine := motor.New(stepper, device.NewOptofork(deviceCfg.Optofork), keeper, cfg, logger)

	acc := &piezo.Accumulator{}
	piezoSensor, err := device.NewPiezo(deviceCfg.Piezo, acc)
	if err != nil {
		panic(err)
	}
	detector := piezo.NewDetector(acc, piezoSensor, nil, cfg, logger)

	uart, err := device.NewUART(deviceCfg.LoRa)
	if err != nil {
		panic(err)
	}
	loraCfg := notify.DefaultLoRaWANConfig()
	loraCfg.AppKey = appKey
	lora := notify.NewAsync(notify.NewLoRaWAN(uart, nil, loraCfg, logger), 8, logger)

	leds := make([]dispenser.LED, len(deviceCfg.LEDs))
	for i, pin := range deviceCfg.LEDs {
		leds[i] = device.NewLED(pin)
	}

	controller := dispenser.New(dispenser.Deps{
		Keeper:    keeper,
		Motor:     engine,
		Detector:  detector,
		Notifier:  notify.Multi(notify.NewConsole(machine.Serial), notify.NewLog(logger), lora),
		Indicator: dispenser.NewLights(nil, leds...),
		Config:    cfg,
		Logger:    logger,
	})

	go device.PollButtons(
		device.NewButton(deviceCfg.CalibrateButton, controller.RequestCalibration),
		device.NewButton(deviceCfg.DispenseButton, controller.RequestDispense),
	)
	go commands.Run(&commands.Console{
		Dispenser: controller,
		Input:     machine.Serial,
		Level:     level,
	}, machine.Serial)

	// give the USB console a moment to connect before boot recovery starts moving the wheel
	time.Sleep(2 * time.Second)
	controller.Run(context.Background(), reset)
}
