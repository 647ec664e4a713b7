package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/dispenser"
	"github.com/calvinmclean/pilldispenser/firmware/commands"
	"github.com/calvinmclean/pilldispenser/motor"
	"github.com/calvinmclean/pilldispenser/notify"
	"github.com/calvinmclean/pilldispenser/piezo"
	"github.com/calvinmclean/pilldispenser/sim"
	"github.com/calvinmclean/pilldispenser/state"
)

// SimulateOptions configures the simulated hardware
type SimulateOptions struct {
	EEPROM             string
	Speed              int
	StepsPerRevolution int
	Pills              int
	Jam                int
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the dispenser firmware against simulated hardware",
		Long: `Runs the dispense controller, motor engine, pill detector and state store against a
simulated wheel and vibration sensor. stdin and stdout act as the service console.

The EEPROM is an image file, so stopping the process mid-rotation and starting it
again exercises power-loss recovery.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDispenserConfig(rootOpts.ConfigPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			image, err := state.OpenFile(opts.EEPROM)
			if err != nil {
				return err
			}
			defer image.Close()

			out := &syncWriter{w: cmd.OutOrStdout()}
			logger := slog.Default()

			controller, reset, err := newSimulator(image, cfg, *opts, out, logger)
			if err != nil {
				return err
			}

			go commands.Run(&commands.Console{
				Dispenser: controller,
				Input:     bufio.NewReader(cmd.InOrStdin()),
				Level:     rootOpts.level,
			}, out)

			controller.Run(ctx, reset)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.EEPROM, "eeprom", "pill-dispenser.eeprom", "EEPROM image file")
	cmd.Flags().IntVar(&opts.Speed, "speed", 10, "how many times faster than real time the simulation runs")
	cmd.Flags().IntVar(&opts.StepsPerRevolution, "steps", 4096, "half-steps per wheel revolution")
	cmd.Flags().IntVar(&opts.Pills, "pills", -1, "pills loaded in the wheel, -1 refills forever")
	cmd.Flags().IntVar(&opts.Jam, "jam", 0, "number of drops that miss the sensor")

	return cmd
}

// newSimulator wires the dispenser to simulated hardware the way the firmware wires it to pins
func newSimulator(eeprom state.Medium, cfg pilldispenser.Config, opts SimulateOptions, out io.Writer, logger *slog.Logger) (*dispenser.Controller, bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Speed <= 0 {
		return nil, false, fmt.Errorf("speed must be positive, got %d", opts.Speed)
	}
	if opts.StepsPerRevolution < pilldispenser.Compartments*cfg.FineAlignDivisor {
		return nil, false, fmt.Errorf("steps per revolution too small: %d", opts.StepsPerRevolution)
	}

	clock := sim.NewClock()
	clock.Scale = opts.Speed

	markStart := opts.StepsPerRevolution / 2
	markWidth := opts.StepsPerRevolution / 50
	wheel := sim.NewWheel(opts.StepsPerRevolution, markStart, markWidth)
	sensor := sim.NewPiezo(clock, 5*time.Millisecond)

	hopper := sim.NewHopper(wheel, sensor, markStart+markWidth+opts.StepsPerRevolution/cfg.FineAlignDivisor)
	if opts.Pills < 0 {
		hopper.Endless()
	} else {
		hopper.Load(opts.Pills)
	}
	hopper.Jam(opts.Jam)

	store := state.NewStore(eeprom, state.StoreConfig{WriteSettle: cfg.WriteSettle, Clock: clock, Logger: logger})
	initial, reset, err := store.LoadOrReset()
	if err != nil {
		logger.Error("unable to persist default state", "error", err)
	}
	keeper := state.NewKeeper(store, initial, logger)

	engine := motor.New(motor.NewStepper(wheel, clock, cfg.StepDelay), wheel, keeper, cfg, logger)

	acc := &piezo.Accumulator{}
	sensor.Edge = acc.Edge
	detector := piezo.NewDetector(acc, sensor, clock, cfg, logger)

	leds := []dispenser.LED{&sim.LED{}, &sim.LED{}, &sim.LED{}}

	controller := dispenser.New(dispenser.Deps{
		Keeper:    keeper,
		Motor:     engine,
		Detector:  detector,
		Notifier:  notify.Multi(notify.NewConsole(out), notify.NewLog(logger)),
		Indicator: dispenser.NewLights(clock, leds...),
		Clock:     clock,
		Config:    cfg,
		Logger:    logger,
	})

	return controller, reset, nil
}

// loadDispenserConfig reads the "dispenser" section of the config file over the defaults
func loadDispenserConfig(path string) (pilldispenser.Config, error) {
	file := struct {
		Dispenser pilldispenser.Config `yaml:"dispenser"`
	}{Dispenser: pilldispenser.DefaultConfig()}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return pilldispenser.Config{}, fmt.Errorf("error reading config: %w", err)
		}
		err = yaml.Unmarshal(data, &file)
		if err != nil {
			return pilldispenser.Config{}, fmt.Errorf("error parsing config: %w", err)
		}
	}

	err := file.Dispenser.Validate()
	if err != nil {
		return pilldispenser.Config{}, err
	}
	return file.Dispenser, nil
}

// syncWriter keeps console lines from the command loop and the notifier from interleaving
type syncWriter struct {
	mtx sync.Mutex
	w   io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.w.Write(p)
}
