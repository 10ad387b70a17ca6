// Command tofnode runs the distance sensor node on a Linux board: two
// VL53L1X sensors on I2C, the register table in a file, and the register
// bus on a serial line, MQTT and a WebSocket console.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"

	"tofnode/bus"
	"tofnode/config"
	"tofnode/core"
	"tofnode/host/board"
	"tofnode/host/eeprom"
	"tofnode/host/serial"
	"tofnode/ranger"
	"tofnode/telemetry"
	"tofnode/web"
)

var configPath = flag.String("config", "tofnode.yaml", "Configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("tofnode: %v", err)
	}
	log.Println("tofnode: stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --------------------
	// Hardware
	// --------------------

	if err := board.Init(); err != nil {
		return err
	}
	i2cBus, err := board.OpenI2C(cfg.I2C.Bus)
	if err != nil {
		return err
	}
	defer i2cBus.Close()

	mainSensor, err := newSensor(i2cBus, cfg.Sensors.Main)
	if err != nil {
		return err
	}
	auxSensor, err := newSensor(i2cBus, cfg.Sensors.Aux)
	if err != nil {
		return err
	}
	// Both sensors wake at the default address; hold them in reset until
	// their channel starts.
	mainSensor.Standby()
	auxSensor.Standby()

	// --------------------
	// Register table + channels
	// --------------------

	store, err := eeprom.Open(cfg.Node.EEPROMPath, core.PersistentStoreSize)
	if err != nil {
		return err
	}
	defer store.Close()

	regs := core.NewRegisterTable(store)
	if err := regs.Init(); err != nil {
		return err
	}
	log.Printf("tofnode: id=%d baud=%d", regs.Byte(core.RegID), core.BaudFromCode(regs.Byte(core.RegBaudrate)))

	channels := core.NewChannelSet(regs, mainSensor, auxSensor)
	if err := channels.Start(); err != nil {
		// Degraded, not fatal: the wiring register tells the controller.
		log.Printf("tofnode: %v", err)
	}

	supply := core.NewSupplyMonitor(regs, core.FixedVoltage(cfg.Supply.FixedMV), cfg.Supply.MinMV)

	// --------------------
	// Serial link (optional)
	// --------------------

	var (
		link bus.Link
		port *serial.NativePort
	)
	if cfg.Serial.Device != "" {
		port, err = serial.Open(&serial.Config{
			Device:      cfg.Serial.Device,
			Baud:        int(core.BaudFromCode(regs.Byte(core.RegBaudrate))),
			ReadTimeout: cfg.Serial.ReadTimeoutMs,
		})
		if err != nil {
			return err
		}
		defer port.Close()
		link = port
	}

	handler := bus.NewHandler(regs, channels, link, supply)

	// --------------------
	// Scheduler
	// --------------------

	clock := core.NewSystemClock()
	var sched core.Scheduler
	sched.ScheduleTimer(core.NewPeriodicTimer(0, uint32(cfg.Node.TickMs), channels.Tick))
	sched.ScheduleTimer(core.NewPeriodicTimer(0, uint32(cfg.Supply.IntervalMs), func(uint32) {
		supply.Sample()
	}))

	srv := bus.NewServer(handler, &sched, clock)
	capture := func() telemetry.State {
		return telemetry.Capture(regs, channels, handler.Status(), clock.Millis())
	}
	currentID := func() (uint8, error) {
		var id uint8
		err := srv.Exec(ctx, func() { id = handler.ID() })
		return id, err
	}

	// Resolve everything that can fail before any goroutine starts.
	type readyLine struct {
		pin gpio.PinIn
		ch  *core.SensorChannel
	}
	var ready []readyLine
	for _, w := range []struct {
		name string
		ch   *core.SensorChannel
	}{
		{cfg.Sensors.Main.Ready, channels.Main()},
		{cfg.Sensors.Aux.Ready, channels.Aux()},
	} {
		if w.name == "" {
			continue
		}
		pin, err := board.PinByName(w.name)
		if err != nil {
			return err
		}
		ready = append(ready, readyLine{pin: pin, ch: w.ch})
	}

	var bridge *telemetry.Bridge
	if cfg.MQTT.Broker != "" {
		client, err := telemetry.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		bridge = telemetry.NewBridge(client, srv, capture, cfg.MQTT.Topic,
			time.Duration(cfg.MQTT.IntervalMs)*time.Millisecond)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx, time.Duration(cfg.Node.TickMs)*time.Millisecond)
	})

	for _, r := range ready {
		r := r
		g.Go(func() error { return board.WatchReady(ctx, r.pin, r.ch.MarkReady) })
	}

	if port != nil {
		g.Go(func() error { return serial.ServeLines(ctx, port, srv, currentID) })
		log.Printf("tofnode: serving %s at %d baud", cfg.Serial.Device, port.Baud())
	}

	if bridge != nil {
		g.Go(func() error { return bridge.Run(ctx) })
		log.Printf("tofnode: mqtt %s topic %s", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	if cfg.Web.Listen != "" {
		httpSrv := &http.Server{
			Addr:    cfg.Web.Listen,
			Handler: web.NewConsole(srv, capture, regs.Snapshot).Handler(),
		}
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
		log.Printf("tofnode: console on %s", cfg.Web.Listen)
	}

	err = g.Wait()
	channels.Stop()
	return err
}

func newSensor(i2cBus ranger.Bus, cfg config.SensorConfig) (*ranger.VL53L1X, error) {
	var xshut ranger.Shutdown
	if cfg.XShut != "" {
		pin, err := board.PinByName(cfg.XShut)
		if err != nil {
			return nil, err
		}
		xshut = board.NewXShut(pin)
	}
	return ranger.New(i2cBus, cfg.Address, xshut), nil
}
