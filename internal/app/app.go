// Package app implements the main NES emulator application with GUI support.
package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"nescore/internal/apu"
	"nescore/internal/bus"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/graphics"
	"nescore/internal/input"
	"nescore/internal/ppu"
)

// Application represents the main NES emulator application
type Application struct {
	// Core emulation components
	bus  *bus.Bus
	cpu  *cpu.CPU
	ppu  *ppu.PPU
	apu  *apu.APU
	pad1 *input.Controller
	pad2 *input.Controller

	// Graphics backend
	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor

	// Application state
	config   *Config
	emulator *Emulator

	// Control flags
	running     bool
	paused      bool
	initialized bool
	headless    bool

	// Performance tracking
	frameCount  uint64
	startTime   time.Time
	lastFPSTime time.Time
	frameAtFPS  uint64
	currentFPS  float64
	lastFPSLog  time.Time

	// ROM management
	romPath   string
	cartridge *cartridge.Cartridge

	// ESC double-tap quit confirmation
	lastESCTime time.Time

	controller1Buttons [8]bool
	controller2Buttons [8]bool
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates a new NES emulator application
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates a new NES emulator application with optional headless mode
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:      NewConfig(),
		headless:    headless,
		startTime:   time.Now(),
		lastFPSTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			log.Printf("[app] could not load config from %s, using defaults: %v", configPath, err)
		}
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, &ApplicationError{Component: "initialization", Operation: "component setup", Err: err}
	}

	return app, nil
}

// regionFromConfig maps the config's region string onto ppu.Region,
// defaulting to NTSC for anything unrecognized.
func regionFromConfig(region string) ppu.Region {
	switch region {
	case "PAL":
		return ppu.PAL
	case "Dendy":
		return ppu.Dendy
	default:
		return ppu.NTSC
	}
}

// initializeComponents wires the console (bus, CPU, PPU, APU,
// controllers) and the graphics backend. The cartridge is attached
// separately by LoadROM, since a console can exist without one.
func (app *Application) initializeComponents(headless bool) error {
	region := regionFromConfig(app.config.Emulation.Region)

	app.bus = bus.New(region)
	app.ppu = ppu.New(region)
	app.apu = apu.New()
	app.pad1 = input.New()
	app.pad2 = input.New()

	app.bus.SetPPU(app.ppu)
	app.bus.SetAPU(app.apu)
	app.bus.SetControllers(app.pad1, app.pad2)

	app.cpu = cpu.New(app.bus)
	app.bus.SetCPU(app.cpu)
	app.ppu.SetNMICallback(func(level bool) { app.cpu.SetNMILine(level) })
	app.apu.SetDMCReader(app.bus)

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return fmt.Errorf("failed to initialize graphics backend: %v", err)
	}

	app.emulator = NewEmulator(app.bus, app.cpu, app.config)

	app.initialized = true
	return nil
}

// initializeGraphicsBackend initializes the graphics backend based on configuration
func (app *Application) initializeGraphicsBackend(headless bool) error {
	var backendType graphics.BackendType
	if headless {
		backendType = graphics.BackendHeadless
	} else {
		switch app.config.Video.Backend {
		case "headless":
			backendType = graphics.BackendHeadless
		default:
			backendType = graphics.BackendEbitengine
		}
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %v", err)
	}

	graphicsConfig := graphics.Config{
		WindowTitle:  "nescore",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		AspectRatio:  app.config.Video.AspectRatio,
		Headless:     headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendHeadless {
			log.Printf("[app] %s backend failed (%v), falling back to headless mode", backendType, err)
			app.graphicsBackend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return fmt.Errorf("failed to create fallback headless backend: %v", err)
			}
			graphicsConfig.Headless = true
			if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
				return fmt.Errorf("failed to initialize fallback headless backend: %v", err)
			}
		} else {
			return fmt.Errorf("failed to initialize graphics backend: %v", err)
		}
	}

	if !headless && !app.graphicsBackend.IsHeadless() {
		app.window, err = app.graphicsBackend.CreateWindow(
			graphicsConfig.WindowTitle, graphicsConfig.WindowWidth, graphicsConfig.WindowHeight)
		if err != nil {
			return fmt.Errorf("failed to create window: %v", err)
		}
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness, app.config.Video.Contrast, app.config.Video.Saturation)

	return nil
}

// LoadROM loads a ROM file into the emulator. If the cartridge carries
// battery-backed RAM, a matching save file in the configured save
// data directory is loaded into it before the reset sequence runs.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	if err := app.saveBatteryRAM(); err != nil {
		log.Printf("[app] failed to save battery RAM for %s: %v", app.romPath, err)
	}

	app.cartridge = cart
	app.romPath = romPath
	app.bus.SetCartridge(cart)

	if cart.HasBattery() {
		if data, err := os.ReadFile(app.batteryRAMPath(romPath)); err == nil {
			if err := cart.LoadBatteryRAM(data); err != nil {
				log.Printf("[app] discarding incompatible battery save for %s: %v", romPath, err)
			}
		}
	}

	app.emulator.Start()

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("nescore - %s", filepath.Base(romPath)))
	}

	return nil
}

// batteryRAMPath returns where a ROM's battery-backed save RAM lives,
// one file per ROM under the configured save data directory.
func (app *Application) batteryRAMPath(romPath string) string {
	name := filepath.Base(romPath) + ".sav"
	return filepath.Join(app.config.Paths.SaveData, name)
}

// saveBatteryRAM persists the cartridge's battery-backed RAM, if any, to
// its save file. Called on Cleanup and whenever a new ROM replaces the
// current one.
func (app *Application) saveBatteryRAM() error {
	if app.cartridge == nil || !app.cartridge.HasBattery() {
		return nil
	}
	if err := os.MkdirAll(app.config.Paths.SaveData, 0755); err != nil {
		return err
	}
	return os.WriteFile(app.batteryRAMPath(app.romPath), app.cartridge.BatteryRAM(), 0644)
}

// Run starts the main application loop
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	app.running = true
	app.startTime = time.Now()
	app.lastFPSTime = time.Now()

	if app.window != nil {
		if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
			ebitengineWindow.SetEmulatorUpdateFunc(func() error {
				if err := app.processInput(); err != nil && app.config.Debug.EnableLogging {
					log.Printf("[app] input processing error: %v", err)
				}
				if err := app.updateEmulator(); err != nil {
					return err
				}
				if err := app.render(); err != nil {
					return err
				}
				app.trackFPS()
				if app.window.ShouldClose() {
					app.Stop()
				}
				return nil
			})
			return ebitengineWindow.Run()
		}
	}

	for app.running {
		if err := app.processInput(); err != nil && app.config.Debug.EnableLogging {
			log.Printf("[app] input processing error: %v", err)
		}
		if err := app.updateEmulator(); err != nil && app.config.Debug.EnableLogging {
			log.Printf("[app] emulator update error: %v", err)
		}
		if err := app.render(); err != nil && app.config.Debug.EnableLogging {
			log.Printf("[app] render error: %v", err)
		}
		app.trackFPS()

		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
		}

		time.Sleep(16 * time.Millisecond)
	}

	return nil
}

func (app *Application) updateEmulator() error {
	if app.paused || app.cartridge == nil {
		return nil
	}
	return app.emulator.Update()
}

// processInput drains window events, routes them to the two NES
// controllers, and intercepts the handful of application-level keys
// (quit confirmation) before they reach a game.
func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}

	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return nil

		case graphics.InputEventTypeKey:
			app.handleSpecialInput(event)

		case graphics.InputEventTypeButton:
			app.applyButtonEvent(event)
		}
	}

	app.pad1.SetButtons(app.controller1Buttons)
	app.pad2.SetButtons(app.controller2Buttons)
	return nil
}

func (app *Application) applyButtonEvent(event graphics.InputEvent) {
	if idx, ok := player2ButtonIndex(event.Button); ok {
		app.controller2Buttons[idx] = event.Pressed
		return
	}
	if idx, ok := player1ButtonIndex(event.Button); ok {
		app.controller1Buttons[idx] = event.Pressed
	}
}

// button order matches the NES controller shift register: A, B,
// Select, Start, Up, Down, Left, Right.
func player1ButtonIndex(b graphics.Button) (int, bool) {
	switch b {
	case graphics.ButtonA:
		return 0, true
	case graphics.ButtonB:
		return 1, true
	case graphics.ButtonSelect:
		return 2, true
	case graphics.ButtonStart:
		return 3, true
	case graphics.ButtonUp:
		return 4, true
	case graphics.ButtonDown:
		return 5, true
	case graphics.ButtonLeft:
		return 6, true
	case graphics.ButtonRight:
		return 7, true
	default:
		return 0, false
	}
}

func player2ButtonIndex(b graphics.Button) (int, bool) {
	switch b {
	case graphics.Button2A:
		return 0, true
	case graphics.Button2B:
		return 1, true
	case graphics.Button2Select:
		return 2, true
	case graphics.Button2Start:
		return 3, true
	case graphics.Button2Up:
		return 4, true
	case graphics.Button2Down:
		return 5, true
	case graphics.Button2Left:
		return 6, true
	case graphics.Button2Right:
		return 7, true
	default:
		return 0, false
	}
}

// handleSpecialInput intercepts the escape-to-quit sequence. Every
// other key passes straight through to applyButtonEvent via the
// backend's own button translation.
func (app *Application) handleSpecialInput(event graphics.InputEvent) {
	if !event.Pressed || event.Key != graphics.KeyEscape {
		return
	}

	now := time.Now()
	if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
		log.Println("[app] quit confirmed")
		app.Stop()
		return
	}
	log.Println("[app] press escape again within 3s to quit")
	app.lastESCTime = now
}

// render presents the emulator's current frame buffer through the
// active window, applying any configured video processing first.
func (app *Application) render() error {
	if app.window == nil {
		return nil
	}

	if app.cartridge != nil {
		frame := *app.bus.FrameBuffer()
		if app.videoProcessor != nil {
			processed := app.videoProcessor.ProcessFrame(frame[:])
			copy(frame[:], processed)
		}
		if err := app.window.RenderFrame(frame); err != nil {
			return fmt.Errorf("failed to render frame: %v", err)
		}
	}

	app.window.SwapBuffers()
	return nil
}

// trackFPS updates the rolling FPS counter and logs it once a second
// when debug logging is enabled.
func (app *Application) trackFPS() {
	app.frameCount++
	now := time.Now()
	elapsed := now.Sub(app.lastFPSTime)
	if elapsed < time.Second {
		return
	}

	app.currentFPS = float64(app.frameCount-app.frameAtFPS) / elapsed.Seconds()
	app.frameAtFPS = app.frameCount
	app.lastFPSTime = now

	if app.config.Debug.EnableLogging && now.Sub(app.lastFPSLog) >= 5*time.Second {
		log.Printf("[app] %.1f fps (frame %d)", app.currentFPS, app.frameCount)
		app.lastFPSLog = now
	}
}

// Stop stops the application
func (app *Application) Stop() { app.running = false }

// Pause pauses the emulator
func (app *Application) Pause() { app.paused = true }

// Resume resumes the emulator
func (app *Application) Resume() { app.paused = false }

// TogglePause toggles pause state
func (app *Application) TogglePause() { app.paused = !app.paused }

// Reset performs a console reset without reloading the cartridge
func (app *Application) Reset() {
	if app.emulator != nil {
		app.emulator.Reset()
	}
}

// IsRunning returns whether the application is running
func (app *Application) IsRunning() bool { return app.running }

// IsPaused returns whether the emulator is paused
func (app *Application) IsPaused() bool { return app.paused }

// GetFPS returns the current FPS
func (app *Application) GetFPS() float64 { return app.currentFPS }

// GetFrameCount returns the total frame count
func (app *Application) GetFrameCount() uint64 { return app.frameCount }

// GetUptime returns the application uptime
func (app *Application) GetUptime() time.Duration { return time.Since(app.startTime) }

// GetROMPath returns the currently loaded ROM path
func (app *Application) GetROMPath() string { return app.romPath }

// GetConfig returns the application configuration
func (app *Application) GetConfig() *Config { return app.config }

// GetBus returns the bus for direct access (useful for testing and advanced control)
func (app *Application) GetBus() *bus.Bus { return app.bus }

// ApplyDebugSettings re-applies the configured log level; emulation
// components have no separate debug hooks of their own.
func (app *Application) ApplyDebugSettings() {
	if app.config == nil {
		return
	}
	if app.config.Debug.EnableLogging {
		log.Printf("[app] debug logging enabled (level=%s)", app.config.Debug.LogLevel)
	}
}

// Cleanup releases all resources and shuts down the application,
// persisting any battery-backed cartridge RAM first.
func (app *Application) Cleanup() error {
	var lastErr error

	if err := app.saveBatteryRAM(); err != nil {
		lastErr = err
		log.Printf("[app] battery save error: %v", err)
	}

	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[app] emulator cleanup error: %v", err)
		}
	}

	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[app] window cleanup error: %v", err)
		}
	}

	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[app] graphics backend cleanup error: %v", err)
		}
	}

	app.initialized = false
	return lastErr
}
