// Package main implements the nescore NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nescore/internal/app"
	"nescore/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file (optional for GUI mode)")
		configFile = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug mode")
		nogui      = flag.Bool("nogui", false, "Run without GUI (headless mode)")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVer {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	setupGracefulShutdown()

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, *nogui)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	if *nogui {
		application.GetConfig().Video.Backend = "headless"
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("application cleanup error: %v", err)
		}
	}()

	if *debug {
		application.GetConfig().UpdateDebug(true, true, true)
		application.ApplyDebugSettings()
	}

	if *romFile != "" {
		if err := application.LoadROM(*romFile); err != nil {
			log.Fatalf("failed to load ROM: %v", err)
		}
		if *debug {
			application.ApplyDebugSettings()
		}
	}

	if *nogui {
		if *romFile == "" {
			log.Fatal("ROM file required for headless mode")
		}
		if err := application.Run(); err != nil {
			log.Fatalf("headless run failed: %v", err)
		}
	} else {
		if err := application.Run(); err != nil {
			log.Fatalf("GUI mode failed: %v", err)
		}
	}

	fmt.Printf("frames rendered: %d, average FPS: %.1f\n", application.GetFrameCount(), application.GetFPS())
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("interrupt received, shutting down")
		os.Exit(0)
	}()
}

func printUsage() {
	fmt.Println("nescore - a cycle-accurate NES/Famicom emulator core")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nescore [options]                    start GUI mode without a ROM")
	fmt.Println("  nescore -rom <file> [options]        start with a ROM loaded")
	fmt.Println("  nescore -nogui -rom <file> [options] run headless")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (Player 1):")
	fmt.Println("  Arrow Keys / WASD - D-Pad")
	fmt.Println("  J / Z             - A")
	fmt.Println("  K / X             - B")
	fmt.Println("  Enter             - Start")
	fmt.Println("  Space             - Select")
	fmt.Println("  Escape (2x)       - Quit")
}
