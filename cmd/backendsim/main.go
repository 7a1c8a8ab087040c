package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/grid-telemetry/dnp3-tester/internal/backendsim"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "backendsim.toml", "path to the simulator TOML config")
	flag.Parse()

	cfg, err := backendsim.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, backendsim.SessionHeader},
	}))

	backendsim.NewHandler(cfg).Register(e)

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("║        DNP3 Protocol Backend Simulator            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-37s║\n", Version)
	fmt.Printf("║  Build Time: %-37s║\n", BuildTime)
	fmt.Printf("║  Listen:     %-37s║\n", cfg.ListenAddr)
	fmt.Printf("║  Sim tick:   %-37s║\n", fmt.Sprintf("%ds", cfg.SimIntervalSeconds))
	fmt.Printf("╚═══════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}
