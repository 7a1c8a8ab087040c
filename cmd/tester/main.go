package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grid-telemetry/dnp3-tester/internal/backend"
	"github.com/grid-telemetry/dnp3-tester/internal/config"
	"github.com/grid-telemetry/dnp3-tester/internal/control"
	"github.com/grid-telemetry/dnp3-tester/internal/decode"
	"github.com/grid-telemetry/dnp3-tester/internal/models"
	"github.com/grid-telemetry/dnp3-tester/internal/session"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// app wires the backend client, the session controller and the live
// control attempt behind the interactive prompt.
type app struct {
	client     *backend.Client
	controller *session.Controller
	attempt    *control.Attempt
}

func main() {
	configPath := flag.String("config", "tester.yaml", "path to the tester YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	client := backend.New(cfg.Backend.URL, cfg.BackendTimeout())
	controller := session.NewController(client, session.Options{
		MasterInterval:     cfg.MasterInterval(),
		OutstationInterval: cfg.OutstationInterval(),
		LogRetention:       cfg.Streams.LogRetention,
		FrameRetention:     cfg.Streams.FrameRetention,
		LogSink:            printLogs,
		FrameSink:          printFrames,
	})
	if err := controller.SetRole(models.Role(cfg.DefaultRole)); err != nil {
		fmt.Printf("Failed to set default role: %v\n", err)
		os.Exit(1)
	}
	if table, err := config.LoadPointTable(cfg.PointTablePath); err != nil {
		fmt.Printf("Warning: point table not loaded: %v\n", err)
	} else if err := controller.LoadPointTable(table); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("║              DNP3 Protocol Tester                 ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-37s║\n", Version)
	fmt.Printf("║  Build Time: %-37s║\n", BuildTime)
	fmt.Printf("║  Backend:    %-37s║\n", cfg.Backend.URL)
	fmt.Printf("║  Session:    %-37s║\n", client.SessionID())
	fmt.Printf("╚═══════════════════════════════════════════════════╝\n")
	fmt.Printf("Type 'help' for commands.\n\n")

	a := &app{client: client, controller: controller}
	a.repl()
}

func (a *app) repl() {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s[%s]> ", a.controller.Role(), a.controller.State())
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			if a.controller.State() == session.StateRunning {
				a.disconnect()
			}
			return
		}
		if err := a.dispatch(fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (a *app) dispatch(cmd string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "help":
		printHelp()
		return nil
	case "status":
		return a.status()
	case "role":
		return a.setRole(args)
	case "addr":
		return a.setAddressing(args)
	case "table":
		return a.loadTable(args)
	case "connect":
		return a.connect(ctx, args)
	case "disconnect":
		return a.disconnect()
	case "read":
		return a.controller.ManualRead(ctx)
	case "poll":
		return a.setPolling(args)
	case "stream":
		return a.setStream(args)
	case "points":
		return a.showPoints(ctx)
	case "control":
		return a.openAttempt(args)
	case "execute":
		return a.execute(ctx, args)
	case "select":
		return a.selectPhase(ctx, args)
	case "operate":
		return a.operate(ctx)
	case "cancel":
		return a.cancelAttempt()
	case "serial":
		return a.listSerial(ctx)
	case "hostip":
		return a.hostIP(ctx)
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func printHelp() {
	fmt.Print(`commands:
  status                              session overview
  role master|outstation              switch role (idle only)
  addr <local> <remote>               station addresses (idle only)
  table <path>                        load a JSON point table (idle only)
  connect [tcp|tcp_server|udp|serial] [address] [port] [device] [baud]
  disconnect
  read                                one-shot integrity poll (master)
  poll on|off                         master periodic read-then-fetch
  stream logs|frames                  choose the live stream
  points                              current point values
  control direct|noack|sbo <type> <index>   open a control attempt
  execute <value>                     run a direct attempt
  select <value>                      SBO phase one
  operate                             SBO phase two
  cancel                              abandon an accepted select
  serial                              list backend serial ports
  hostip                              backend host address
  quit
`)
}

func (a *app) status() error {
	local, remote := a.controller.Addressing()
	fmt.Printf("state:     %s\n", a.controller.State())
	fmt.Printf("role:      %s\n", a.controller.Role())
	fmt.Printf("transport: %s\n", a.controller.Transport())
	fmt.Printf("address:   local=%d remote=%d\n", local, remote)
	fmt.Printf("polling:   %v\n", a.controller.PollingEnabled())
	fmt.Printf("stream:    %s\n", a.controller.ActiveStream())
	if a.attempt != nil {
		fmt.Printf("attempt:   phase=%d value=%g\n", a.attempt.Phase(), a.attempt.Value())
	}
	return nil
}

func (a *app) setRole(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: role master|outstation")
	}
	switch models.Role(args[0]) {
	case models.RoleMaster, models.RoleOutstation:
		return a.controller.SetRole(models.Role(args[0]))
	}
	return fmt.Errorf("invalid role %q", args[0])
}

func (a *app) setAddressing(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: addr <local> <remote>")
	}
	local, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid local address %q", args[0])
	}
	remote, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid remote address %q", args[1])
	}
	return a.controller.SetAddressing(uint16(local), uint16(remote))
}

func (a *app) loadTable(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: table <path>")
	}
	table, err := config.LoadPointTable(args[0])
	if err != nil {
		return err
	}
	if err := a.controller.LoadPointTable(table); err != nil {
		return err
	}
	fmt.Printf("loaded %d points\n", len(table.Points()))
	return nil
}

func (a *app) connect(ctx context.Context, args []string) error {
	params := session.ConnectParams{Port: 20000}
	if len(args) > 0 {
		params.Transport = models.TransportKind(args[0])
	}
	if len(args) > 1 {
		params.Address = args[1]
	}
	if len(args) > 2 {
		port, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q", args[2])
		}
		params.Port = uint16(port)
	}
	if len(args) > 3 {
		params.SerialName = args[3]
	}
	if len(args) > 4 {
		baud, err := strconv.ParseUint(args[4], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid baud rate %q", args[4])
		}
		params.BaudRate = uint32(baud)
	}
	if err := a.controller.Connect(ctx, params); err != nil {
		return err
	}
	fmt.Println("connected")
	return nil
}

func (a *app) disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.controller.Disconnect(ctx); err != nil {
		return err
	}
	fmt.Println("disconnected")
	return nil
}

func (a *app) setPolling(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: poll on|off")
	}
	a.controller.SetPolling(args[0] == "on")
	return nil
}

func (a *app) setStream(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stream logs|frames")
	}
	switch session.StreamKind(args[0]) {
	case session.StreamLogs, session.StreamFrames:
		a.controller.SetActiveStream(session.StreamKind(args[0]))
		return nil
	}
	return fmt.Errorf("invalid stream %q", args[0])
}

func (a *app) showPoints(ctx context.Context) error {
	data, err := a.client.FetchData(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-14s %-6s %-20s %-12s %s\n", "TYPE", "INDEX", "NAME", "VALUE", "QUALITY")
	for _, p := range data.Points {
		fmt.Printf("%-14s %-6d %-20s %-12g %s\n", p.Type, p.Index, p.Name, p.Value, p.Quality)
	}
	fmt.Printf("tx=%d rx=%d errors=%d\n", data.Stats.TX, data.Stats.RX, data.Stats.Errors)
	return nil
}

func (a *app) openAttempt(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: control direct|noack|sbo <type> <index>")
	}
	var mode control.Mode
	switch args[0] {
	case "direct":
		mode = control.ModeDirect
	case "noack":
		mode = control.ModeDirectNoAck
	case "sbo":
		mode = control.ModeSBO
	default:
		return fmt.Errorf("invalid discipline %q", args[0])
	}
	typ, err := models.ParsePointType(args[1])
	if err != nil {
		return err
	}
	if !typ.IsOutput() {
		return fmt.Errorf("%s points do not accept control", typ)
	}
	index, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid index %q", args[2])
	}
	a.attempt = control.NewAttempt(a.client, mode, typ, uint16(index))
	fmt.Printf("attempt open on %s[%d]\n", typ, index)
	return nil
}

func (a *app) execute(ctx context.Context, args []string) error {
	if a.attempt == nil {
		return fmt.Errorf("no open attempt, use 'control' first")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: execute <value>")
	}
	err := a.attempt.Execute(ctx, args[0])
	if a.attempt.Phase() == control.PhaseDone {
		a.attempt = nil
	}
	if err != nil {
		return err
	}
	fmt.Println("executed")
	return nil
}

func (a *app) selectPhase(ctx context.Context, args []string) error {
	if a.attempt == nil {
		return fmt.Errorf("no open attempt, use 'control' first")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: select <value>")
	}
	if err := a.attempt.Select(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("select accepted")
	return nil
}

func (a *app) operate(ctx context.Context) error {
	if a.attempt == nil {
		return fmt.Errorf("no open attempt, use 'control' first")
	}
	err := a.attempt.Operate(ctx)
	if err == nil {
		fmt.Println("operate executed")
		a.attempt = nil
	}
	return err
}

func (a *app) cancelAttempt() error {
	if a.attempt == nil {
		return fmt.Errorf("no open attempt")
	}
	a.attempt.Cancel()
	fmt.Println("select abandoned")
	return nil
}

func (a *app) listSerial(ctx context.Context) error {
	ports, err := a.client.SerialPorts(ctx)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func (a *app) hostIP(ctx context.Context) error {
	ip, err := a.client.HostIP(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ip)
	return nil
}

func printLogs(entries []models.LogEntry) {
	for _, e := range entries {
		ts := time.UnixMilli(e.Timestamp).Format("15:04:05.000")
		fmt.Printf("%s %-6s %s\n", ts, e.Direction, e.Message)
	}
}

func printFrames(frames []models.FrameCapture) {
	for _, f := range frames {
		ts := time.UnixMilli(f.Timestamp).Format("15:04:05.000")
		fmt.Printf("%s %-3s frame #%d (%d bytes)\n", ts, f.Direction, f.ID, len(f.Data))
		if decoded, ok := decode.Decode(f.Data); ok {
			for _, rec := range decoded.Records {
				fmt.Printf("  %-5s", rec.Layer)
				for k, v := range rec.Fields {
					fmt.Printf(" %s=%s", k, v)
				}
				fmt.Println()
			}
		}
		fmt.Print(decode.HexDump(f.Data))
	}
}
