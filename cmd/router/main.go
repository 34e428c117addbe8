// Command router runs the packet-processing core against real network
// interfaces, bridging raw Ethernet frames between them.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cngai/router/arp"
	"github.com/cngai/router/config"
	"github.com/cngai/router/forwarding"
	"github.com/cngai/router/iface"
	"github.com/cngai/router/internal"
	"github.com/cngai/router/routing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// hostIface is a named host network device the core treats as one of its
// interfaces: a TAP device (name prefixed "tap") or a raw AF_PACKET bridge
// to an existing NIC.
type hostIface struct {
	name string
	dev  interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
		HardwareAddress6() ([6]byte, error)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "router:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		flagIfaces     string
		flagRoutes     string
		flagIPMap      string
		flagConfigFile string
	)
	flag.StringVar(&flagIfaces, "ifaces", "", "comma-separated host interfaces to bridge (tap* names create TAP devices)")
	flag.StringVar(&flagRoutes, "routes", "", "routing table file (dest gw mask iface, dotted-quad, one per line)")
	flag.StringVar(&flagIPMap, "ipmap", "", "interface IP map file (iface dotted-quad, one per line)")
	flag.StringVar(&flagConfigFile, "config", "", "TOML config file")
	flag.Parse()

	var cfg *config.Config
	if flagConfigFile != "" {
		var err error
		cfg, err = config.Load(flagConfigFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = &config.Config{}
		cfg.Server.LogLevel = config.DefaultLogLevel
		cfg.Metrics.Listen = config.DefaultMetricsAddr
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))

	if flagIfaces == "" {
		return fmt.Errorf("at least one -ifaces entry is required")
	}
	hostIfaces, err := openInterfaces(strings.Split(flagIfaces, ","))
	if err != nil {
		return err
	}
	defer func() {
		for _, h := range hostIfaces {
			if c, ok := h.dev.(interface{ Close() error }); ok {
				c.Close()
			}
		}
	}()

	ipmapPath := flagIPMap
	if ipmapPath == "" {
		ipmapPath = cfg.Server.InterfaceMapFile
	}
	ipByName, err := loadInterfaceMap(ipmapPath)
	if err != nil {
		return fmt.Errorf("loading interface IP map: %w", err)
	}

	ifaces := make([]iface.Interface, 0, len(hostIfaces))
	writers := make(map[string]*hostIface, len(hostIfaces))
	for i := range hostIfaces {
		h := &hostIfaces[i]
		mac, err := h.dev.HardwareAddress6()
		if err != nil {
			return fmt.Errorf("reading hardware address for %s: %w", h.name, err)
		}
		ifaces = append(ifaces, iface.Interface{Name: h.name, MAC: mac, IP: ipByName[h.name]})
		writers[h.name] = h
	}
	var registry iface.Registry
	registry.Reset(ifaces)

	routesPath := flagRoutes
	if routesPath == "" {
		routesPath = cfg.Server.RoutingTableFile
	}
	routes, err := loadRoutingTable(routesPath)
	if err != nil {
		return fmt.Errorf("loading routing table: %w", err)
	}

	store := arp.NewStore(log)
	send := forwarding.SenderFunc(func(frame []byte, outIface string) error {
		h, ok := writers[outIface]
		if !ok {
			return fmt.Errorf("unknown egress interface %q", outIface)
		}
		_, err := h.dev.Write(frame)
		return err
	})
	engine := forwarding.New(&registry, routes, store, send, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.RunMaintenance(ctx)

	if cfg.Metrics.Enabled || cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, log)
	}

	for i := range hostIfaces {
		go readLoop(ctx, hostIfaces[i], engine, log)
	}

	<-ctx.Done()
	log.Info("router: shutting down")
	return nil
}

func readLoop(ctx context.Context, h hostIface, engine *forwarding.Engine, log *slog.Logger) {
	buf := make([]byte, 65536)
	for ctx.Err() == nil {
		n, err := h.dev.Read(buf)
		if err != nil {
			log.Error("router: read failed", slog.String("iface", h.name), slog.String("err", err.Error()))
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		engine.OnPacket(frame, h.name)
	}
}

func serveMetrics(addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("router: metrics server failed", slog.String("err", err.Error()))
	}
}

func openInterfaces(names []string) ([]hostIface, error) {
	out := make([]hostIface, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.HasPrefix(name, "tap") {
			tap, err := internal.NewTap(name, netip.Prefix{})
			if err != nil {
				return nil, fmt.Errorf("creating tap %s: %w", name, err)
			}
			out = append(out, hostIface{name: name, dev: tap})
			continue
		}
		bridge, err := internal.NewBridge(name)
		if err != nil {
			return nil, fmt.Errorf("bridging to %s: %w", name, err)
		}
		out = append(out, hostIface{name: name, dev: bridge})
	}
	return out, nil
}

// loadRoutingTable parses the routing table file format: whitespace
// separated "dest gw mask iface" lines, all addresses dotted-quad, mask a
// dotted-quad netmask.
func loadRoutingTable(path string) (*routing.Table, error) {
	var table routing.Table
	if path == "" {
		return &table, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("routing table line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		dest, err := parseDottedQuad(fields[0])
		if err != nil {
			return nil, fmt.Errorf("routing table line %d: dest: %w", lineNo, err)
		}
		gw, err := parseDottedQuad(fields[1])
		if err != nil {
			return nil, fmt.Errorf("routing table line %d: gateway: %w", lineNo, err)
		}
		mask, err := parseDottedQuad(fields[2])
		if err != nil {
			return nil, fmt.Errorf("routing table line %d: mask: %w", lineNo, err)
		}
		table.Add(routing.Entry{
			Dest:      dest,
			MaskLen:   maskLen(mask),
			Gateway:   gw,
			IfaceName: fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &table, nil
}

// loadInterfaceMap parses the interface IP map file format: whitespace
// separated "iface dotted-quad" lines.
func loadInterfaceMap(path string) (map[string][4]byte, error) {
	out := make(map[string][4]byte)
	if path == "" {
		return out, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("interface map line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		ip, err := parseDottedQuad(fields[1])
		if err != nil {
			return nil, fmt.Errorf("interface map line %d: %w", lineNo, err)
		}
		out[fields[0]] = ip
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDottedQuad(s string) ([4]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return [4]byte{}, fmt.Errorf("invalid IPv4 address %q", s)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return [4]byte{}, fmt.Errorf("not an IPv4 address %q", s)
	}
	return [4]byte(ip4), nil
}

func maskLen(mask [4]byte) int {
	n := 0
	for _, b := range mask {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "trace":
		return internal.LevelTrace
	default:
		return slog.LevelInfo
	}
}
