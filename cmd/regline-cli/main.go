// Command regline-cli is an interactive shell for register-level access
// to a RegLine device.
//
// A memory map (CSV or YAML) describes the device's registers; the
// shell resolves symbolic names to byte-level wire commands over a
// serial port or a TCP endpoint (for the mock device).
//
// Usage:
//
//	regline-cli -map registers.csv [flags]
//
// Flags:
//
//	-map string       Memory map file, .csv or .yaml (required)
//	-port string      Serial port; omit to pick from a list
//	-baud int         Serial baud rate (default 115200)
//	-tcp string       Connect to host:port instead of a serial port
//	-config string    YAML configuration file
//	-frag int         Fragment size in bytes, 0 = unlimited
//	-retry int        Default retry budget (default 1)
//	-timeout duration Per-attempt reply timeout (default 500ms)
//	-log-file string  Write a CBOR trace of all stack events
//	-verbose          Echo stack events to the console
//	-list-ports       List serial ports and exit
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/regline-protocol/regline-go/cmd/regline-cli/interactive"
	"github.com/regline-protocol/regline-go/pkg/access"
	"github.com/regline-protocol/regline-go/pkg/log"
	"github.com/regline-protocol/regline-go/pkg/memmap"
	"github.com/regline-protocol/regline-go/pkg/protocol"
	"github.com/regline-protocol/regline-go/pkg/transport"
)

// Config holds the CLI configuration, from flags or a YAML file.
// Flags win over file values.
type Config struct {
	MapFile  string        `yaml:"map"`
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud"`
	TCP      string        `yaml:"tcp"`
	FragSize int           `yaml:"frag"`
	Retry    int           `yaml:"retry"`
	Timeout  time.Duration `yaml:"timeout"`
	LogFile  string        `yaml:"log_file"`
	Verbose  bool          `yaml:"verbose"`
}

func main() {
	var (
		cfg        Config
		configFile string
		listPorts  bool
	)
	flag.StringVar(&cfg.MapFile, "map", "", "Memory map file (.csv or .yaml)")
	flag.StringVar(&cfg.Port, "port", "", "Serial port; omit to pick from a list")
	flag.IntVar(&cfg.BaudRate, "baud", transport.DefaultBaudRate, "Serial baud rate")
	flag.StringVar(&cfg.TCP, "tcp", "", "Connect to host:port instead of a serial port")
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.IntVar(&cfg.FragSize, "frag", 0, "Fragment size in bytes, 0 = unlimited")
	flag.IntVar(&cfg.Retry, "retry", access.DefaultRetry, "Default retry budget")
	flag.DurationVar(&cfg.Timeout, "timeout", transport.DefaultReadTimeout, "Per-attempt reply timeout")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Write a CBOR trace of all stack events")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Echo stack events to the console")
	flag.BoolVar(&listPorts, "list-ports", false, "List serial ports and exit")
	flag.Parse()

	if listPorts {
		ports, err := transport.ListPorts()
		if err != nil {
			fatalf("%v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if configFile != "" {
		if err := loadConfig(configFile, &cfg); err != nil {
			fatalf("config: %v", err)
		}
	}
	if cfg.MapFile == "" {
		fatalf("a memory map is required (-map registers.csv)")
	}

	m, err := memmap.LoadFile(cfg.MapFile)
	if err != nil {
		fatalf("memory map: %v", err)
	}
	fmt.Printf("loaded %d registers from %s\n", m.Len(), cfg.MapFile)

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		fatalf("log: %v", err)
	}
	defer closeLog()

	t, err := openTransport(cfg, logger)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer t.Close()
	fmt.Printf("connected to %s\n", t.Port())

	engine := access.New(m, protocol.NewCodec(t, logger), access.Config{
		FragmentSize: cfg.FragSize,
		Retry:        cfg.Retry,
		Timeout:      cfg.Timeout,
		Logger:       logger,
	})

	shell, err := interactive.New(engine)
	if err != nil {
		fatalf("%v", err)
	}
	shell.Run()
}

// loadConfig fills zero-valued fields of cfg from a YAML file, so flags
// that were set explicitly keep their values.
func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.MapFile == "" {
		cfg.MapFile = file.MapFile
	}
	if cfg.Port == "" {
		cfg.Port = file.Port
	}
	if cfg.BaudRate == transport.DefaultBaudRate && file.BaudRate != 0 {
		cfg.BaudRate = file.BaudRate
	}
	if cfg.TCP == "" {
		cfg.TCP = file.TCP
	}
	if cfg.FragSize == 0 {
		cfg.FragSize = file.FragSize
	}
	if cfg.Retry == access.DefaultRetry && file.Retry != 0 {
		cfg.Retry = file.Retry
	}
	if cfg.Timeout == transport.DefaultReadTimeout && file.Timeout != 0 {
		cfg.Timeout = file.Timeout
	}
	if cfg.LogFile == "" {
		cfg.LogFile = file.LogFile
	}
	if file.Verbose {
		cfg.Verbose = true
	}
	return nil
}

// buildLogger assembles the event logger from the trace file and
// verbose settings.
func buildLogger(cfg Config) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeLog := func() {}

	if cfg.LogFile != "" {
		fl, err := log.NewFileLogger(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeLog = func() { fl.Close() }
	}
	if cfg.Verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, log.NewSlogAdapter(slog.New(handler)))
	}

	switch len(loggers) {
	case 0:
		return nil, closeLog, nil
	case 1:
		return loggers[0], closeLog, nil
	default:
		return log.NewMultiLogger(loggers...), closeLog, nil
	}
}

// openTransport connects per the configuration: TCP endpoint, named
// serial port, or the serial port wizard when neither is given.
func openTransport(cfg Config, logger log.Logger) (transport.Transport, error) {
	if cfg.TCP != "" {
		dial := func() (net.Conn, error) { return net.Dial("tcp", cfg.TCP) }
		conn, err := dial()
		if err != nil {
			return nil, err
		}
		return transport.New(transport.Config{
			Kind:               transport.KindConn,
			Conn:               conn,
			Dial:               dial,
			ReadTimeout:        cfg.Timeout,
			ReconnectOnTimeout: true,
			Logger:             logger,
		})
	}

	port := cfg.Port
	if port == "" {
		var err error
		port, err = portWizard()
		if err != nil {
			return nil, err
		}
	}
	return transport.New(transport.Config{
		Kind:               transport.KindSerial,
		PortName:           port,
		BaudRate:           cfg.BaudRate,
		ReadTimeout:        cfg.Timeout,
		ReconnectOnTimeout: true,
		FlushOnStartup:     true,
		Logger:             logger,
	})
}

// portWizard lists the available serial ports and asks the user to pick
// one. A single available port is selected without asking.
func portWizard() (string, error) {
	ports, err := transport.ListPorts()
	if err != nil {
		return "", err
	}
	switch len(ports) {
	case 0:
		return "", fmt.Errorf("no serial ports available")
	case 1:
		return ports[0], nil
	}

	fmt.Println("available ports:")
	for i, p := range ports {
		fmt.Printf("  %d: %s\n", i, p)
	}
	fmt.Print("port number: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 0 || n >= len(ports) {
		return "", fmt.Errorf("invalid port selection %q", strings.TrimSpace(line))
	}
	return ports[n], nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
