// Package interactive provides the interactive register shell for
// regline-cli.
package interactive

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/regline-protocol/regline-go/pkg/access"
	"github.com/regline-protocol/regline-go/pkg/memmap"
	"github.com/regline-protocol/regline-go/pkg/protocol"
	"github.com/regline-protocol/regline-go/pkg/version"
)

// Shell is the readline-driven command loop over an access engine.
type Shell struct {
	engine  *access.Engine
	rl      *readline.Instance
	trace   bool
	timeout time.Duration
}

// New creates a shell over engine. Register names feed the completer
// for the read/write/dump commands.
func New(engine *access.Engine) (*Shell, error) {
	names := engine.Map().Names()
	sort.Strings(names)

	completer := readline.NewPrefixCompleter(
		readline.PcItem("read", pcRegisters(names)...),
		readline.PcItem("write", pcRegisters(names)...),
		readline.PcItem("dump", pcPrefixes(names)...),
		readline.PcItem("regs"),
		readline.PcItem("commit"),
		readline.PcItem("reset"),
		readline.PcItem("version"),
		readline.PcItem("special"),
		readline.PcItem("frag"),
		readline.PcItem("retry"),
		readline.PcItem("timeout"),
		readline.PcItem("trace"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "regline> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{engine: engine, rl: rl}, nil
}

func pcRegisters(names []string) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, n := range names {
		items = append(items, readline.PcItem(n))
	}
	return items
}

// pcPrefixes completes dump with the distinct dotted prefixes plus the
// root prefix.
func pcPrefixes(names []string) []readline.PrefixCompleterInterface {
	seen := map[string]bool{memmap.RootPrefix: true}
	for _, n := range names {
		if i := strings.Index(n, "."); i > 0 {
			seen[n[:i+1]] = true
		}
	}
	prefixes := make([]string, 0, len(seen))
	for p := range seen {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return pcRegisters(prefixes)
}

// Stdout returns a writer coordinated with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run executes the command loop until exit or EOF.
func (s *Shell) Run() {
	defer s.rl.Close()

	s.printHelp()
	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "bye")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "regs":
			s.cmdRegs()
		case "read", "r":
			s.cmdRead(args)
		case "write", "w":
			s.cmdWrite(args)
		case "dump", "d":
			s.cmdDump(args)
		case "commit":
			s.report(s.engine.Commit(s.opts()...))
		case "reset":
			s.report(s.engine.SoftReset(s.opts()...))
		case "version":
			s.cmdVersion()
		case "special":
			s.report(s.engine.Special(strings.Join(args, " "), s.opts()...))
		case "frag":
			s.cmdFrag(args)
		case "retry":
			s.cmdRetry(args)
		case "timeout":
			s.cmdTimeout(args)
		case "trace":
			s.trace = !s.trace
			fmt.Fprintf(s.rl.Stdout(), "command trace %v\n", s.trace)
		case "exit", "quit", "q":
			return
		default:
			fmt.Fprintf(s.rl.Stdout(), "unknown command %q, try help\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `Commands:
  read <reg> [offset] [size]   read a register (array slice via offset/size)
  write <reg> <value> [...]    write value(s); multiple values for arrays
  dump [prefix]                read a struct prefix ("." for the whole map)
  regs                         list registers
  commit                       apply pending configuration (ex)
  reset                        soft reset (mcu_rst)
  version                      query interface version
  special [args...]            send a raw device-specific command
  frag [n]                     show or set the fragment size (0 = unlimited)
  retry [n]                    show or set the default retry budget
  timeout [dur]                show or set the per-attempt timeout
  trace                        toggle issued-command trace output
  exit                         leave the shell
`)
}

func (s *Shell) opts() []access.Option {
	if s.timeout > 0 {
		return []access.Option{access.WithTimeout(s.timeout)}
	}
	return nil
}

func (s *Shell) cmdRegs() {
	w := s.rl.Stdout()
	for _, d := range s.engine.Map().All() {
		kind := "scalar"
		switch {
		case d.IsBitfield():
			kind = fmt.Sprintf("bits %d+%d", d.BitOffset, d.Bits)
		case d.IsArray():
			kind = fmt.Sprintf("array[%d]", d.ArraySize)
		}
		fmt.Fprintf(w, "  %-24s offset %-5d %-10s %s\n", d.Name, d.Offset, d.Type, kind)
	}
}

func (s *Shell) cmdRead(args []string) {
	if len(args) < 1 || len(args) > 3 {
		fmt.Fprintln(s.rl.Stdout(), "usage: read <reg> [offset] [size]")
		return
	}
	opts := s.opts()
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "bad offset %q\n", args[1])
			return
		}
		opts = append(opts, access.WithOffset(n))
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "bad size %q\n", args[2])
			return
		}
		opts = append(opts, access.WithSize(n))
	}
	s.report(s.engine.ReadRegister(args[0], opts...))
}

func (s *Shell) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "usage: write <reg> <value> [value...]")
		return
	}
	values := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "bad value %q\n", a)
			return
		}
		values = append(values, v)
	}
	opts := append(s.opts(), access.WithVerify())
	if len(values) == 1 {
		s.report(s.engine.WriteRegister(args[0], values[0], opts...))
		return
	}
	s.report(s.engine.WriteRegisterValues(args[0], values, opts...))
}

func (s *Shell) cmdDump(args []string) {
	prefix := memmap.RootPrefix
	if len(args) > 0 {
		prefix = args[0]
	}
	res, err := s.engine.ReadStruct(prefix, append(s.opts(), access.WithFieldNames())...)
	if err != nil {
		s.report(res, err)
		return
	}
	printDump(s.rl.Stdout(), res.Value)
	s.traceResult(res)
}

// printDump renders a struct read. The value is normally a field list,
// but a device that answers with a non-byte payload yields the literal
// passthrough instead; both print.
func printDump(w io.Writer, value any) {
	switch v := value.(type) {
	case []access.Field:
		for _, f := range v {
			fmt.Fprintf(w, "  %-24s %v\n", f.Name, f.Value)
		}
	default:
		fmt.Fprintf(w, "  %v\n", v)
	}
}

func (s *Shell) cmdVersion() {
	res, err := s.engine.Version(s.opts()...)
	if err != nil {
		s.report(res, err)
		return
	}
	w := s.rl.Stdout()
	raw, _ := res.Value.(string)
	v, perr := version.Parse(raw)
	if perr != nil {
		fmt.Fprintf(w, "device reports unparseable version %q\n", raw)
		return
	}
	fmt.Fprintf(w, "interface version %s", v)
	if !v.Compatible() {
		fmt.Fprintf(w, " (host validated against %s)", version.Supported)
	}
	fmt.Fprintln(w)
	s.traceResult(res)
}

func (s *Shell) cmdFrag(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.rl.Stdout(), "fragment size: %d\n", s.engine.FragmentSize())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		fmt.Fprintf(s.rl.Stdout(), "bad fragment size %q\n", args[0])
		return
	}
	s.engine.SetFragmentSize(n)
}

func (s *Shell) cmdRetry(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "usage: retry <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		fmt.Fprintf(s.rl.Stdout(), "bad retry count %q\n", args[0])
		return
	}
	s.engine.SetRetry(n)
}

func (s *Shell) cmdTimeout(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.rl.Stdout(), "timeout: %v\n", s.timeout)
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d < 0 {
		fmt.Fprintf(s.rl.Stdout(), "bad timeout %q\n", args[0])
		return
	}
	s.timeout = d
}

// report prints an operation result or its error, plus the command
// trace when enabled.
func (s *Shell) report(res *access.Result, err error) {
	w := s.rl.Stdout()
	if err != nil {
		var devErr *protocol.DeviceError
		switch {
		case errors.As(err, &devErr):
			fmt.Fprintf(w, "device error: %s\n", devErr)
		default:
			fmt.Fprintf(w, "error: %v\n", err)
		}
		s.traceResult(res)
		return
	}
	if res.Value != nil {
		fmt.Fprintf(w, "%v\n", res.Value)
	} else {
		fmt.Fprintln(w, "ok")
	}
	s.traceResult(res)
}

func (s *Shell) traceResult(res *access.Result) {
	if !s.trace || res == nil {
		return
	}
	w := s.rl.Stdout()
	for _, c := range res.Commands {
		fmt.Fprintf(w, "  > %s\n", c)
	}
	if res.Retries > 0 {
		fmt.Fprintf(w, "  retries: %d\n", res.Retries)
	}
}
