// Package host is a minimal embedding of the core pipeline and VM: it
// compiles a chunk, wires the conventional "out" and "in" ambient channels
// to an io.Writer and io.Reader, and drives the VM's pending operations to
// completion. The front-end that would produce the AST from source text is
// an external collaborator; host starts from the AST.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/machine"
	"github.com/mna/mehl/lang/vm"
)

// Channel ids of the host-owned ambient channels, in the host's id space.
const (
	OutChannel machine.ChannelID = 0
	InChannel  machine.ChannelID = 1
)

// Config is the host's tunables, loaded from the process environment.
type Config struct {
	// Budget is the instruction budget handed to the VM on each scheduler
	// tick.
	Budget int `env:"MEHL_BUDGET" envDefault:"1000"`

	// MaxTicks bounds the number of scheduler ticks before the run is
	// abandoned; <= 0 means no limit.
	MaxTicks int `env:"MEHL_MAX_TICKS" envDefault:"100000"`

	// Seed seeds the scheduler's randomness source so runs are
	// reproducible; 0 leaves the scheduler non-deterministic.
	Seed int64 `env:"MEHL_SEED"`
}

// ConfigFromEnv loads the host configuration from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("host: loading config: %w", err)
	}
	return cfg, nil
}

// Host runs compiled programs against real I/O.
type Host struct {
	cfg    Config
	stdout io.Writer
	stdin  *bufio.Scanner
	logger *slog.Logger
}

// New returns a host writing "out" messages to stdout, answering "in"
// receives with lines read from stdin, and narrating channel activity to
// logger (a nil logger discards it).
func New(cfg Config, stdout io.Writer, stdin io.Reader, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{
		cfg:    cfg,
		stdout: stdout,
		stdin:  bufio.NewScanner(stdin),
		logger: logger,
	}
}

// Run compiles the chunk and drives the VM until it finishes, returning
// the program's final value. A program panic is returned as a *PanicError
// carrying the panic value.
func (h *Host) Run(chunk *ast.Chunk) (machine.Value, error) {
	prog, err := compiler.Compile(chunk)
	if err != nil {
		return nil, err
	}
	return h.RunProgram(prog)
}

// RunProgram drives an already compiled program until it finishes.
func (h *Host) RunProgram(prog *compiler.Program) (machine.Value, error) {
	v := vm.New(prog, map[string]machine.Value{
		"out": machine.SendEnd(OutChannel),
		"in":  machine.ReceiveEnd(InChannel),
	})
	if h.cfg.Seed != 0 {
		v.Rand = rand.New(rand.NewSource(h.cfg.Seed))
	}

	for tick := 0; h.cfg.MaxTicks <= 0 || tick < h.cfg.MaxTicks; tick++ {
		v.Run(h.cfg.Budget)
		switch st := v.Status().(type) {
		case vm.Done:
			h.logger.Info("program done", "value", st.Value.String())
			return st.Value, nil
		case vm.Panicked:
			h.logger.Info("program panicked", "value", st.Value.String())
			return nil, &PanicError{Value: st.Value}
		case vm.Waiting:
			if err := h.resolvePending(v); err != nil {
				return nil, err
			}
		}
	}
	return nil, errors.New("host: tick limit reached")
}

// resolvePending completes every operation the VM surfaced: sends on the
// out channel are written to stdout, receives on the in channel are
// answered with a line from stdin.
func (h *Host) resolvePending(v *vm.Vm) error {
	ops := v.PendingOperations()
	if len(ops) == 0 {
		return errors.New("host: VM is waiting with no pending operation")
	}
	for _, op := range ops {
		switch {
		case op.Kind == vm.OpSend && op.Channel == OutChannel:
			h.logger.Debug("resolving send", "channel", uint64(op.Channel), "message", op.Message.String())
			if err := h.write(op.Message); err != nil {
				return err
			}
			v.ResolveSend(op.Channel, op.Message)
		case op.Kind == vm.OpReceive && op.Channel == InChannel:
			line, err := h.read()
			if err != nil {
				return err
			}
			h.logger.Debug("resolving receive", "channel", uint64(op.Channel), "line", line)
			v.ResolveReceive(op.Channel, machine.String(line))
		default:
			return fmt.Errorf("host: unsupported pending %s on channel %d", op.Kind, op.Channel)
		}
	}
	return nil
}

func (h *Host) write(msg machine.Value) error {
	var err error
	if s, ok := msg.(machine.String); ok {
		_, err = fmt.Fprintln(h.stdout, string(s))
	} else {
		_, err = fmt.Fprintln(h.stdout, msg.String())
	}
	if err != nil {
		return fmt.Errorf("host: writing to out: %w", err)
	}
	return nil
}

func (h *Host) read() (string, error) {
	if !h.stdin.Scan() {
		if err := h.stdin.Err(); err != nil {
			return "", fmt.Errorf("host: reading from in: %w", err)
		}
		return "", errors.New("host: in channel exhausted")
	}
	return h.stdin.Text(), nil
}

// PanicError wraps a program panic so hosts can both handle it as an
// error and pattern-match the panic value.
type PanicError struct {
	Value machine.Value
}

func (e *PanicError) Error() string {
	return "program panicked: " + e.Value.String()
}
