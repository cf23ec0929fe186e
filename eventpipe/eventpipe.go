package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"gosrix/buttons"
	"gosrix/srix"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/gosrix-events")
}

// Kind is the command verb.
type Kind string

const (
	KindRead    Kind = "read"
	KindWrite   Kind = "write"
	KindSet     Kind = "set"
	KindDump    Kind = "dump"
	KindRestore Kind = "restore"
	KindButton  Kind = "button"
)

// Command is one parsed pipe line.
type Command struct {
	Kind   Kind
	Block  int
	Value  uint32
	Path   string
	Button buttons.Button
}

// Handler is called for each command received on the pipe.
type Handler func(Command)

// EventPipe listens for commands on a named pipe.
type EventPipe struct {
	path    string
	handler Handler
	log     *zap.Logger
}

// New creates the named pipe. Returns nil if path is empty.
func New(cfg Config, handler Handler, log *zap.Logger) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	os.Remove(cfg.Path)
	if err := unix.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	return &EventPipe{path: cfg.Path, handler: handler, log: log}, nil
}

// Run reads commands until ctx is cancelled. Each writer session is read to
// EOF, then the pipe is reopened for the next writer.
func (ep *EventPipe) Run(ctx context.Context) error {
	ep.log.Info("Event pipe listening", zap.String("path", ep.path))

	stopped := make(chan struct{})
	defer close(stopped)
	context.AfterFunc(ctx, func() {
		// Repeat until Run notices; the reader may be between two opens.
		for {
			ep.unblock()
			select {
			case <-stopped:
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	})

	for ctx.Err() == nil {
		// Blocks until a writer connects.
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("open event pipe: %w", err)
		}
		ep.serve(ctx, file)
		file.Close()
	}
	return nil
}

func (ep *EventPipe) serve(ctx context.Context, file *os.File) {
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cmd, err := parseLine(line)
		if err != nil {
			ep.log.Warn("Event pipe parse error", zap.String("line", line), zap.Error(err))
			continue
		}
		ep.log.Debug("Event pipe command", zap.String("kind", string(cmd.Kind)))
		if ep.handler != nil {
			ep.handler(cmd)
		}
	}
}

// unblock releases a reader waiting in open by briefly connecting a writer.
func (ep *EventPipe) unblock() {
	f, err := os.OpenFile(ep.path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err == nil {
		f.Close()
	}
}

// Close removes the pipe.
func (ep *EventPipe) Close() error {
	return os.Remove(ep.path)
}

// parseLine parses a command line.
// Command format:
//
//	read                  - Read the tag in the field
//	write                 - Write modified blocks
//	set <block> <hex>     - Modify one block, e.g. "set 20 AABBCCDD"
//	dump <path>           - Save the loaded image
//	restore <path>        - Import an image and write it
//	button <name>         - Simulate a button (up, down, left, right, select, back)
func parseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	kind := Kind(strings.ToLower(parts[0]))
	switch kind {
	case KindRead, KindWrite:
		return Command{Kind: kind}, nil

	case KindSet:
		if len(parts) < 3 {
			return Command{}, fmt.Errorf("set requires <block> <hex>")
		}
		block, err := strconv.Atoi(parts[1])
		if err != nil || block < 0 || block >= srix.Blocks {
			return Command{}, fmt.Errorf("invalid block: %s", parts[1])
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(parts[2]), "0x"), 16, 32)
		if err != nil {
			return Command{}, fmt.Errorf("invalid value: %s", parts[2])
		}
		return Command{Kind: kind, Block: block, Value: uint32(v)}, nil

	case KindDump, KindRestore:
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("%s requires a path", kind)
		}
		return Command{Kind: kind, Path: parts[1]}, nil

	case KindButton:
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("button requires a name")
		}
		b, err := buttons.Parse(parts[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Button: b}, nil

	default:
		return Command{}, fmt.Errorf("unknown command: %s", parts[0])
	}
}
