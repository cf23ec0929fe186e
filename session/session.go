// Package session serializes access to one tag memory and its transport and
// reports every state change to observers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gosrix/dump"
	"gosrix/srix"
)

// ErrNoChanges is returned by Write when no block is flagged.
var ErrNoChanges = errors.New("no modified blocks to write")

// EventType identifies what changed.
type EventType int

const (
	EventBusy     EventType = iota // a transport operation started
	EventRead                      // tag read into memory
	EventModified                  // a block was edited
	EventWritten                   // dirty blocks flushed
	EventImported                  // image imported from a dump
	EventFailed                    // an operation failed, Err is set
	EventLost                      // tag left the field, memory cleared
)

func (t EventType) String() string {
	switch t {
	case EventBusy:
		return "busy"
	case EventRead:
		return "read"
	case EventModified:
		return "modified"
	case EventWritten:
		return "written"
	case EventImported:
		return "imported"
	case EventFailed:
		return "failed"
	case EventLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after each operation.
type Event struct {
	Type     EventType
	Op       string
	Snapshot srix.Snapshot
	Written  int
	Err      error
}

// Observer consumes session events. Observe is called with the session lock
// released, in the goroutine that ran the operation.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// Session owns one srix.Memory and borrows one transport.
type Session struct {
	mu        sync.Mutex
	mem       *srix.Memory
	transport srix.Transport
	log       *zap.Logger

	obsMu     sync.Mutex
	observers []Observer
}

// New creates a session over t. The transport is not closed by the session.
func New(t srix.Transport, opts ...Option) *Session {
	s := &Session{
		mem:       srix.New(),
		transport: t,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddObserver registers an observer after construction.
func (s *Session) AddObserver(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Session) emit(e Event) {
	s.obsMu.Lock()
	obs := append([]Observer(nil), s.observers...)
	s.obsMu.Unlock()
	for _, o := range obs {
		o.Observe(e)
	}
}

// fail logs e.Err, emits e as EventFailed and returns e.Err.
func (s *Session) fail(e Event) error {
	e.Type = EventFailed
	s.log.Warn("Tag operation failed", zap.String("op", e.Op), zap.Error(e.Err))
	s.emit(e)
	return e.Err
}

// Read loads the UID and every block from the tag.
func (s *Session) Read(ctx context.Context) error {
	s.emit(Event{Type: EventBusy, Op: "read"})

	s.mu.Lock()
	err := s.mem.Init(ctx, s.transport)
	snap := s.mem.Snapshot()
	s.mu.Unlock()

	if err != nil {
		return s.fail(Event{Op: "read", Snapshot: snap, Err: fmt.Errorf("read tag: %w", err)})
	}
	s.log.Info("Tag read",
		zap.String("uid", fmt.Sprintf("%016X", snap.UID)),
		zap.Bool("locked", snap.Locked))
	s.emit(Event{Type: EventRead, Op: "read", Snapshot: snap})
	return nil
}

// Write flushes modified blocks and returns how many were written.
// The state check, the flush and the count share one critical section, so
// a Modify or Forget from another goroutine lands before or after it.
func (s *Session) Write(ctx context.Context) (int, error) {
	s.mu.Lock()
	state, pending := s.mem.State(), s.mem.DirtyCount()
	s.mu.Unlock()
	if state != srix.StateUninitialized && pending == 0 {
		return 0, ErrNoChanges
	}

	s.emit(Event{Type: EventBusy, Op: "write"})

	s.mu.Lock()
	pending = s.mem.DirtyCount()
	var err error
	switch {
	case s.mem.State() == srix.StateUninitialized:
		err = srix.ErrNotInitialized
	case pending > 0:
		err = s.mem.WriteBlocks(ctx, s.transport)
	}
	written := pending - s.mem.DirtyCount()
	snap := s.mem.Snapshot()
	s.mu.Unlock()

	if err != nil {
		if written > 0 {
			s.log.Info("Partial write", zap.Int("written", written), zap.Int("pending", pending-written))
		}
		return written, s.fail(Event{Op: "write", Snapshot: snap, Written: written, Err: fmt.Errorf("write tag: %w", err)})
	}
	// Observers leave the busy state even when a concurrent flush left nothing to write.
	s.emit(Event{Type: EventWritten, Op: "write", Snapshot: snap, Written: written})
	if written == 0 {
		return 0, ErrNoChanges
	}
	s.log.Info("Tag written", zap.Int("blocks", written))
	return written, nil
}

// Modify sets block index to word in memory and flags it for writing.
func (s *Session) Modify(index int, word uint32) error {
	if index < 0 || index >= srix.Blocks {
		return &srix.Error{Kind: srix.KindRange, Op: "modify", Block: index, Detail: "block index out of range"}
	}

	s.mu.Lock()
	err := s.mem.ModifyBlock(word, uint8(index))
	snap := s.mem.Snapshot()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.log.Debug("Block modified", zap.Int("block", index), zap.String("word", fmt.Sprintf("%08X", word)))
	s.emit(Event{Type: EventModified, Op: "modify", Snapshot: snap})
	return nil
}

// Block returns the in-memory word at index.
func (s *Session) Block(index int) (uint32, bool) {
	if index < 0 || index >= srix.Blocks {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem.State() == srix.StateUninitialized {
		return 0, false
	}
	return s.mem.GetBlock(uint8(index))
}

// Snapshot returns the current memory state.
func (s *Session) Snapshot() srix.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.Snapshot()
}

// Present reports whether a tag is in the field. ok is false when the
// transport cannot sense tags.
func (s *Session) Present(ctx context.Context) (present, ok bool, err error) {
	d, ok := s.transport.(interface {
		Detect(ctx context.Context) (bool, error)
	})
	if !ok {
		return false, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	present, err = d.Detect(ctx)
	return present, true, err
}

// Forget drops the loaded tag, e.g. when it leaves the field.
func (s *Session) Forget() {
	s.mu.Lock()
	s.mem = srix.New()
	snap := s.mem.Snapshot()
	s.mu.Unlock()
	s.emit(Event{Type: EventLost, Op: "forget", Snapshot: snap})
}

// Export saves the loaded image to path.
func (s *Session) Export(path string) error {
	s.mu.Lock()
	snap := s.mem.Snapshot()
	s.mu.Unlock()

	if snap.State == srix.StateUninitialized {
		return fmt.Errorf("export: %w", srix.ErrNotInitialized)
	}
	if err := dump.Save(path, dump.Dump{UID: snap.UID, Image: snap.Words}); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	s.log.Info("Image exported", zap.String("path", path))
	return nil
}

// Import merges a dump into memory. On a personalized tag only the generic
// blocks are taken and flagged; otherwise the whole image replaces memory.
// The loaded UID is kept when a tag has been read.
func (s *Session) Import(path string) error {
	d, err := dump.Load(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	s.mu.Lock()
	uid := d.UID
	if s.mem.State() != srix.StateUninitialized {
		uid = s.mem.UID()
	}
	s.mem.MemoryInit(d.Image, uid)
	snap := s.mem.Snapshot()
	s.mu.Unlock()

	s.log.Info("Image imported",
		zap.String("path", path),
		zap.Bool("generic_only", snap.Locked),
		zap.Int("dirty", snap.DirtyCount()))
	s.emit(Event{Type: EventImported, Op: "import", Snapshot: snap})
	return nil
}

// Restore imports path and writes it to the loaded tag. On a blank-key tag
// the merge flags nothing, so every block that differs from the tag is
// flagged before writing.
func (s *Session) Restore(ctx context.Context, path string) (int, error) {
	before := s.Snapshot()
	if before.State == srix.StateUninitialized {
		return 0, fmt.Errorf("restore: %w", srix.ErrNotInitialized)
	}
	if err := s.Import(path); err != nil {
		return 0, err
	}

	if !before.Locked {
		s.mu.Lock()
		img := s.mem.Image()
		for i, w := range img {
			if w != before.Words[i] {
				if err := s.mem.ModifyBlock(w, uint8(i)); err != nil {
					s.mu.Unlock()
					return 0, err
				}
			}
		}
		s.mu.Unlock()
	}
	return s.Write(ctx)
}
