package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosrix/dump"
	"gosrix/reader"
	"gosrix/srix"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newSession(t *testing.T, img srix.Image) (*Session, *reader.Sim, *recorder) {
	t.Helper()
	sim := reader.NewSim(reader.DefaultSimUID, img)
	rec := &recorder{}
	return New(sim, WithObserver(rec)), sim, rec
}

func TestSession_ReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	s, sim, rec := newSession(t, srix.Image{})

	_, ok := s.Block(20)
	assert.False(t, ok, "nothing loaded yet")

	require.NoError(t, s.Read(ctx))
	assert.Equal(t, []EventType{EventBusy, EventRead}, rec.types())
	assert.Equal(t, reader.DefaultSimUID, rec.last().Snapshot.UID)

	require.NoError(t, s.Modify(20, 0x11223344))
	require.NoError(t, s.Modify(21, 0x55667788))
	assert.Equal(t, EventModified, rec.last().Type)
	assert.Equal(t, 2, rec.last().Snapshot.DirtyCount())

	w, ok := s.Block(20)
	require.True(t, ok)
	assert.Equal(t, uint32(0x11223344), w)

	n, err := s.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, EventWritten, rec.last().Type)
	assert.Equal(t, 2, rec.last().Written)
	assert.Equal(t, srix.StateSynced, s.Snapshot().State)
	assert.Equal(t, uint32(0x55667788), sim.Image()[21])

	_, err = s.Write(ctx)
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestSession_PartialWrite(t *testing.T) {
	ctx := context.Background()
	s, sim, rec := newSession(t, srix.Image{})
	require.NoError(t, s.Read(ctx))

	for i := 30; i < 34; i++ {
		require.NoError(t, s.Modify(i, uint32(i)))
	}
	sim.SetFault(32, reader.FaultWrite)

	n, err := s.Write(ctx)
	assert.ErrorIs(t, err, srix.ErrTransport)
	assert.Equal(t, 2, n)
	assert.Equal(t, EventFailed, rec.last().Type)
	assert.Equal(t, 2, rec.last().Snapshot.DirtyCount())

	sim.SetFault(32, reader.FaultNone)
	n, err = s.Write(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint32(33), sim.Image()[33])
}

func TestSession_WriteRacesWithOtherCallers(t *testing.T) {
	ctx := context.Background()

	t.Run("forget after busy", func(t *testing.T) {
		s, sim, rec := newSession(t, srix.Image{})
		require.NoError(t, s.Read(ctx))
		require.NoError(t, s.Modify(30, 1))
		require.NoError(t, s.Modify(31, 2))

		var once sync.Once
		s.AddObserver(ObserverFunc(func(e Event) {
			if e.Type == EventBusy && e.Op == "write" {
				once.Do(s.Forget)
			}
		}))

		n, err := s.Write(ctx)
		assert.ErrorIs(t, err, srix.ErrNotInitialized)
		assert.Equal(t, 0, n)
		assert.Equal(t, EventFailed, rec.last().Type)
		assert.Equal(t, 0, rec.last().Written)
		assert.Empty(t, sim.Writes())
	})

	t.Run("modify after busy", func(t *testing.T) {
		s, sim, rec := newSession(t, srix.Image{})
		require.NoError(t, s.Read(ctx))
		require.NoError(t, s.Modify(30, 1))

		var once sync.Once
		s.AddObserver(ObserverFunc(func(e Event) {
			if e.Type == EventBusy && e.Op == "write" {
				once.Do(func() { require.NoError(t, s.Modify(40, 4)) })
			}
		}))

		n, err := s.Write(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, rec.last().Written)
		assert.Equal(t, srix.StateSynced, s.Snapshot().State)
		assert.Equal(t, []uint8{30, 40}, sim.Writes())
	})
}

func TestSession_Errors(t *testing.T) {
	ctx := context.Background()
	s, sim, rec := newSession(t, srix.Image{})

	_, err := s.Write(ctx)
	assert.ErrorIs(t, err, srix.ErrNotInitialized)
	assert.Equal(t, EventFailed, rec.last().Type)

	assert.ErrorIs(t, s.Modify(3, 1), srix.ErrNotInitialized)
	assert.ErrorIs(t, s.Modify(128, 1), srix.ErrRange)
	assert.ErrorIs(t, s.Modify(-1, 1), srix.ErrRange)

	sim.SetPresent(false)
	err = s.Read(ctx)
	assert.ErrorIs(t, err, srix.ErrTransport)
	assert.ErrorIs(t, err, reader.ErrNoTag)
	assert.Equal(t, srix.StateUninitialized, s.Snapshot().State)
}

func TestSession_Forget(t *testing.T) {
	ctx := context.Background()
	s, _, rec := newSession(t, srix.Image{})
	require.NoError(t, s.Read(ctx))
	require.NoError(t, s.Modify(40, 1))

	s.Forget()
	assert.Equal(t, EventLost, rec.last().Type)
	assert.Equal(t, srix.StateUninitialized, s.Snapshot().State)
	_, ok := s.Block(40)
	assert.False(t, ok)
}

func TestSession_ExportImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var img srix.Image
	for i := range img {
		img[i] = uint32(i) * 3
	}
	img[7] = 0
	src, _, _ := newSession(t, img)

	assert.ErrorIs(t, src.Export(filepath.Join(dir, "none.bin")), srix.ErrNotInitialized)

	require.NoError(t, src.Read(ctx))
	path := filepath.Join(dir, "backup.bin")
	require.NoError(t, src.Export(path))

	d, err := dump.Load(path)
	require.NoError(t, err)
	assert.Equal(t, reader.DefaultSimUID, d.UID)
	assert.Equal(t, img, d.Image)

	t.Run("unlocked target takes the whole image", func(t *testing.T) {
		dst, _, rec := newSession(t, srix.Image{})
		require.NoError(t, dst.Read(ctx))
		require.NoError(t, dst.Import(path))
		assert.Equal(t, EventImported, rec.last().Type)

		snap := dst.Snapshot()
		assert.Equal(t, img, snap.Words)
		assert.Equal(t, 0, snap.DirtyCount())
	})

	t.Run("locked target takes generic blocks only", func(t *testing.T) {
		var cur srix.Image
		cur[7] = 0xCAFE
		dst, sim, _ := newSession(t, cur)
		require.NoError(t, dst.Read(ctx))
		require.NoError(t, dst.Import(path))

		snap := dst.Snapshot()
		assert.Equal(t, uint32(0xCAFE), snap.Words[7])
		assert.Equal(t, 112, snap.DirtyCount())

		n, err := dst.Write(ctx)
		require.NoError(t, err)
		assert.Equal(t, 112, n)
		assert.Equal(t, img[100], sim.Image()[100])
	})

	assert.Error(t, src.Import(filepath.Join(dir, "missing.bin")))
}

func TestSession_Present(t *testing.T) {
	ctx := context.Background()
	s, sim, _ := newSession(t, srix.Image{})

	present, ok, err := s.Present(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, present)

	sim.SetPresent(false)
	present, _, err = s.Present(ctx)
	require.NoError(t, err)
	assert.False(t, present)

	_, ok, err = New(nil).Present(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.yaml")

	var img srix.Image
	img[3] = 0x0F
	img[20] = 0xAABBCCDD
	img[21] = 0x11223344
	require.NoError(t, dump.Save(path, dump.Dump{UID: reader.DefaultSimUID, Image: img}))

	t.Run("requires a read", func(t *testing.T) {
		s, _, _ := newSession(t, srix.Image{})
		_, err := s.Restore(ctx, path)
		assert.ErrorIs(t, err, srix.ErrNotInitialized)
	})

	t.Run("blank key writes differing blocks", func(t *testing.T) {
		var cur srix.Image
		cur[21] = 0x11223344
		s, sim, _ := newSession(t, cur)
		require.NoError(t, s.Read(ctx))

		n, err := s.Restore(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []uint8{3, 20}, sim.Writes())
		assert.Equal(t, img, sim.Image())
	})

	t.Run("identical image", func(t *testing.T) {
		s, _, _ := newSession(t, img)
		require.NoError(t, s.Read(ctx))
		_, err := s.Restore(ctx, path)
		assert.ErrorIs(t, err, ErrNoChanges)
	})
}
