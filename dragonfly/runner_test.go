package dragonfly

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/world"
	"github.com/oriumgames/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeExec runs transactions on a separate goroutine with a nil Tx and counts them.
type fakeExec struct {
	txs atomic.Int32
}

func (f *fakeExec) exec(fn func(tx *world.Tx)) {
	f.txs.Add(1)
	go fn(nil)
}

func build(t *testing.T, systems map[pipeline.SystemID]System, declare func(b *pipeline.Builder[System])) *pipeline.Pipeline[System] {
	t.Helper()
	reg := pipeline.NewRegistry[System]()
	for id, s := range systems {
		reg.ProvideNamed(id, func() System { return s })
	}
	b := pipeline.NewBuilder[System](reg, pipeline.WithLogger(discard))
	declare(b)
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestRunner_OneTransactionPerStage(t *testing.T) {
	var mu sync.Mutex
	var order []string
	mark := func(name string) System {
		return SystemFunc(func(*world.Tx) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})
	}
	p := build(t, map[pipeline.SystemID]System{
		"Height": mark("Height"), "Camera": mark("Camera"), "Normals": mark("Normals"),
	}, func(b *pipeline.Builder[System]) {
		b.SystemNamed("Height").Produces("Terrain", "Height").Build().
			SystemNamed("Camera").Produces("Camera", "Updated").Build().
			SystemNamed("Normals").Requires("Terrain", "Height").Produces("Terrain", "Normals").Build()
	})

	fx := &fakeExec{}
	r := NewRunner(p, nil, WithExec(fx.exec), WithLogger(discard))
	require.NoError(t, r.RunFrame(context.Background()))

	assert.Equal(t, int32(2), fx.txs.Load())
	require.Len(t, order, 3)
	assert.ElementsMatch(t, []string{"Height", "Camera"}, order[:2])
	assert.Equal(t, "Normals", order[2])
}

func TestRunner_PanicStopsFrameAfterStage(t *testing.T) {
	var peer, later atomic.Bool
	p := build(t, map[pipeline.SystemID]System{
		"Bad":   SystemFunc(func(*world.Tx) { panic("bad block") }),
		"Peer":  SystemFunc(func(*world.Tx) { peer.Store(true) }),
		"Later": SystemFunc(func(*world.Tx) { later.Store(true) }),
	}, func(b *pipeline.Builder[System]) {
		b.SystemNamed("Bad").Produces("A", "1").Build().
			SystemNamed("Peer").Produces("B", "1").Build().
			SystemNamed("Later").Requires("A", "1").Build()
	})

	fx := &fakeExec{}
	err := NewRunner(p, nil, WithExec(fx.exec), WithLogger(discard)).RunFrame(context.Background())
	require.Error(t, err)

	var se *pipeline.SystemError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pipeline.SystemID("Bad"), se.System)
	var pe *pipeline.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bad block", pe.Value)

	assert.True(t, peer.Load())
	assert.False(t, later.Load())
}

func TestRunner_Run(t *testing.T) {
	var frames atomic.Int32
	p := build(t, map[pipeline.SystemID]System{
		"Tick": SystemFunc(func(*world.Tx) { frames.Add(1) }),
	}, func(b *pipeline.Builder[System]) { b.SystemNamed("Tick").Build() })

	fx := &fakeExec{}
	r := NewRunner(p, nil, WithExec(fx.exec), WithLogger(discard))
	assert.Same(t, p, r.Pipeline())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return frames.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewRunner_RequiresWorldOrExec(t *testing.T) {
	p := build(t, nil, func(*pipeline.Builder[System]) {})
	assert.Panics(t, func() { NewRunner(p, nil) })
}
