package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterSingleListener(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var results []int
	emitter.On("event", func(v int) {
		results = append(results, v)
	})

	emitter.Emit("event", func(fn func(int)) { fn(42) })

	assert.Equal(t, []int{42}, results)
}

func TestEmitterRegistrationOrder(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var results []int
	for i := 0; i < 5; i++ {
		i := i
		emitter.On("event", func(v int) {
			results = append(results, v+i)
		})
	}

	emitter.Emit("event", func(fn func(int)) { fn(100) })

	assert.Equal(t, []int{100, 101, 102, 103, 104}, results)
}

func TestEmitterOff(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var calls int
	id := emitter.On("event", func(int) { calls++ })
	emitter.On("event", func(int) { calls++ })

	emitter.Off("event", id)
	emitter.Emit("event", func(fn func(int)) { fn(0) })

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, emitter.Len("event"))
}

func TestEmitterOffUnknownIDIsNoop(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var calls int
	emitter.On("event", func(int) { calls++ })

	emitter.Off("event", 9999)
	emitter.Off("other", 1)
	emitter.Emit("event", func(fn func(int)) { fn(0) })

	assert.Equal(t, 1, calls)
}

func TestEmitterNoListeners(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)
	// Emitting with nothing registered must not panic or block.
	emitter.Emit("nonexistent", func(fn func(int)) { fn(1) })
}

func TestEmitterPanicIsolation(t *testing.T) {
	var recovered []any
	emitter := NewEmitter[string, func(int)](func(r any) {
		recovered = append(recovered, r)
	})

	var after int
	emitter.On("event", func(int) { panic("listener boom") })
	emitter.On("event", func(int) { after++ })

	emitter.Emit("event", func(fn func(int)) { fn(0) })

	require.Len(t, recovered, 1)
	assert.Equal(t, "listener boom", recovered[0])
	assert.Equal(t, 1, after, "listener after the panicking one must still run")
}

func TestEmitterReentrantRemoval(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var calls int
	var id ListenerID
	id = emitter.On("event", func(int) {
		calls++
		emitter.Off("event", id)
	})
	emitter.On("event", func(int) { calls++ })

	// Removal from within a listener affects later emits, not the snapshot
	// being fanned out.
	emitter.Emit("event", func(fn func(int)) { fn(0) })
	assert.Equal(t, 2, calls)

	emitter.Emit("event", func(fn func(int)) { fn(0) })
	assert.Equal(t, 3, calls)
}

func TestEmitterMultipleKinds(t *testing.T) {
	emitter := NewEmitter[string, func(string)](nil)

	got := map[string]string{}
	emitter.On("a", func(v string) { got["a"] = v })
	emitter.On("b", func(v string) { got["b"] = v })

	emitter.Emit("a", func(fn func(string)) { fn("first") })
	emitter.Emit("b", func(fn func(string)) { fn("second") })

	assert.Equal(t, "first", got["a"])
	assert.Equal(t, "second", got["b"])
}

func TestEmitterClose(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var calls int
	emitter.On("event", func(int) { calls++ })
	emitter.Close()
	emitter.Emit("event", func(fn func(int)) { fn(0) })

	assert.Zero(t, calls)
}

func TestEmitterConcurrent(t *testing.T) {
	emitter := NewEmitter[string, func(int)](nil)

	var mu sync.Mutex
	var total int
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitter.On("event", func(int) {
				mu.Lock()
				total++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitter.Emit("event", func(fn func(int)) { fn(0) })
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 100, total)
}
