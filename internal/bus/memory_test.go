package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeliversToAllSubscribers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var got []string
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Subscribe(ctx, "jobs", func(_ context.Context, payload []byte) {
			var s string
			require.NoError(t, json.Unmarshal(payload, &s))
			got = append(got, s)
		}))
	}

	require.NoError(t, m.Publish(ctx, "jobs", "hello"))
	assert.Equal(t, []string{"hello", "hello", "hello"}, got)
}

func TestMemoryDropsWithoutSubscriber(t *testing.T) {
	m := NewMemory()
	// Pub/sub semantics: publishing into the void is not an error.
	require.NoError(t, m.Publish(context.Background(), "nobody-listens", map[string]int{"n": 1}))
}

func TestMemoryChannelsAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var jobs, other int
	require.NoError(t, m.Subscribe(ctx, "jobs", func(context.Context, []byte) { jobs++ }))
	require.NoError(t, m.Subscribe(ctx, "other", func(context.Context, []byte) { other++ }))

	require.NoError(t, m.Publish(ctx, "jobs", 1))
	require.NoError(t, m.Publish(ctx, "jobs", 2))
	assert.Equal(t, 2, jobs)
	assert.Zero(t, other)
}

func TestMemoryPublishRejectsUnmarshalable(t *testing.T) {
	m := NewMemory()
	err := m.Publish(context.Background(), "jobs", make(chan int))
	require.Error(t, err)
}

func TestMemoryConcurrentPublish(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	require.NoError(t, m.Subscribe(ctx, "jobs", func(context.Context, []byte) {
		mu.Lock()
		count++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Publish(ctx, "jobs", "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}
