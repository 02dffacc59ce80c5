package convgrad

import (
	"sync"
	"testing"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Identity(t *testing.T) {
	reg := NewRegistry[float32](testEngine(t))

	a, err := reg.GetOrCreate(sameParams())
	require.NoError(t, err)
	b, err := reg.GetOrCreate(sameParams())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Builds: 1}, reg.Stats())
}

func TestRegistry_SeparateRegistries(t *testing.T) {
	eng := testEngine(t)
	a, err := NewRegistry[float32](eng).GetOrCreate(sameParams())
	require.NoError(t, err)
	b, err := NewRegistry[float32](eng).GetOrCreate(sameParams())
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestRegistry_ConcurrentFirstUseBuildsOnce(t *testing.T) {
	reg := NewRegistry[float64](testEngine(t))
	const n = 64

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		plans = make([]*Primitive[float64], n)
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			plans[i], errs[i] = reg.GetOrCreate(channelParams(9))
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range plans {
		require.NoError(t, errs[i])
		assert.Same(t, plans[0], plans[i])
	}
	assert.Equal(t, 1, reg.Len())
	stats := reg.Stats()
	assert.Equal(t, uint64(1), stats.Builds)
	assert.Equal(t, uint64(n), stats.Hits+stats.Misses)
}

func TestRegistry_FailedBuildNotCached(t *testing.T) {
	reg := NewRegistry[float32](testEngine(t))
	bad := NewParams(
		[]int{1, 1, 4, 4, 4}, []int{1, 1, 3, 3, 3}, []int{1, 1, 2, 2, 2},
		[]int{1, 1, 1}, []int{0, 0, 0}, []int{0, 0, 0}, []int{0, 0, 0}, engine.PaddingZero)

	_, err := reg.GetOrCreate(bad)
	require.Error(t, err)
	assert.Equal(t, engine.StatusUnimplemented, engine.StatusOf(err))
	assert.Equal(t, 0, reg.Len())

	_, err = reg.GetOrCreate(bad)
	require.Error(t, err)
	assert.Equal(t, Stats{Misses: 2, Builds: 2, Failures: 2}, reg.Stats())

	_, err = reg.GetOrCreate(sameParams())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DistinctKeys(t *testing.T) {
	reg := NewRegistry[float32](testEngine(t))

	var want []string
	for c := 1; c <= 5; c++ {
		p := channelParams(c)
		_, err := reg.GetOrCreate(p)
		require.NoError(t, err)
		want = append(want, p.Key())
	}
	// Repeat requests add nothing.
	for c := 1; c <= 5; c++ {
		_, err := reg.GetOrCreate(channelParams(c))
		require.NoError(t, err)
	}

	assert.Equal(t, 5, reg.Len())
	assert.Equal(t, uint64(5), reg.Stats().Hits)
	if diff := cmp.Diff(want, reg.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}
