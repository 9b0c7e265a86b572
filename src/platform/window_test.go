package platform

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTakeResized(t *testing.T) {
	w := &Window{}
	require.False(t, w.TakeResized())

	w.markResized()
	w.markResized()
	require.True(t, w.TakeResized())
	require.False(t, w.TakeResized(), "flag clears after being taken")
}

func TestTakeResizedConcurrent(t *testing.T) {
	w := &Window{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.markResized()
		}()
	}
	wg.Wait()
	require.True(t, w.TakeResized())
	require.False(t, w.TakeResized())
}
