package memory_test

import (
	"testing"

	"github.com/warp/workforce-hub/store"
	"github.com/warp/workforce-hub/store/memory"
	"github.com/warp/workforce-hub/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
