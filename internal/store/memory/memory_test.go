package memory_test

import (
	"testing"

	"github.com/qualgent/testorch/internal/store"
	"github.com/qualgent/testorch/internal/store/memory"
	"github.com/qualgent/testorch/internal/store/storetest"
)

func TestCompliance(t *testing.T) {
	storetest.RunCompliance(t, func(t *testing.T) (store.JobStore, func()) {
		return memory.New(), func() {}
	})
}
