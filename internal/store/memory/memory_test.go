package memory_test

import (
	"testing"

	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/aimerfeng/ChallengeHive/internal/store/memory"
	"github.com/aimerfeng/ChallengeHive/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
}
