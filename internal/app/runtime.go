package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "RECEIVING_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether external stores (Redis, Postgres) should be
// skipped at startup.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}
