package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv disables network side effects in the binaries when set to a true value.
const TestModeEnv = "METALYARD_TEST_MODE"

var testMode = sync.OnceValue(readTestMode)

func readTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}

// InTestMode reports whether cmd binaries should exit before dialing Postgres, Redis or
// any upstream. The value is read once per process.
func InTestMode() bool {
	return testMode()
}
