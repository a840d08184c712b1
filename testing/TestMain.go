// Package testing is blank-imported by tests to keep binaries and adapters away from real endpoints.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var (
	once sync.Once

	// Unroutable endpoints used when a test forgets to inject a fake.
	endpointDefaults = map[string]string{
		"GOTENBERG_URL": "http://127.0.0.1:0",
		"AUTH_URL":      "http://127.0.0.1:0",
		"AI_BASE_URL":   "http://127.0.0.1:0",
	}
)

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("METALYARD_TEST_MODE", "1")
		for key, value := range endpointDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
