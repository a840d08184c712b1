package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadTestMode(t *testing.T) {
	cases := map[string]bool{"1": true, "true": true, "0": false, "": false, "yes": false}
	for value, want := range cases {
		t.Setenv(TestModeEnv, value)
		assert.Equal(t, want, readTestMode(), value)
	}
}
