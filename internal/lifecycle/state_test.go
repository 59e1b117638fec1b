package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Installed:        "Installed",
		Resolved:         "Resolved",
		Starting:         "Starting",
		Active:           "Active",
		Stopping:         "Stopping",
		Uninstalled:      "Uninstalled",
		Unknown:          "Unknown",
		State(99):        "Invalid",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
