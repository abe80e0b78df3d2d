package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncRunTerminal(t *testing.T) {
	cases := []struct {
		status   RunStatus
		terminal bool
	}{
		{RunStatusQueued, false},
		{RunStatusProcessing, false},
		{RunStatusFinished, true},
		{RunStatusFailed, true},
	}
	for _, tc := range cases {
		run := SyncRun{Status: tc.status}
		assert.Equal(t, tc.terminal, run.Terminal(), string(tc.status))
	}
}
