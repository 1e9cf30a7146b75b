package diskstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeBytesReportsSomethingForTempDir(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	assert.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestHasRoomTrueForTinyRequirement(t *testing.T) {
	assert.True(t, HasRoom(t.TempDir(), 1))
}

func TestHasRoomFalseForImpossibleRequirement(t *testing.T) {
	assert.False(t, HasRoom(t.TempDir(), ^uint64(0)))
}

func TestFreeBytesFailsOnNonexistentPath(t *testing.T) {
	_, err := FreeBytes("/path/that/does/not/exist/condalf-test")
	assert.Error(t, err)
}
