package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinInt(t *testing.T) {
	assert.Equal(t, 2, minInt(2, 5))
	assert.Equal(t, 2, minInt(5, 2))
	assert.Equal(t, 3, minInt(3, 3))
}

func TestBackoffScheduleCapsAtFinalDelay(t *testing.T) {
	last := backoffSchedule[len(backoffSchedule)-1]
	idx := minInt(len(backoffSchedule)+10, len(backoffSchedule)-1)
	assert.Equal(t, last, backoffSchedule[idx])
}

func TestBackoffScheduleIsNonDecreasing(t *testing.T) {
	for i := 1; i < len(backoffSchedule); i++ {
		assert.GreaterOrEqual(t, backoffSchedule[i], backoffSchedule[i-1])
	}
}
