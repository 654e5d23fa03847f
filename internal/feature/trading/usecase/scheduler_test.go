package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_PopDueOrdersByExpiryThenID(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	var s schedule
	s.add("c", base.Add(2*time.Second))
	s.add("b", base.Add(time.Second))
	s.add("a", base.Add(time.Second))
	s.add("z", base.Add(time.Minute))

	next, ok := s.next()
	assert.True(t, ok)
	assert.Equal(t, base.Add(time.Second), next)

	assert.Empty(t, s.popDue(base))
	assert.Equal(t, []string{"a", "b", "c"}, s.popDue(base.Add(2*time.Second)))
	assert.Equal(t, 1, s.len())

	assert.Equal(t, []string{"z"}, s.popDue(base.Add(time.Hour)))
	_, ok = s.next()
	assert.False(t, ok)
}
