package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAfter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusUnack, StatusAfter(OENew))

	for _, ev := range []OrderEvent{OEAck, OECxl, OECxlRej, OECxlIntRej, OECxlBrkRej, OECxlExhRej, OEAmdAck, OEAmdRej} {
		assert.Equal(t, StatusAcked, StatusAfter(ev), string(ev))
	}
	for _, ev := range []OrderEvent{OERej, OEBrkRej, OEExhRej, OEIntRej, OECxlAck, OEUnsolCxl, OELapse} {
		assert.Equal(t, StatusDOD, StatusAfter(ev), string(ev))
	}
}

func TestStatusIsOpen(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusUnack.IsOpen())
	assert.True(t, StatusAcked.IsOpen())
	assert.True(t, StatusOverFilled.IsOpen())
	assert.False(t, StatusFilled.IsOpen())
	assert.False(t, StatusDOD.IsOpen())
}
