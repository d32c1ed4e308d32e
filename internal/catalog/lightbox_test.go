package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIndexWrapsAround(t *testing.T) {
	assert.Equal(t, 1, NextIndex(3, 0))
	assert.Equal(t, 2, NextIndex(3, 1))
	assert.Equal(t, 0, NextIndex(3, 2), "next of last wraps to first")
}

func TestPreviousIndexWrapsAround(t *testing.T) {
	assert.Equal(t, 2, PreviousIndex(3, 0), "previous of first wraps to last")
	assert.Equal(t, 0, PreviousIndex(3, 1))
	assert.Equal(t, 1, PreviousIndex(3, 2))
}

func TestLightboxSingleItem(t *testing.T) {
	assert.Equal(t, 0, NextIndex(1, 0))
	assert.Equal(t, 0, PreviousIndex(1, 0))
}

func TestLightboxEmptyList(t *testing.T) {
	assert.Equal(t, -1, NextIndex(0, 0))
	assert.Equal(t, -1, PreviousIndex(0, 0))
}
