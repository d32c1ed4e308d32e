package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"simple list", "silk,bridal,custom", []string{"silk", "bridal", "custom"}},
		{"trims whitespace", " silk , bridal ,  custom ", []string{"silk", "bridal", "custom"}},
		{"drops empty entries", "silk,, ,bridal,", []string{"silk", "bridal"}},
		{"keeps duplicates", "silk,silk", []string{"silk", "silk"}},
		{"empty input", "", []string{}},
		{"only separators", " , ,", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseTags(tc.raw))
		})
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, ValidCategory(c), "category %s", c)
	}
	assert.False(t, ValidCategory(CategoryAll), "All is a filter sentinel, never storable")
	assert.False(t, ValidCategory("Shoes"))
	assert.False(t, ValidCategory(""))
}

func TestCategoriesOrder(t *testing.T) {
	got := Categories()
	assert.Equal(t, CategoryBlouses, got[0], "first category is the staging default")
	assert.Len(t, got, 5)
	assert.NotContains(t, got, CategoryAll)
}
