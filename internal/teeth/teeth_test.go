package teeth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	t.Parallel()

	c := Catalog()
	require.Len(t, c, Count)
	assert.Equal(t, Label("11"), c[0])
	assert.Equal(t, Label("18"), c[7])
	assert.Equal(t, Label("21"), c[8])
	assert.Equal(t, Label("48"), c[len(c)-1])

	seen := make(map[Label]bool, len(c))
	for _, l := range c {
		assert.False(t, seen[l], "duplicate label %s", l)
		seen[l] = true
		assert.True(t, l.Valid(), "label %s should be valid", l)
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	t.Parallel()

	c := Catalog()
	c[0] = "99"
	assert.Equal(t, Label("11"), Catalog()[0])
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantErr bool
	}{
		{"11", false},
		{"28", false},
		{"48", false},
		{"10", true},
		{"19", true},
		{"51", true},
		{"01", true},
		{"1", true},
		{"111", true},
		{"ab", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Label(tt.in), got)
		})
	}
}

func TestLabel_QuadrantPosition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, Label("36").Quadrant())
	assert.Equal(t, 6, Label("36").Position())
	assert.Equal(t, 0, Label("99").Quadrant())
	assert.Equal(t, 0, Label("99").Position())
}
