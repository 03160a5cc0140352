package kindle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionFromCode(t *testing.T) {
	t.Run("KnownRegions", func(t *testing.T) {
		us, err := RegionFromCode("us")
		require.NoError(t, err)
		assert.Equal(t, "https://read.amazon.com/notebook", us.NotebookURL)

		de, err := RegionFromCode("de")
		require.NoError(t, err)
		assert.Equal(t, "https://read.amazon.de/notebook", de.NotebookURL)
	})

	t.Run("NormalizesCaseAndWhitespace", func(t *testing.T) {
		region, err := RegionFromCode(" UK ")
		require.NoError(t, err)
		assert.Equal(t, "uk", region.Code)
	})

	t.Run("GBAliasesToUK", func(t *testing.T) {
		region, err := RegionFromCode("gb")
		require.NoError(t, err)
		assert.Equal(t, "uk", region.Code)
		assert.Equal(t, "https://read.amazon.co.uk/notebook", region.NotebookURL)
	})

	t.Run("UnknownRegion", func(t *testing.T) {
		_, err := RegionFromCode("zz")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid Amazon region")
	})
}
