package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_OrderedAndChecksummed(t *testing.T) {
	migs, err := Discover()
	require.NoError(t, err)
	require.NotEmpty(t, migs)

	for i := 1; i < len(migs); i++ {
		assert.Less(t, migs[i-1].Filename, migs[i].Filename)
	}
	for _, m := range migs {
		assert.Len(t, m.Checksum, 64, m.Filename)
		assert.NotEmpty(t, m.SQL, m.Filename)
	}
	assert.Equal(t, "001", migs[0].Version)
}

func TestExtractVersion(t *testing.T) {
	v, err := extractVersion("003_payables.sql")
	require.NoError(t, err)
	assert.Equal(t, "003", v)

	_, err = extractVersion("payables.sql")
	assert.Error(t, err)
}
