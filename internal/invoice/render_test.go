package invoice

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	r := NewRenderer(dir)

	path, err := r.Render(Bill{
		BusinessName: "StayFlow",
		TenantName:   "Ravi Kumar",
		Room:         "G/1",
		Period:       "March 2025",
		Rent:         7000,
		EB:           450,
		Total:        7450,
		DueDate:      "5th March",
		UPIID:        "owner@upi",
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "bill_G1_"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, width*scale, img.Bounds().Dx())
	assert.Equal(t, height*scale, img.Bounds().Dy())
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "Rs. 7450", money(7450))
}
