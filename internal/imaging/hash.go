package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"

	"golang.org/x/image/draw"
)

const dhashSize = 8

// DHash computes a 64-bit difference hash: scale to 9x8 grayscale, then set
// one bit per adjacent-pixel comparison, row-major. Robust to re-encoding and
// mild scaling; sensitive to actual content changes.
func DHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, dhashSize+1, dhashSize))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	bit := 0
	for row := 0; row < dhashSize; row++ {
		for col := 0; col < dhashSize; col++ {
			left := small.GrayAt(col, row).Y
			right := small.GrayAt(col+1, row).Y
			if left > right {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// DHashFile hashes the image at path.
func DHashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return DHash(img), nil
}

// HammingDistance counts differing bits between two hashes (0-64).
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
