package imaging

import (
	"image"
	"image/color"
	"os"
)

// Sharpness scores an image by edge strength: run a 3x3 edge-detection
// kernel over the grayscale image and return the variance of the result.
// Higher means sharper; a blurred frame has weak edges everywhere.
func Sharpness(img image.Image) float64 {
	gray := toGray(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	edges := make([]float64, 0, (w-2)*(h-2))
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			neighbors := int(gray.GrayAt(b.Min.X+x-1, b.Min.Y+y-1).Y) +
				int(gray.GrayAt(b.Min.X+x, b.Min.Y+y-1).Y) +
				int(gray.GrayAt(b.Min.X+x+1, b.Min.Y+y-1).Y) +
				int(gray.GrayAt(b.Min.X+x-1, b.Min.Y+y).Y) +
				int(gray.GrayAt(b.Min.X+x+1, b.Min.Y+y).Y) +
				int(gray.GrayAt(b.Min.X+x-1, b.Min.Y+y+1).Y) +
				int(gray.GrayAt(b.Min.X+x, b.Min.Y+y+1).Y) +
				int(gray.GrayAt(b.Min.X+x+1, b.Min.Y+y+1).Y)
			v := 8*center - neighbors
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			fv := float64(v)
			edges = append(edges, fv)
			sum += fv
		}
	}

	mean := sum / float64(len(edges))
	var variance float64
	for _, v := range edges {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(edges))
}

// SharpnessFile scores the image at path; unreadable files score 0.
func SharpnessFile(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return 0
	}
	return Sharpness(img)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
