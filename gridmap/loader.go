package gridmap

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"drone-nav-core/sensors"
)

// WallThreshold is the luminance below which a pixel is a wall.
const WallThreshold = 128

// Load reads a floor plan, picking the decoder from the file extension.
func Load(path string) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return LoadPNG(path)
	case ".txt", ".map", "":
		return LoadASCII(path)
	default:
		return nil, fmt.Errorf("unsupported map format %q", filepath.Ext(path))
	}
}

// LoadPNG rasterises a PNG floor plan.
func LoadPNG(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(img)
}

// FromImage converts img to grayscale and thresholds it.
func FromImage(img image.Image) (*Grid, error) {
	b := img.Bounds()
	g, err := New(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if gray.Y < WallThreshold {
				g.Set(x-b.Min.X, y-b.Min.Y, true)
			}
		}
	}
	return g, nil
}

// LoadASCII reads an ASCII floor plan from disk.
func LoadASCII(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := ParseASCII(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return g, nil
}

// ParseASCII builds a grid from rows of '#' (wall), 'S' (start) and any
// other character (free). Short rows are padded with free cells.
func ParseASCII(r io.Reader) (*Grid, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, ";") {
			continue
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}

	w := 0
	for _, row := range rows {
		if len(row) > w {
			w = len(row)
		}
	}
	g, err := New(w, len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case '#':
				g.Set(x, y, true)
			case 'S':
				if g.start != nil {
					return nil, fmt.Errorf("second start marker at %d,%d", x, y)
				}
				g.start = &sensors.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			}
		}
	}
	return g, nil
}
