package ibl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chewxy/math32"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errNotRadiance = errors.New("not a Radiance RGBE file")

// Panorama is an equirectangular image in linear RGBA float32. Row 0 is the
// zenith and u = 0.5 looks down +X.
type Panorama struct {
	Width, Height int
	Pix           []float32
}

// ConstantPanorama returns a panorama of a single radiance value.
func ConstantPanorama(width, height int, rgb [3]float32) *Panorama {
	p := &Panorama{Width: width, Height: height, Pix: make([]float32, width*height*4)}
	for i := 0; i < width*height; i++ {
		copy(p.Pix[i*4:], rgb[:])
		p.Pix[i*4+3] = 1
	}
	return p
}

// At returns the texel at x, y.
func (p *Panorama) At(x, y int) [4]float32 {
	i := (y*p.Width + x) * 4
	return [4]float32{p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3]}
}

// Bytes returns the texels as little-endian RGBA32Float data.
func (p *Panorama) Bytes() []byte {
	out := make([]byte, 0, len(p.Pix)*4)
	for _, v := range p.Pix {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

// LoadPanorama reads a Radiance .hdr file, or any image format registered
// with the image package. Low dynamic range images are treated as sRGB.
func LoadPanorama(path string) (*Panorama, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("panorama %s: %w", path, err)
	}
	p, err := DecodeRGBE(bytes.NewReader(data))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, errNotRadiance) {
		return nil, fmt.Errorf("panorama %s: %w", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("panorama %s: %w", path, err)
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *Panorama {
	b := img.Bounds()
	p := &Panorama{Width: b.Dx(), Height: b.Dy(), Pix: make([]float32, b.Dx()*b.Dy()*4)}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*p.Width + x) * 4
			p.Pix[i] = srgbToLinear(float32(r) / 0xffff)
			p.Pix[i+1] = srgbToLinear(float32(g) / 0xffff)
			p.Pix[i+2] = srgbToLinear(float32(bl) / 0xffff)
			p.Pix[i+3] = float32(a) / 0xffff
		}
	}
	return p
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

// DecodeRGBE decodes a Radiance RGBE image with flat, old run-length or new
// run-length encoded scanlines. Only the standard -Y H +X W orientation is
// accepted.
func DecodeRGBE(r io.Reader) (*Panorama, error) {
	br := bufio.NewReader(r)
	magic, err := br.ReadString('\n')
	if err != nil || !(strings.HasPrefix(magic, "#?RADIANCE") || strings.HasPrefix(magic, "#?RGBE")) {
		return nil, errNotRadiance
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("rgbe header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "FORMAT=") && line != "FORMAT=32-bit_rle_rgbe" {
			return nil, fmt.Errorf("rgbe: unsupported %s", line)
		}
	}
	res, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("rgbe resolution: %w", err)
	}
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(res), "-Y %d +X %d", &h, &w); err != nil {
		return nil, fmt.Errorf("rgbe: unsupported resolution line %q", strings.TrimSpace(res))
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("rgbe: bad size %dx%d", w, h)
	}

	p := &Panorama{Width: w, Height: h, Pix: make([]float32, w*h*4)}
	line := make([]byte, w*4)
	for y := 0; y < h; y++ {
		if err := readScanline(br, line, w); err != nil {
			return nil, fmt.Errorf("rgbe scanline %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			rgb := rgbeToFloat(line[x*4], line[x*4+1], line[x*4+2], line[x*4+3])
			i := (y*w + x) * 4
			copy(p.Pix[i:], rgb[:])
			p.Pix[i+3] = 1
		}
	}
	return p, nil
}

func readScanline(br *bufio.Reader, dst []byte, w int) error {
	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return err
	}
	if w < 8 || w > 0x7fff || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		return readFlat(br, dst, w, head)
	}
	if n := int(head[2])<<8 | int(head[3]); n != w {
		return fmt.Errorf("encoded width %d, expected %d", n, w)
	}
	for c := 0; c < 4; c++ {
		for x := 0; x < w; {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				run := int(count) - 128
				if x+run > w {
					return errors.New("run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for ; run > 0; run-- {
					dst[x*4+c] = v
					x++
				}
				continue
			}
			n := int(count)
			if n == 0 || x+n > w {
				return errors.New("bad literal count")
			}
			for ; n > 0; n-- {
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				dst[x*4+c] = v
				x++
			}
		}
	}
	return nil
}

// readFlat reads uncompressed pixels, expanding old-style runs where a pixel
// of 1,1,1,n repeats the previous pixel n<<shift times.
func readFlat(br *bufio.Reader, dst []byte, w int, first [4]byte) error {
	px := first
	shift := 0
	for x := 0; x < w; {
		if px[0] == 1 && px[1] == 1 && px[2] == 1 {
			if x == 0 {
				return errors.New("run without a previous pixel")
			}
			run := int(px[3]) << shift
			if x+run > w {
				return errors.New("run overflows scanline")
			}
			prev := dst[(x-1)*4 : x*4]
			for ; run > 0; run-- {
				copy(dst[x*4:], prev)
				x++
			}
			shift += 8
		} else {
			copy(dst[x*4:], px[:])
			x++
			shift = 0
		}
		if x < w {
			if _, err := io.ReadFull(br, px[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func rgbeToFloat(r, g, b, e byte) [3]float32 {
	if e == 0 {
		return [3]float32{}
	}
	f := float32(math.Ldexp(1, int(e)-(128+8)))
	return [3]float32{float32(r) * f, float32(g) * f, float32(b) * f}
}
