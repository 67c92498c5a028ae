package raster

import (
	"compress/zlib"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"geo-ingest-backend/internal/crs"
	"github.com/paulmach/orb"
	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/image/tiff/lzw"
)

// Baseline TIFF, GeoTIFF and GDAL private tags.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagModelTransform  = 34264
	tagGeoKeyDirectory = 34735
	tagGDALMetadata    = 42112
	tagGDALNoData      = 42113
)

const (
	geoKeyModelType     = 1024
	geoKeyGeographicCRS = 2048
	geoKeyProjectedCRS  = 3072
	geoKeyUserDefined   = 32767
)

type ifd struct {
	order binary.ByteOrder
	tags  map[uint16]*tiff.Tag
}

// decodeFirstIFD reads only the header and first image directory, so large
// files are never loaded whole.
func decodeFirstIFD(f *os.File) (*ifd, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return nil, fmt.Errorf("failed to read tiff header: %w", err)
	}
	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad byte order mark", ErrUnsupportedFormat)
	}
	if order.Uint16(hdr[2:]) != 42 {
		return nil, fmt.Errorf("%w: not a classic tiff", ErrUnsupportedFormat)
	}

	if _, err := f.Seek(int64(order.Uint32(hdr[4:])), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to image directory: %w", err)
	}
	dir, _, err := tiff.DecodeDir(f, order)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image directory: %w", err)
	}

	d := &ifd{order: order, tags: make(map[uint16]*tiff.Tag, len(dir.Tags))}
	for _, t := range dir.Tags {
		d.tags[t.Id] = t
	}
	return d, nil
}

func (d *ifd) has(id uint16) bool {
	_, ok := d.tags[id]
	return ok
}

func (d *ifd) ints(id uint16) []int64 {
	t, ok := d.tags[id]
	if !ok || t.Format() != tiff.IntVal {
		return nil
	}
	out := make([]int64, 0, t.Count)
	for i := 0; i < int(t.Count); i++ {
		v, err := t.Int64(i)
		if err != nil {
			return out
		}
		out = append(out, v)
	}
	return out
}

func (d *ifd) int(id uint16, def int) int {
	v := d.ints(id)
	if len(v) == 0 {
		return def
	}
	return int(v[0])
}

func (d *ifd) floats(id uint16) []float64 {
	t, ok := d.tags[id]
	if !ok {
		return nil
	}
	out := make([]float64, 0, t.Count)
	for i := 0; i < int(t.Count); i++ {
		var (
			v   float64
			err error
		)
		switch t.Format() {
		case tiff.FloatVal:
			v, err = t.Float(i)
		case tiff.IntVal:
			var n int64
			n, err = t.Int64(i)
			v = float64(n)
		case tiff.RatVal:
			var num, den int64
			num, den, err = t.Rat2(i)
			if err == nil && den != 0 {
				v = float64(num) / float64(den)
			}
		default:
			return nil
		}
		if err != nil {
			return out
		}
		out = append(out, v)
	}
	return out
}

func (d *ifd) str(id uint16) string {
	t, ok := d.tags[id]
	if !ok || t.Format() != tiff.StringVal {
		return ""
	}
	s, _ := t.StringVal()
	return strings.TrimSpace(s)
}

// sampleLayout is the per-sample encoding shared by every band.
type sampleLayout struct {
	size   int
	format int
	dtype  string
}

var errUnsupportedSamples = errors.New("unsupported sample layout")

func newSampleLayout(d *ifd, spp int) (sampleLayout, error) {
	bits := d.ints(tagBitsPerSample)
	formats := d.ints(tagSampleFormat)
	if len(bits) == 0 {
		bits = []int64{1}
	}
	format := int64(1)
	if len(formats) > 0 {
		format = formats[0]
	}
	for i := 1; i < len(bits) && i < spp; i++ {
		if bits[i] != bits[0] {
			return sampleLayout{dtype: "unknown"}, fmt.Errorf("%w: mixed bit depths", errUnsupportedSamples)
		}
	}

	l := sampleLayout{size: int(bits[0]) / 8, format: int(format)}
	switch {
	case format == 3 && bits[0] == 32:
		l.dtype = "float32"
	case format == 3 && bits[0] == 64:
		l.dtype = "float64"
	case format == 2 && (bits[0] == 8 || bits[0] == 16 || bits[0] == 32 || bits[0] == 64):
		l.dtype = fmt.Sprintf("int%d", bits[0])
	case (format == 1 || format == 4) && (bits[0] == 8 || bits[0] == 16 || bits[0] == 32 || bits[0] == 64):
		l.format = 1
		l.dtype = fmt.Sprintf("uint%d", bits[0])
	default:
		return sampleLayout{dtype: "unknown"}, fmt.Errorf("%w: %d-bit format %d", errUnsupportedSamples, bits[0], format)
	}
	return l, nil
}

func (l sampleLayout) value(b []byte, order binary.ByteOrder) float64 {
	switch l.format {
	case 3:
		if l.size == 4 {
			return float64(math.Float32frombits(order.Uint32(b)))
		}
		return math.Float64frombits(order.Uint64(b))
	case 2:
		switch l.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(order.Uint16(b)))
		case 4:
			return float64(int32(order.Uint32(b)))
		}
		return float64(int64(order.Uint64(b)))
	}
	switch l.size {
	case 1:
		return float64(b[0])
	case 2:
		return float64(order.Uint16(b))
	case 4:
		return float64(order.Uint32(b))
	}
	return float64(order.Uint64(b))
}

func readGeoTIFF(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geotiff: %w", err)
	}
	defer f.Close()

	d, err := decodeFirstIFD(f)
	if err != nil {
		return nil, err
	}

	width := d.int(tagImageWidth, 0)
	height := d.int(tagImageLength, 0)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: missing image dimensions", ErrUnsupportedFormat)
	}
	spp := d.int(tagSamplesPerPixel, 1)

	info := &Info{Format: FormatGeoTIFF, Width: width, Height: height}
	if err := georeference(d, info); err != nil {
		return nil, err
	}
	info.CRS = geoKeyCRS(d)

	noData := parseNoData(d.str(tagGDALNoData))
	descriptions := bandDescriptions(d.str(tagGDALMetadata))
	layout, layoutErr := newSampleLayout(d, spp)

	info.Bands = make([]Band, spp)
	accs := make([]*accumulator, spp)
	for i := range info.Bands {
		info.Bands[i] = Band{Index: i + 1, DataType: layout.dtype, NoData: noData, Description: descriptions[i]}
		accs[i] = newAccumulator(noData)
	}

	if layoutErr != nil {
		log.Printf("Warning: skipping band statistics for %s: %v", filepath.Base(path), layoutErr)
		return info, nil
	}
	if err := scanPixels(f, d, layout, width, height, spp, accs); err != nil {
		log.Printf("Warning: could not compute band statistics for %s: %v", filepath.Base(path), err)
		return info, nil
	}
	for i := range info.Bands {
		accs[i].apply(&info.Bands[i])
	}
	return info, nil
}

// georeference derives native bounds and pixel size from the tie point and
// pixel scale, or from a full model transformation.
func georeference(d *ifd, info *Info) error {
	w, h := float64(info.Width), float64(info.Height)

	scale := d.floats(tagModelPixelScale)
	tie := d.floats(tagModelTiepoint)
	if len(scale) >= 2 && len(tie) >= 6 {
		sx, sy := scale[0], scale[1]
		minX := tie[3] - tie[0]*sx
		maxY := tie[4] + tie[1]*sy
		info.PixelSizeX, info.PixelSizeY = math.Abs(sx), math.Abs(sy)
		info.Bounds = orb.Bound{Min: orb.Point{minX, maxY - h*sy}, Max: orb.Point{minX + w*sx, maxY}}
		return nil
	}

	m := d.floats(tagModelTransform)
	if len(m) >= 8 {
		at := func(i, j float64) orb.Point {
			return orb.Point{m[0]*i + m[1]*j + m[3], m[4]*i + m[5]*j + m[7]}
		}
		b := orb.MultiPoint{at(0, 0), at(w, 0), at(0, h), at(w, h)}.Bound()
		info.PixelSizeX = math.Hypot(m[0], m[4])
		info.PixelSizeY = math.Hypot(m[1], m[5])
		info.Bounds = b
		return nil
	}
	return ErrNotGeoreferenced
}

// geoKeyCRS returns the EPSG code declared in the GeoKey directory, or 0
// when the file does not say.
func geoKeyCRS(d *ifd) crs.CRS {
	keys := d.ints(tagGeoKeyDirectory)
	if len(keys) < 4 {
		return 0
	}
	values := map[int64]int64{}
	for i := 0; i < int(keys[3]); i++ {
		base := 4 + 4*i
		if base+3 >= len(keys) {
			break
		}
		// location 0 means the value is stored inline
		if keys[base+1] == 0 {
			values[keys[base]] = keys[base+3]
		}
	}

	if code := values[geoKeyProjectedCRS]; code > 0 && code != geoKeyUserDefined {
		return crs.CRS(code)
	}
	if code := values[geoKeyGeographicCRS]; code > 0 && code != geoKeyUserDefined {
		return crs.CRS(code)
	}
	if values[geoKeyModelType] == 2 {
		return crs.WGS84
	}
	return 0
}

func parseNoData(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// bandDescriptions reads per-band DESCRIPTION items from GDAL metadata XML.
// Missing entries are returned as "".
func bandDescriptions(metadata string) map[int]string {
	out := map[int]string{}
	if metadata == "" {
		return out
	}
	var doc struct {
		Items []struct {
			Name   string `xml:"name,attr"`
			Sample *int   `xml:"sample,attr"`
			Role   string `xml:"role,attr"`
			Value  string `xml:",chardata"`
		} `xml:"Item"`
	}
	if err := xml.Unmarshal([]byte(metadata), &doc); err != nil {
		log.Printf("Warning: ignoring unreadable GDAL metadata: %v", err)
		return out
	}
	for _, item := range doc.Items {
		if item.Sample == nil {
			continue
		}
		if item.Role == "description" || strings.EqualFold(item.Name, "DESCRIPTION") {
			out[*item.Sample] = strings.TrimSpace(item.Value)
		}
	}
	return out
}

// scanPixels streams every strip or tile once and feeds each sample to the
// accumulator of its band.
func scanPixels(f *os.File, d *ifd, l sampleLayout, width, height, spp int, accs []*accumulator) error {
	compression := d.int(tagCompression, 1)
	predictor := d.int(tagPredictor, 1)
	if predictor == 2 && l.format == 3 {
		return fmt.Errorf("horizontal predictor on float samples")
	}
	if predictor == 3 {
		return fmt.Errorf("floating point predictor not supported")
	}

	var (
		offsets, counts []int64
		blockW, blockH  int
		tiled           = d.has(tagTileWidth)
	)
	if tiled {
		offsets, counts = d.ints(tagTileOffsets), d.ints(tagTileByteCounts)
		blockW, blockH = d.int(tagTileWidth, 0), d.int(tagTileLength, 0)
	} else {
		offsets, counts = d.ints(tagStripOffsets), d.ints(tagStripByteCounts)
		blockW, blockH = width, d.int(tagRowsPerStrip, height)
		if blockH <= 0 || blockH > height {
			blockH = height
		}
	}
	if blockW <= 0 || blockH <= 0 {
		return fmt.Errorf("invalid block size %dx%d", blockW, blockH)
	}

	across := (width + blockW - 1) / blockW
	down := (height + blockH - 1) / blockH
	planes, perBlock := 1, spp
	if d.int(tagPlanarConfig, 1) == 2 {
		planes, perBlock = spp, 1
	}
	if len(offsets) < across*down*planes || len(counts) < len(offsets) {
		return fmt.Errorf("expected %d data blocks, found %d", across*down*planes, len(offsets))
	}

	rowBytes := blockW * perBlock * l.size
	for plane := 0; plane < planes; plane++ {
		for by := 0; by < down; by++ {
			rows := blockH
			if !tiled && (by+1)*blockH > height {
				rows = height - by*blockH
			}
			for bx := 0; bx < across; bx++ {
				idx := plane*across*down + by*across + bx
				data, err := readBlock(f, offsets[idx], counts[idx], compression)
				if err != nil {
					return err
				}
				if len(data) < rows*rowBytes {
					return fmt.Errorf("block %d is short: %d of %d bytes", idx, len(data), rows*rowBytes)
				}

				for r := 0; r < rows; r++ {
					y := by*blockH + r
					if y >= height {
						break
					}
					row := data[r*rowBytes : (r+1)*rowBytes]
					if predictor == 2 {
						undoHorizontal(row, perBlock, l.size, d.order)
					}
					for c := 0; c < blockW; c++ {
						if bx*blockW+c >= width {
							break
						}
						for s := 0; s < perBlock; s++ {
							band := s
							if planes > 1 {
								band = plane
							}
							off := (c*perBlock + s) * l.size
							accs[band].add(l.value(row[off:off+l.size], d.order))
						}
					}
				}
			}
		}
	}
	return nil
}

func readBlock(f *os.File, offset, count int64, compression int) ([]byte, error) {
	sr := io.NewSectionReader(f, offset, count)
	var r io.Reader
	switch compression {
	case 1:
		r = sr
	case 8, 32946:
		zr, err := zlib.NewReader(sr)
		if err != nil {
			return nil, fmt.Errorf("failed to open deflate block: %w", err)
		}
		defer zr.Close()
		r = zr
	case 5:
		lr := lzw.NewReader(sr, lzw.MSB, 8)
		defer lr.Close()
		r = lr
	default:
		return nil, fmt.Errorf("compression %d not supported", compression)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data block: %w", err)
	}
	return data, nil
}

// undoHorizontal reverses TIFF predictor 2: each sample is stored as the
// difference to the same component of the previous pixel.
func undoHorizontal(row []byte, stride, size int, order binary.ByteOrder) {
	n := len(row) / size
	for i := stride; i < n; i++ {
		cur, prev := row[i*size:], row[(i-stride)*size:]
		switch size {
		case 1:
			cur[0] += prev[0]
		case 2:
			order.PutUint16(cur, order.Uint16(cur)+order.Uint16(prev))
		case 4:
			order.PutUint32(cur, order.Uint32(cur)+order.Uint32(prev))
		case 8:
			order.PutUint64(cur, order.Uint64(cur)+order.Uint64(prev))
		}
	}
}
