package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"geo-ingest-backend/internal/crs"
	"github.com/paulmach/orb"
)

// DefaultNoData marks empty cells in grids built from XYZ points.
const DefaultNoData = -9999.0

// Grid is a single-band regular grid held in memory, rows top to bottom.
type Grid struct {
	Width, Height int
	// MinX, MinY is the lower-left corner of the lower-left cell.
	MinX, MinY float64
	CellX      float64
	CellY      float64
	NoData     float64
	Values     []float64
}

// Info summarizes the grid the same way the file readers do.
func (g *Grid) Info() *Info {
	noData := g.NoData
	band := Band{Index: 1, DataType: "float64", NoData: &noData}
	acc := newAccumulator(&noData)
	for _, v := range g.Values {
		acc.add(v)
	}
	acc.apply(&band)

	return &Info{
		Width:      g.Width,
		Height:     g.Height,
		PixelSizeX: g.CellX,
		PixelSizeY: g.CellY,
		Bounds: orb.Bound{
			Min: orb.Point{g.MinX, g.MinY},
			Max: orb.Point{g.MinX + float64(g.Width)*g.CellX, g.MinY + float64(g.Height)*g.CellY},
		},
		Bands: []Band{band},
	}
}

// WriteASCIIGrid encodes g as an ESRI ASCII grid, the form the map server
// accepts for plain-text elevation models.
func (g *Grid) WriteASCIIGrid(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\n", g.Width, g.Height, ftoa(g.MinX), ftoa(g.MinY))
	if g.CellX == g.CellY {
		fmt.Fprintf(bw, "cellsize %s\n", ftoa(g.CellX))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", ftoa(g.CellX), ftoa(g.CellY))
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", ftoa(g.NoData))
	for r := 0; r < g.Height; r++ {
		row := g.Values[r*g.Width : (r+1)*g.Width]
		for c, v := range row {
			if c > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(ftoa(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// asciiHeader holds the ESRI ASCII grid header keys.
type asciiHeader struct {
	ncols, nrows int
	xll, yll     float64
	center       bool
	cellX, cellY float64
	noData       *float64
}

func readASCIIGrid(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ascii grid: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	h, first, err := readASCIIHeader(sc)
	if err != nil {
		return nil, fmt.Errorf("invalid ascii grid %s: %w", filepath.Base(path), err)
	}

	band := Band{Index: 1, DataType: "float32", NoData: h.noData}
	acc := newAccumulator(h.noData)
	total := h.ncols * h.nrows
	read := 0
	consume := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("bad cell value %q", tok)
		}
		acc.add(v)
		read++
		return nil
	}
	if first != "" {
		if err := consume(first); err != nil {
			return nil, err
		}
	}
	for read < total && sc.Scan() {
		if err := consume(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ascii grid: %w", err)
	}
	if read < total {
		return nil, fmt.Errorf("ascii grid %s is truncated: %d of %d cells", filepath.Base(path), read, total)
	}
	acc.apply(&band)

	minX, minY := h.xll, h.yll
	if h.center {
		minX -= h.cellX / 2
		minY -= h.cellY / 2
	}
	info := &Info{
		Format:     FormatASCIIGrid,
		Width:      h.ncols,
		Height:     h.nrows,
		PixelSizeX: h.cellX,
		PixelSizeY: h.cellY,
		Bounds: orb.Bound{
			Min: orb.Point{minX, minY},
			Max: orb.Point{minX + float64(h.ncols)*h.cellX, minY + float64(h.nrows)*h.cellY},
		},
		Bands: []Band{band},
	}
	info.CRS = prjCRS(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	return info, nil
}

// readASCIIHeader consumes key/value pairs until the first cell value,
// which it returns so the caller does not lose it.
func readASCIIHeader(sc *bufio.Scanner) (asciiHeader, string, error) {
	var h asciiHeader
	seen := map[string]bool{}
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			return h, key, checkHeader(h, seen)
		}
		if !sc.Scan() {
			return h, "", fmt.Errorf("header key %q has no value", key)
		}
		val := sc.Text()
		num, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return h, "", fmt.Errorf("header %s: bad value %q", key, val)
		}
		seen[key] = true
		switch key {
		case "ncols":
			h.ncols = int(num)
		case "nrows":
			h.nrows = int(num)
		case "xllcorner":
			h.xll = num
		case "yllcorner":
			h.yll = num
		case "xllcenter":
			h.xll, h.center = num, true
		case "yllcenter":
			h.yll, h.center = num, true
		case "cellsize":
			h.cellX, h.cellY = num, num
		case "dx":
			h.cellX = num
		case "dy":
			h.cellY = num
		case "nodata_value":
			h.noData = &num
		}
	}
	return h, "", checkHeader(h, seen)
}

func checkHeader(h asciiHeader, seen map[string]bool) error {
	if h.ncols <= 0 || h.nrows <= 0 {
		return fmt.Errorf("ncols and nrows are required")
	}
	if h.cellX <= 0 || h.cellY <= 0 {
		return fmt.Errorf("cellsize is required")
	}
	if !(seen["xllcorner"] || seen["xllcenter"]) || !(seen["yllcorner"] || seen["yllcenter"]) {
		return fmt.Errorf("lower-left origin is required")
	}
	return nil
}

// prjCRS recognises the two systems this deployment sees in .prj sidecars.
// Anything else is left to coordinate-range detection.
func prjCRS(path string) crs.CRS {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	wkt := strings.ToUpper(string(data))
	if i := strings.Index(wkt, "UTM ZONE "); i >= 0 {
		rest := wkt[i+len("UTM ZONE "):]
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		zone, err := strconv.Atoi(rest[:n])
		if err == nil && zone >= 1 && zone <= 60 {
			if n < len(rest) && rest[n] == 'S' {
				return crs.CRS(32700 + zone)
			}
			return crs.CRS(32600 + zone)
		}
	}
	if strings.HasPrefix(wkt, "GEOGCS") && strings.Contains(wkt, "WGS") && strings.Contains(wkt, "84") {
		return crs.CRS(4326)
	}
	return 0
}

func looksLikeXYZ(text string) bool {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return false
	}
	// the last line of the sniffed prefix may be cut short
	for _, line := range lines[:len(lines)-1] {
		if _, ok := parseXYZLine(line); !ok {
			return false
		}
	}
	return true
}

func parseXYZLine(line string) ([3]float64, bool) {
	var p [3]float64
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\r'
	})
	if len(fields) < 3 {
		return p, false
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return p, false
		}
		p[i] = v
	}
	return p, true
}

// ReadXYZ builds a regular grid from "x y z" lines. The points must sit on
// a lattice; spacing is the smallest step between distinct x (and y) values.
func ReadXYZ(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xyz: %w", err)
	}
	defer f.Close()

	var points [][3]float64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, ok := parseXYZLine(text)
		if !ok {
			// a single header row is common
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("xyz line %d: expected three numbers", line)
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read xyz: %w", err)
	}
	if len(points) < 4 {
		return nil, fmt.Errorf("xyz file has %d points, need at least 4", len(points))
	}

	xs, ys := axis(points, 0), axis(points, 1)
	dx, dy := minStep(xs), minStep(ys)
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("xyz points do not form a grid")
	}

	width := int(math.Round((xs[len(xs)-1]-xs[0])/dx)) + 1
	height := int(math.Round((ys[len(ys)-1]-ys[0])/dy)) + 1
	// a scattered point cloud would explode into a mostly empty lattice
	if width*height > 16*len(points) {
		return nil, fmt.Errorf("xyz points are too sparse for a %dx%d grid", width, height)
	}

	g := &Grid{
		Width:  width,
		Height: height,
		MinX:   xs[0] - dx/2,
		MinY:   ys[0] - dy/2,
		CellX:  dx,
		CellY:  dy,
		NoData: DefaultNoData,
		Values: make([]float64, width*height),
	}
	for i := range g.Values {
		g.Values[i] = DefaultNoData
	}
	maxY := ys[len(ys)-1]
	for _, p := range points {
		col := int(math.Round((p[0] - xs[0]) / dx))
		row := int(math.Round((maxY - p[1]) / dy))
		g.Values[row*width+col] = p[2]
	}
	return g, nil
}

// axis returns the sorted distinct values of one coordinate.
func axis(points [][3]float64, i int) []float64 {
	seen := make(map[float64]struct{}, len(points))
	var out []float64
	for _, p := range points {
		if _, ok := seen[p[i]]; ok {
			continue
		}
		seen[p[i]] = struct{}{}
		out = append(out, p[i])
	}
	sort.Float64s(out)
	return out
}

func minStep(sorted []float64) float64 {
	step := 0.0
	for i := 1; i < len(sorted); i++ {
		d := sorted[i] - sorted[i-1]
		if step == 0 || d < step {
			step = d
		}
	}
	return step
}
