package processors_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"geo-ingest-backend/internal/crs"
	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/spatial"
	"geo-ingest-backend/internal/test/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memBlob struct {
	objects map[string][]byte
}

func (b *memBlob) Download(objectPath, dir string) (string, error) {
	data, ok := b.objects[objectPath]
	if !ok {
		return "", fmt.Errorf("failed to download file: %s not found", objectPath)
	}
	dst := filepath.Join(dir, "src"+strings.ToLower(filepath.Ext(objectPath)))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

type fakeTables struct {
	mu        sync.Mutex
	layers    map[string][]spatial.Row
	imagery   map[string]map[uuid.UUID]spatial.ImageryRow
	createErr error
}

func newFakeTables() *fakeTables {
	return &fakeTables{
		layers:  map[string][]spatial.Row{},
		imagery: map[string]map[uuid.UUID]spatial.ImageryRow{},
	}
}

func (f *fakeTables) CreateLayerTable(ctx context.Context, table, geometryType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.layers[table] = []spatial.Row{}
	return nil
}

func (f *fakeTables) CreateAndPopulate(ctx context.Context, table string, rows []spatial.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.layers[table] = rows
	return nil
}

func (f *fakeTables) DropTable(ctx context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.layers, table)
	return nil
}

func (f *fakeTables) EnsureImageryTable(ctx context.Context, projectID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := naming.ImageryTable(projectID)
	if f.imagery[table] == nil {
		f.imagery[table] = map[uuid.UUID]spatial.ImageryRow{}
	}
	return table, nil
}

func (f *fakeTables) UpsertImagery(ctx context.Context, table string, row spatial.ImageryRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagery[table][row.ID] = row
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	targets []geoserver.Target
	// fileSeen records whether a coverage file existed when published.
	fileSeen []bool
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, t geoserver.Target) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, t)
	_, statErr := os.Stat(t.File)
	p.fileSeen = append(p.fileSeen, t.File != "" && statErr == nil)
	if p.err != nil {
		return "", p.err
	}
	return "http://maps.test/" + t.Workspace + "/" + t.Layer, nil
}

type harness struct {
	deps      *processors.Deps
	blob      *memBlob
	tables    *fakeTables
	publisher *fakePublisher
	scratch   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		blob:      &memBlob{objects: map[string][]byte{}},
		tables:    newFakeTables(),
		publisher: &fakePublisher{},
		scratch:   t.TempDir(),
	}
	h.deps = &processors.Deps{
		Blob:       h.blob,
		Repo:       testutil.NewRepository(t),
		Tables:     h.tables,
		Publisher:  h.publisher,
		Registry:   naming.NewRegistry(),
		Normalizer: crs.NewNormalizer(nil),
		ScratchDir: h.scratch,
	}
	return h
}

func (h *harness) put(path string, data []byte) processors.Source {
	h.blob.objects[path] = data
	return processors.Source{
		Path:       path,
		StorageKey: filepath.Base(path),
		Filename:   "upload" + filepath.Ext(path),
		Size:       int64(len(data)),
		CompanyID:  "acme",
		ProjectID:  "p1",
		UserID:     "user-1",
	}
}

func (h *harness) requireScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.scratch)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch copies must be removed")
}

// exifEntry is one IFD entry for the EXIF test encoder.
type exifEntry struct {
	typ   uint16
	count uint32
	data  []byte
}

func exifASCII(s string) exifEntry {
	b := append([]byte(s), 0)
	return exifEntry{typ: 2, count: uint32(len(b)), data: b}
}

func exifLong(v uint32) exifEntry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return exifEntry{typ: 4, count: 1, data: b}
}

func exifRationals(v ...[2]uint32) exifEntry {
	b := make([]byte, 8*len(v))
	for i, r := range v {
		binary.LittleEndian.PutUint32(b[8*i:], r[0])
		binary.LittleEndian.PutUint32(b[8*i+4:], r[1])
	}
	return exifEntry{typ: 5, count: uint32(len(v)), data: b}
}

func encodeIFD(entries map[uint16]exifEntry, start uint32) []byte {
	tags := make([]int, 0, len(entries))
	for id := range entries {
		tags = append(tags, int(id))
	}
	sort.Ints(tags)

	var head, data bytes.Buffer
	dataOff := start + uint32(2+12*len(entries)+4)
	binary.Write(&head, binary.LittleEndian, uint16(len(entries)))
	for _, id := range tags {
		e := entries[uint16(id)]
		binary.Write(&head, binary.LittleEndian, uint16(id))
		binary.Write(&head, binary.LittleEndian, e.typ)
		binary.Write(&head, binary.LittleEndian, e.count)
		if len(e.data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.data)
			head.Write(inline)
			continue
		}
		binary.Write(&head, binary.LittleEndian, dataOff+uint32(data.Len()))
		data.Write(e.data)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	binary.Write(&head, binary.LittleEndian, uint32(0))
	return append(head.Bytes(), data.Bytes()...)
}

func dms(deg, min, sec uint32) exifEntry {
	return exifRationals([2]uint32{deg, 1}, [2]uint32{min, 1}, [2]uint32{sec, 1})
}

// geotaggedJPEG returns a minimal JPEG whose APP1 segment holds a camera
// make and a GPS position.
func geotaggedJPEG(latRef string, lat exifEntry, lonRef string, lon exifEntry) []byte {
	ifd0 := map[uint16]exifEntry{
		0x010f: exifASCII("Acme"),
		0x0110: exifASCII("StreetCam 3"),
		0x8825: exifLong(0),
	}
	gpsOffset := uint32(8 + len(encodeIFD(ifd0, 8)))
	ifd0[0x8825] = exifLong(gpsOffset)
	gps := map[uint16]exifEntry{
		0x0001: exifASCII(latRef),
		0x0002: lat,
		0x0003: exifASCII(lonRef),
		0x0004: lon,
	}

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(42))
	binary.Write(&tiff, binary.LittleEndian, uint32(8))
	tiff.Write(encodeIFD(ifd0, 8))
	tiff.Write(encodeIFD(gps, gpsOffset))

	var out bytes.Buffer
	out.Write([]byte{0xff, 0xd8, 0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(2+6+tiff.Len()))
	out.WriteString("Exif\x00\x00")
	out.Write(tiff.Bytes())
	out.Write([]byte{0xff, 0xd9})
	return out.Bytes()
}
