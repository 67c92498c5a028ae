package processors

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"geo-ingest-backend/internal/models"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// maxTagText caps the text kept per tag in ImageryRecord.Tags.
const maxTagText = 256

// tags reads single EXIF fields. Every accessor swallows its own error so
// one bad tag only empties its own field.
type tags struct {
	x *exif.Exif
}

func (t tags) get(name exif.FieldName) *tiff.Tag {
	tag, err := t.x.Get(name)
	if err != nil {
		return nil
	}
	return tag
}

func (t tags) str(name exif.FieldName) string {
	tag := t.get(name)
	if tag == nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func (t tags) int(name exif.FieldName) *int {
	tag := t.get(name)
	if tag == nil {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &v
}

func (t tags) rat(name exif.FieldName) *float64 {
	tag := t.get(name)
	if tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

func (t tags) time(name exif.FieldName) *time.Time {
	s := t.str(name)
	if s == "" {
		return nil
	}
	ts, err := time.Parse(exifTimeLayout, s)
	if err != nil {
		return nil
	}
	return &ts
}

// coordinate converts a degree/minute/second triple to decimal degrees and
// negates it for the S and W references.
func (t tags) coordinate(value, ref exif.FieldName) *float64 {
	tag := t.get(value)
	if tag == nil {
		return nil
	}
	var parts [3]float64
	for i := range parts {
		if uint32(i) >= tag.Count {
			break
		}
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return nil
		}
		parts[i] = float64(num) / float64(den)
	}
	v := parts[0] + parts[1]/60 + parts[2]/3600
	if r := strings.ToUpper(t.str(ref)); r == "S" || r == "W" {
		v = -v
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (t tags) label(name exif.FieldName, labels map[int]string) string {
	v := t.int(name)
	if v == nil {
		return ""
	}
	if l, ok := labels[*v]; ok {
		return l
	}
	return fmt.Sprintf("%d", *v)
}

var (
	exposureModes = map[int]string{0: "Auto", 1: "Manual", 2: "Auto bracket"}
	whiteBalances = map[int]string{0: "Auto", 1: "Manual"}
	colorSpaces   = map[int]string{1: "sRGB", 2: "Adobe RGB", 65535: "Uncalibrated"}
	compressions  = map[int]string{1: "Uncompressed", 6: "JPEG", 7: "JPEG", 8: "Deflate"}
	altitudeRefs  = map[int]string{0: "Above Sea Level", 1: "Below Sea Level"}
)

func flashLabel(v *int) string {
	switch {
	case v == nil:
		return ""
	case *v&1 == 1:
		return "Fired"
	default:
		return "No flash"
	}
}

// tagText collects every readable tag as text.
type tagText map[string]string

func (m tagText) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if name == exif.MakerNote || name == exif.UserComment {
		return nil
	}
	s := tag.String()
	if len(s) > maxTagText {
		s = s[:maxTagText]
	}
	m[string(name)] = strings.Trim(s, `"`)
	return nil
}

// GPS is an embedded coordinate pair in decimal degrees.
type GPS struct {
	Latitude  float64
	Longitude float64
}

// ReadImageMetadata fills rec from the EXIF block of the image at path and
// returns the embedded position, or nil when the image carries none. A file
// without EXIF is not an error; rec is simply left as it was.
func ReadImageMetadata(path string, rec *models.ImageryRecord) (*GPS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if x == nil {
		log.Printf("No EXIF metadata in %s: %v", rec.OriginalFilename, err)
		return nil, nil
	}
	if err != nil {
		log.Printf("Warning: partial EXIF metadata in %s: %v", rec.OriginalFilename, err)
	}
	t := tags{x: x}
	applyTags(t, rec)

	text := tagText{}
	if err := x.Walk(text); err == nil && len(text) > 0 {
		if encoded, err := json.Marshal(text); err == nil {
			rec.Tags = encoded
		}
	}

	lat := t.coordinate(exif.GPSLatitude, exif.GPSLatitudeRef)
	lon := t.coordinate(exif.GPSLongitude, exif.GPSLongitudeRef)
	if lat == nil || lon == nil {
		return nil, nil
	}
	return &GPS{Latitude: *lat, Longitude: *lon}, nil
}

func applyTags(t tags, rec *models.ImageryRecord) {
	rec.CameraMake = t.str(exif.Make)
	rec.CameraModel = t.str(exif.Model)
	rec.LensMake = t.str(exif.LensMake)
	rec.LensModel = t.str(exif.LensModel)
	rec.Software = t.str(exif.Software)

	rec.FocalLength = t.rat(exif.FocalLength)
	if v := t.int(exif.FocalLengthIn35mmFilm); v != nil {
		f := float64(*v)
		rec.FocalLength35mm = &f
	}
	rec.FNumber = t.rat(exif.FNumber)
	if tag := t.get(exif.ExposureTime); tag != nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			rec.ExposureTime = fmt.Sprintf("%d/%d", num, den)
		}
	}
	rec.ISOSpeed = t.int(exif.ISOSpeedRatings)
	rec.ExposureMode = t.label(exif.ExposureMode, exposureModes)
	rec.WhiteBalance = t.label(exif.WhiteBalance, whiteBalances)
	rec.Flash = flashLabel(t.int(exif.Flash))

	rec.ImageWidth = t.int(exif.ImageWidth)
	rec.ImageHeight = t.int(exif.ImageLength)
	rec.Orientation = t.int(exif.Orientation)
	rec.ColorSpace = t.label(exif.ColorSpace, colorSpaces)
	rec.Compression = t.label(exif.Compression, compressions)
	rec.PixelXDimension = t.int(exif.PixelXDimension)
	rec.PixelYDimension = t.int(exif.PixelYDimension)

	rec.Altitude = t.rat(exif.GPSAltitude)
	rec.AltitudeRef = t.label(exif.GPSAltitudeRef, altitudeRefs)
	rec.GPSSpeed = t.rat(exif.GPSSpeed)
	rec.GPSTrack = t.rat(exif.GPSTrack)
	rec.GPSImgDirection = t.rat(exif.GPSImgDirection)
	rec.GPSImgDirectionRef = t.str(exif.GPSImgDirectionRef)

	rec.CapturedAt = t.time(exif.DateTimeOriginal)
	if rec.CapturedAt == nil {
		rec.CapturedAt = t.time(exif.DateTime)
	}
	rec.DateTimeDigitized = t.time(exif.DateTimeDigitized)
}
