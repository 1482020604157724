package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"mediavault/internal/model"
)

// Package extract derives dimensions, duration, and reduced-size previews
// from plaintext media bytes. Plaintext is held only transiently in memory
// during the upload pipeline; nothing here persists it. Every failure is
// non-fatal for the caller: the media object is still created with the
// corresponding fields absent.

// Metadata holds the mime-type dependent fields derived from an upload.
type Metadata struct {
	Dimensions      *model.Dimensions
	DurationSeconds *float64
}

const (
	thumbnailMaxSize = 320
	thumbnailQuality = 80
)

// Extractor derives metadata and previews. It is stateless and safe for
// concurrent use.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Probe derives {dimensions} for images, {dimensions, duration} for
// video, and {duration} for audio. Unsupported or unparseable inputs
// return an error the caller is expected to swallow.
func (e *Extractor) Probe(data []byte, mimeType string) (Metadata, error) {
	switch model.KindOf(mimeType) {
	case model.KindImage:
		return imageMetadata(data)
	case model.KindVideo:
		return videoMetadata(data, mimeType)
	case model.KindAudio:
		return audioMetadata(data, mimeType)
	default:
		return Metadata{}, fmt.Errorf("no metadata extraction for %s", mimeType)
	}
}

// Thumbnail produces a reduced-size JPEG preview for image inputs. Video
// previews would need a frame decoder and are not generated.
func (e *Extractor) Thumbnail(data []byte, mimeType string) ([]byte, error) {
	if model.KindOf(mimeType) != model.KindImage {
		return nil, fmt.Errorf("no preview for %s", mimeType)
	}
	// image.Decode handles jpeg/png natively and webp via x/image.
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fit(img, thumbnailMaxSize, thumbnailMaxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func imageMetadata(data []byte) (Metadata, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("decode image config: %w", err)
	}
	return Metadata{Dimensions: &model.Dimensions{Width: cfg.Width, Height: cfg.Height}}, nil
}

func videoMetadata(data []byte, mimeType string) (Metadata, error) {
	if mimeType != "video/mp4" {
		// webm carries its duration in EBML elements we do not parse
		return Metadata{}, fmt.Errorf("no duration probe for %s", mimeType)
	}
	md := Metadata{}
	if dur, ok := mp4Duration(data); ok {
		md.DurationSeconds = &dur
	}
	if dims, ok := mp4Dimensions(data); ok {
		md.Dimensions = dims
	}
	if md.DurationSeconds == nil && md.Dimensions == nil {
		return Metadata{}, fmt.Errorf("no mvhd/tkhd box found")
	}
	return md, nil
}

func audioMetadata(data []byte, mimeType string) (Metadata, error) {
	switch mimeType {
	case "audio/wav":
		dur, err := wavDuration(data)
		if err != nil {
			return Metadata{}, err
		}
		return Metadata{DurationSeconds: &dur}, nil
	default:
		// mp3/ogg duration needs frame walking; the field stays absent
		return Metadata{}, fmt.Errorf("no duration probe for %s", mimeType)
	}
}

// mp4Duration scans for the movie header box and computes
// duration/timescale. It tolerates both mvhd versions.
func mp4Duration(data []byte) (float64, bool) {
	idx := bytes.Index(data, []byte("mvhd"))
	if idx < 0 {
		return 0, false
	}
	body := data[idx+4:]
	if len(body) < 1 {
		return 0, false
	}
	version := body[0]
	switch version {
	case 0:
		// version(1) flags(3) ctime(4) mtime(4) timescale(4) duration(4)
		if len(body) < 20 {
			return 0, false
		}
		timescale := binary.BigEndian.Uint32(body[12:16])
		duration := binary.BigEndian.Uint32(body[16:20])
		if timescale == 0 {
			return 0, false
		}
		return float64(duration) / float64(timescale), true
	case 1:
		// version(1) flags(3) ctime(8) mtime(8) timescale(4) duration(8)
		if len(body) < 32 {
			return 0, false
		}
		timescale := binary.BigEndian.Uint32(body[20:24])
		duration := binary.BigEndian.Uint64(body[24:32])
		if timescale == 0 {
			return 0, false
		}
		return float64(duration) / float64(timescale), true
	default:
		return 0, false
	}
}

// mp4Dimensions scans for the first track header box and reads its fixed
// point 16.16 width/height.
func mp4Dimensions(data []byte) (*model.Dimensions, bool) {
	idx := bytes.Index(data, []byte("tkhd"))
	if idx < 0 {
		return nil, false
	}
	body := data[idx+4:]
	if len(body) < 1 {
		return nil, false
	}
	var offset int
	switch body[0] {
	case 0:
		offset = 76 // width at byte 76, height at 80 (version 0 layout)
	case 1:
		offset = 88
	default:
		return nil, false
	}
	if len(body) < offset+8 {
		return nil, false
	}
	width := int(binary.BigEndian.Uint32(body[offset:offset+4]) >> 16)
	height := int(binary.BigEndian.Uint32(body[offset+4:offset+8]) >> 16)
	if width == 0 || height == 0 {
		return nil, false
	}
	return &model.Dimensions{Width: width, Height: height}, true
}

// wavDuration walks RIFF chunks and computes dataSize/byteRate.
func wavDuration(data []byte) (float64, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0, fmt.Errorf("not a RIFF/WAVE stream")
	}
	var byteRate uint32
	var dataSize uint32
	pos := 12
	for pos+8 <= len(data) {
		chunkID := data[pos : pos+4]
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		switch {
		case bytes.Equal(chunkID, []byte("fmt ")):
			if body+16 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case bytes.Equal(chunkID, []byte("data")):
			dataSize = chunkSize
		}
		// chunks are word-aligned
		pos = body + int(chunkSize)
		if chunkSize%2 == 1 {
			pos++
		}
	}
	if byteRate == 0 || dataSize == 0 {
		return 0, fmt.Errorf("missing fmt or data chunk")
	}
	return float64(dataSize) / float64(byteRate), nil
}
