package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// TIFF tags used by the reader.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGDALNoData      = 42113
)

const (
	compressionNone       = 1
	compressionDeflate    = 8
	compressionOldDeflate = 32946

	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// ifdEntry is one parsed IFD entry with its value bytes resolved, whether
// they were stored inline or at an offset.
type ifdEntry struct {
	ftype uint16
	count uint32
	data  []byte
}

var fieldSize = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// OpenGeoTIFF reads a single-band GeoTIFF into an in-memory Grid. It
// supports classic (non-Big) TIFF, strip and tile layouts, no compression
// or deflate, and integer or floating-point samples. Georeferencing comes
// from the ModelPixelScale and ModelTiepoint tags; nodata from the
// GDAL_NODATA tag unless the descriptor overrides it.
func OpenGeoTIFF(d Descriptor) (*Grid, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read %s", d.Path)
	}
	if len(data) < 8 {
		return nil, eris.Errorf("raster: %s: not a TIFF file", d.Path)
	}

	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, eris.Errorf("raster: %s: bad TIFF byte order mark", d.Path)
	}
	switch bo.Uint16(data[2:4]) {
	case 42:
	case 43:
		return nil, eris.Errorf("raster: %s: BigTIFF is not supported", d.Path)
	default:
		return nil, eris.Errorf("raster: %s: bad TIFF magic", d.Path)
	}

	tags, err := parseIFD(data, bo, bo.Uint32(data[4:8]))
	if err != nil {
		return nil, eris.Wrapf(err, "raster: %s", d.Path)
	}

	width := int(tagUint(tags, bo, tagImageWidth, 0))
	height := int(tagUint(tags, bo, tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, eris.Errorf("raster: %s: missing image dimensions", d.Path)
	}
	if spp := tagUint(tags, bo, tagSamplesPerPixel, 1); spp != 1 {
		return nil, eris.Errorf("raster: %s: %d samples per pixel, want single-band", d.Path, spp)
	}
	bits := int(tagUint(tags, bo, tagBitsPerSample, 8))
	sfmt := int(tagUint(tags, bo, tagSampleFormat, sampleFormatUint))
	compression := int(tagUint(tags, bo, tagCompression, compressionNone))

	vals := make([]float64, width*height)
	if _, tiled := tags[tagTileOffsets]; tiled {
		err = decodeTiles(data, bo, tags, width, height, bits, sfmt, compression, vals)
	} else {
		err = decodeStrips(data, bo, tags, width, height, bits, sfmt, compression, vals)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "raster: %s", d.Path)
	}

	scale, ok := tags[tagModelPixelScale]
	tie, ok2 := tags[tagModelTiepoint]
	if !ok || !ok2 {
		return nil, eris.Errorf("raster: %s: missing georeferencing tags", d.Path)
	}
	sc, err := tagFloats(scale, bo)
	if err != nil || len(sc) < 2 || sc[0] <= 0 || sc[1] <= 0 {
		return nil, eris.Errorf("raster: %s: bad ModelPixelScale", d.Path)
	}
	tp, err := tagFloats(tie, bo)
	if err != nil || len(tp) < 6 {
		return nil, eris.Errorf("raster: %s: bad ModelTiepoint", d.Path)
	}
	// Tiepoint maps raster (i, j) to model (x, y); shift to the upper-left
	// corner of the image.
	originX := tp[3] - tp[0]*sc[0]
	originY := tp[4] + tp[1]*sc[1]

	nodata := d.NoData
	if nodata == nil {
		if e, ok := tags[tagGDALNoData]; ok {
			s := strings.Trim(string(e.data), "\x00 ")
			if v, perr := strconv.ParseFloat(s, 64); perr == nil {
				nodata = &v
			}
		}
	}

	return NewGrid(originX, originY, sc[0], sc[1], width, height, vals, nodata)
}

func parseIFD(data []byte, bo binary.ByteOrder, off uint32) (map[uint16]ifdEntry, error) {
	if int(off)+2 > len(data) {
		return nil, eris.New("truncated IFD")
	}
	n := int(bo.Uint16(data[off : off+2]))
	tags := make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		base := int(off) + 2 + i*12
		if base+12 > len(data) {
			return nil, eris.New("truncated IFD entry")
		}
		tag := bo.Uint16(data[base : base+2])
		ftype := bo.Uint16(data[base+2 : base+4])
		count := bo.Uint32(data[base+4 : base+8])
		size, ok := fieldSize[ftype]
		if !ok {
			continue
		}
		total := size * int(count)
		var raw []byte
		if total <= 4 {
			raw = data[base+8 : base+8+total]
		} else {
			voff := int(bo.Uint32(data[base+8 : base+12]))
			if voff+total > len(data) {
				return nil, eris.Errorf("tag %d value out of range", tag)
			}
			raw = data[voff : voff+total]
		}
		tags[tag] = ifdEntry{ftype: ftype, count: count, data: raw}
	}
	return tags, nil
}

// tagUint returns the first value of an integer tag, or def when absent.
func tagUint(tags map[uint16]ifdEntry, bo binary.ByteOrder, tag uint16, def uint64) uint64 {
	e, ok := tags[tag]
	if !ok || e.count == 0 {
		return def
	}
	vs, err := tagUints(e, bo)
	if err != nil || len(vs) == 0 {
		return def
	}
	return vs[0]
}

func tagUints(e ifdEntry, bo binary.ByteOrder) ([]uint64, error) {
	out := make([]uint64, 0, e.count)
	switch e.ftype {
	case 1: // BYTE
		for _, b := range e.data {
			out = append(out, uint64(b))
		}
	case 3: // SHORT
		for i := 0; i+2 <= len(e.data); i += 2 {
			out = append(out, uint64(bo.Uint16(e.data[i:i+2])))
		}
	case 4: // LONG
		for i := 0; i+4 <= len(e.data); i += 4 {
			out = append(out, uint64(bo.Uint32(e.data[i:i+4])))
		}
	default:
		return nil, eris.Errorf("tag field type %d is not integral", e.ftype)
	}
	return out, nil
}

func tagFloats(e ifdEntry, bo binary.ByteOrder) ([]float64, error) {
	if e.ftype != 12 {
		return nil, eris.Errorf("tag field type %d, want DOUBLE", e.ftype)
	}
	out := make([]float64, 0, e.count)
	for i := 0; i+8 <= len(e.data); i += 8 {
		out = append(out, math.Float64frombits(bo.Uint64(e.data[i:i+8])))
	}
	return out, nil
}

func decodeStrips(data []byte, bo binary.ByteOrder, tags map[uint16]ifdEntry, width, height, bits, sfmt, compression int, vals []float64) error {
	offsets, err := tagUints(tags[tagStripOffsets], bo)
	if err != nil {
		return eris.Wrap(err, "strip offsets")
	}
	counts, err := tagUints(tags[tagStripByteCounts], bo)
	if err != nil {
		return eris.Wrap(err, "strip byte counts")
	}
	if len(offsets) != len(counts) {
		return eris.New("strip offsets and byte counts disagree")
	}
	rowsPerStrip := int(tagUint(tags, bo, tagRowsPerStrip, uint64(height)))
	if rowsPerStrip <= 0 {
		rowsPerStrip = height
	}

	for i := range offsets {
		startRow := i * rowsPerStrip
		endRow := startRow + rowsPerStrip
		if endRow > height {
			endRow = height
		}
		if startRow >= height {
			break
		}
		raw, err := chunkBytes(data, offsets[i], counts[i], compression)
		if err != nil {
			return eris.Wrapf(err, "strip %d", i)
		}
		n := (endRow - startRow) * width
		samples, err := decodeSamples(raw, n, bo, bits, sfmt)
		if err != nil {
			return eris.Wrapf(err, "strip %d", i)
		}
		copy(vals[startRow*width:], samples)
	}
	return nil
}

func decodeTiles(data []byte, bo binary.ByteOrder, tags map[uint16]ifdEntry, width, height, bits, sfmt, compression int, vals []float64) error {
	offsets, err := tagUints(tags[tagTileOffsets], bo)
	if err != nil {
		return eris.Wrap(err, "tile offsets")
	}
	counts, err := tagUints(tags[tagTileByteCounts], bo)
	if err != nil {
		return eris.Wrap(err, "tile byte counts")
	}
	tw := int(tagUint(tags, bo, tagTileWidth, 0))
	th := int(tagUint(tags, bo, tagTileLength, 0))
	if tw <= 0 || th <= 0 || len(offsets) != len(counts) {
		return eris.New("bad tile layout")
	}
	tilesAcross := (width + tw - 1) / tw

	for i := range offsets {
		raw, err := chunkBytes(data, offsets[i], counts[i], compression)
		if err != nil {
			return eris.Wrapf(err, "tile %d", i)
		}
		samples, err := decodeSamples(raw, tw*th, bo, bits, sfmt)
		if err != nil {
			return eris.Wrapf(err, "tile %d", i)
		}
		tileRow := i / tilesAcross
		tileCol := i % tilesAcross
		for r := 0; r < th; r++ {
			y := tileRow*th + r
			if y >= height {
				break
			}
			for c := 0; c < tw; c++ {
				x := tileCol*tw + c
				if x >= width {
					break
				}
				vals[y*width+x] = samples[r*tw+c]
			}
		}
	}
	return nil
}

func chunkBytes(data []byte, off, count uint64, compression int) ([]byte, error) {
	if off+count > uint64(len(data)) {
		return nil, eris.New("chunk out of range")
	}
	raw := data[off : off+count]
	switch compression {
	case compressionNone:
		return raw, nil
	case compressionDeflate, compressionOldDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, eris.Wrap(err, "open deflate chunk")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, eris.Wrap(err, "inflate chunk")
		}
		return out, nil
	default:
		return nil, eris.Errorf("unsupported compression %d", compression)
	}
}

func decodeSamples(raw []byte, n int, bo binary.ByteOrder, bits, sfmt int) ([]float64, error) {
	size := bits / 8
	if size == 0 || len(raw) < n*size {
		return nil, eris.Errorf("short sample data: %d bytes for %d %d-bit samples", len(raw), n, bits)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := raw[i*size : (i+1)*size]
		switch {
		case bits == 8 && sfmt == sampleFormatUint:
			out[i] = float64(b[0])
		case bits == 8 && sfmt == sampleFormatInt:
			out[i] = float64(int8(b[0]))
		case bits == 16 && sfmt == sampleFormatUint:
			out[i] = float64(bo.Uint16(b))
		case bits == 16 && sfmt == sampleFormatInt:
			out[i] = float64(int16(bo.Uint16(b)))
		case bits == 32 && sfmt == sampleFormatUint:
			out[i] = float64(bo.Uint32(b))
		case bits == 32 && sfmt == sampleFormatInt:
			out[i] = float64(int32(bo.Uint32(b)))
		case bits == 32 && sfmt == sampleFormatFloat:
			out[i] = float64(math.Float32frombits(bo.Uint32(b)))
		case bits == 64 && sfmt == sampleFormatFloat:
			out[i] = math.Float64frombits(bo.Uint64(b))
		default:
			return nil, eris.Errorf("unsupported sample layout: %d-bit format %d", bits, sfmt)
		}
	}
	return out, nil
}
