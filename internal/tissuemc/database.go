package tissuemc

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
)

var databaseMagic = [4]byte{'T', 'M', 'D', 'B'}

// nativeHeaderSize: magic, version, element type code, element size,
// subregions (uint32 each) and the record count (uint64).
const nativeHeaderSize = 4 + 4*4 + 8

// recordCodec is the binary layout of one database record type.
type recordCodec[T any] struct {
	elementType string
	code        uint32
	size        func(subregions int) int
	put         func(b []byte, v T)
	get         func(b []byte, subregions int) T
	// fileHeader, when set, replaces the native header (external layouts).
	fileHeader func() []byte
}

func (c *recordCodec[T]) headerSize() int {
	if c.fileHeader != nil {
		return len(c.fileHeader())
	}
	return nativeHeaderSize
}

func putF64(b []byte, v Real) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) }
func getF64(b []byte) Real    { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }

// PhotonDataPointCodec: 8 float64 and a uint32 state, 68 bytes.
var PhotonDataPointCodec = &recordCodec[PhotonDataPoint]{
	elementType: "PhotonDataPoint",
	code:        1,
	size:        func(int) int { return 8*8 + 4 },
	put: func(b []byte, dp PhotonDataPoint) {
		for i, v := range [8]Real{dp.Position.X, dp.Position.Y, dp.Position.Z,
			dp.Direction.Ux, dp.Direction.Uy, dp.Direction.Uz, dp.Weight, dp.TotalTime} {
			putF64(b[8*i:], v)
		}
		binary.LittleEndian.PutUint32(b[64:], uint32(dp.StateFlag))
	},
	get: func(b []byte, _ int) PhotonDataPoint {
		return PhotonDataPoint{
			Position:  Position{X: getF64(b[0:]), Y: getF64(b[8:]), Z: getF64(b[16:])},
			Direction: Direction{Ux: getF64(b[24:]), Uy: getF64(b[32:]), Uz: getF64(b[40:])},
			Weight:    getF64(b[48:]),
			TotalTime: getF64(b[56:]),
			StateFlag: PhotonState(binary.LittleEndian.Uint32(b[64:])),
		}
	},
}

// CollisionInfoCodec: per region a float64 path length and an int64 count.
var CollisionInfoCodec = &recordCodec[CollisionInfo]{
	elementType: "CollisionInfo",
	code:        2,
	size:        func(n int) int { return 16 * n },
	put: func(b []byte, ci CollisionInfo) {
		for i, r := range ci {
			putF64(b[16*i:], r.PathLength)
			binary.LittleEndian.PutUint64(b[16*i+8:], uint64(r.NumberOfCollisions))
		}
	},
	get: func(b []byte, n int) CollisionInfo {
		ci := make(CollisionInfo, n)
		for i := range ci {
			ci[i].PathLength = getF64(b[16*i:])
			ci[i].NumberOfCollisions = int64(binary.LittleEndian.Uint64(b[16*i+8:]))
		}
		return ci
	},
}

// DatabaseHeader is the JSON side header written next to every database.
type DatabaseHeader struct {
	ElementType             string                  `json:"ElementType"`
	ElementSize             int                     `json:"ElementSize"`
	NumberOfElements        int64                   `json:"NumberOfElements"`
	Version                 int                     `json:"Version"`
	NumberOfSubRegions      int                     `json:"NumberOfSubRegions"`
	NumberOfPhotons         int64                   `json:"NumberOfPhotons"`
	VirtualBoundaryType     VirtualBoundaryType     `json:"VirtualBoundaryType"`
	AbsorptionWeightingType AbsorptionWeightingType `json:"AbsorptionWeightingType,omitempty"`
	OpticalProperties       []OpticalProperties     `json:"OpticalProperties,omitempty"`
}

func sideHeaderPath(path string) string { return path + ".txt" }

// DatabaseWriter appends fixed-size records to a file. It is not safe for
// concurrent use.
type DatabaseWriter[T any] struct {
	Header DatabaseHeader

	path  string
	codec *recordCodec[T]
	f     *os.File
	w     *bufio.Writer
	buf   []byte
	count int64
}

// CreateDatabase writes the fixed header; records follow with Write and
// Close patches the record count and writes the side header.
func CreateDatabase[T any](path string, codec *recordCodec[T], header DatabaseHeader) (*DatabaseWriter[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError("create database directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, ioError("create database", err)
	}
	size := codec.size(header.NumberOfSubRegions)
	header.ElementType = codec.elementType
	header.ElementSize = size
	if header.Version == 0 {
		header.Version = DatabaseVersion
	}
	dw := &DatabaseWriter[T]{
		Header: header,
		path:   path,
		codec:  codec,
		f:      f,
		w:      bufio.NewWriterSize(f, writerBufSize),
		buf:    make([]byte, size),
	}
	var hdr []byte
	if codec.fileHeader != nil {
		hdr = codec.fileHeader()
	} else {
		hdr = make([]byte, nativeHeaderSize)
		copy(hdr, databaseMagic[:])
		binary.LittleEndian.PutUint32(hdr[4:], uint32(header.Version))
		binary.LittleEndian.PutUint32(hdr[8:], codec.code)
		binary.LittleEndian.PutUint32(hdr[12:], uint32(size))
		binary.LittleEndian.PutUint32(hdr[16:], uint32(header.NumberOfSubRegions))
	}
	if _, err := dw.w.Write(hdr); err != nil {
		f.Close()
		return nil, ioError("write database header", err)
	}
	return dw, nil
}

// Write appends one record.
func (dw *DatabaseWriter[T]) Write(v T) error {
	clear(dw.buf)
	dw.codec.put(dw.buf, v)
	if _, err := dw.w.Write(dw.buf); err != nil {
		return ioError("write "+dw.path, err)
	}
	dw.count++
	return nil
}

// Count of records written so far.
func (dw *DatabaseWriter[T]) Count() int64 { return dw.count }

// Close flushes the records, finalizes the element count and writes the side header.
func (dw *DatabaseWriter[T]) Close() error {
	if dw.f == nil {
		return nil
	}
	f := dw.f
	dw.f = nil
	if err := dw.w.Flush(); err != nil {
		f.Close()
		return ioError("flush "+dw.path, err)
	}
	if dw.codec.fileHeader == nil {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(dw.count))
		if _, err := f.WriteAt(n[:], nativeHeaderSize-8); err != nil {
			f.Close()
			return ioError("finalize "+dw.path, err)
		}
	}
	if err := f.Close(); err != nil {
		return ioError("close "+dw.path, err)
	}
	dw.Header.NumberOfElements = dw.count
	return writeJSON(sideHeaderPath(dw.path), dw.Header)
}

// DatabaseReader streams the records of a database file.
type DatabaseReader[T any] struct {
	Header DatabaseHeader

	path   string
	codec  *recordCodec[T]
	f      *os.File
	offset int64
	count  int64
}

// OpenDatabase validates the header against codec. Records are read lazily.
func OpenDatabase[T any](path string, codec *recordCodec[T]) (*DatabaseReader[T], error) {
	var header DatabaseHeader
	if err := readJSON(sideHeaderPath(path), &header); err != nil {
		return nil, err
	}
	if header.ElementType != codec.elementType {
		return nil, fmt.Errorf("database %s: %w: holds %s records, want %s", path, ErrConfiguration, header.ElementType, codec.elementType)
	}
	if size := codec.size(header.NumberOfSubRegions); size != header.ElementSize {
		return nil, fmt.Errorf("database %s: %w: header records %d-byte elements, %s with %d regions needs %d",
			path, ErrConfiguration, header.ElementSize, codec.elementType, header.NumberOfSubRegions, size)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("open database", err)
	}
	dr := &DatabaseReader[T]{Header: header, path: path, codec: codec, f: f, offset: int64(codec.headerSize())}
	if err := dr.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return dr, nil
}

func (dr *DatabaseReader[T]) readHeader() error {
	size := dr.codec.size(dr.Header.NumberOfSubRegions)
	hdr := make([]byte, dr.offset)
	if _, err := io.ReadFull(dr.f, hdr); err != nil {
		return ioError("read header of "+dr.path, err)
	}
	if dr.codec.fileHeader != nil {
		want := dr.codec.fileHeader()
		if string(hdr[:4]) != string(want[:4]) {
			return fmt.Errorf("database %s: %w: unexpected %s header", dr.path, ErrIO, dr.codec.elementType)
		}
		st, err := dr.f.Stat()
		if err != nil {
			return ioError("stat "+dr.path, err)
		}
		dr.count = (st.Size() - dr.offset) / int64(size)
		return nil
	}
	if [4]byte(hdr[:4]) != databaseMagic {
		return fmt.Errorf("database %s: %w: bad magic %q", dr.path, ErrIO, hdr[:4])
	}
	code := binary.LittleEndian.Uint32(hdr[8:])
	esize := binary.LittleEndian.Uint32(hdr[12:])
	subregions := binary.LittleEndian.Uint32(hdr[16:])
	if code != dr.codec.code || int(esize) != size || int(subregions) != dr.Header.NumberOfSubRegions {
		return fmt.Errorf("database %s: %w: header layout (code %d, size %d, regions %d) does not match %s",
			dr.path, ErrIO, code, esize, subregions, dr.codec.elementType)
	}
	dr.count = int64(binary.LittleEndian.Uint64(hdr[20:]))
	return nil
}

// Count of records in the file.
func (dr *DatabaseReader[T]) Count() int64 { return dr.count }

// Records yields every record in write order without loading the file. A
// read failure is yielded once as the error and ends the sequence.
func (dr *DatabaseReader[T]) Records() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		size := dr.codec.size(dr.Header.NumberOfSubRegions)
		r := bufio.NewReaderSize(io.NewSectionReader(dr.f, dr.offset, dr.count*int64(size)), writerBufSize)
		buf := make([]byte, size)
		for i := int64(0); i < dr.count; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				var zero T
				yield(zero, ioError(fmt.Sprintf("read record %d of %s", i, dr.path), err))
				return
			}
			if !yield(dr.codec.get(buf, dr.Header.NumberOfSubRegions), nil) {
				return
			}
		}
	}
}

func (dr *DatabaseReader[T]) Close() error {
	if dr.f == nil {
		return nil
	}
	err := dr.f.Close()
	dr.f = nil
	if err != nil {
		return ioError("close "+dr.path, err)
	}
	return nil
}

// DatabaseKind names a history database a simulation can write.
type DatabaseKind string

const (
	DiffuseReflectanceDatabase      DatabaseKind = "DiffuseReflectance"
	DiffuseTransmittanceDatabase    DatabaseKind = "DiffuseTransmittance"
	SpecularReflectanceDatabase     DatabaseKind = "SpecularReflectance"
	PMCDiffuseReflectanceDatabase   DatabaseKind = "pMCDiffuseReflectance"
	PMCDiffuseTransmittanceDatabase DatabaseKind = "pMCDiffuseTransmittance"
	ZRDDiffuseReflectanceDatabase   DatabaseKind = "ZRDDiffuseReflectance"
	ZRDDiffuseTransmittanceDatabase DatabaseKind = "ZRDDiffuseTransmittance"
	collisionInfoFileSuffix                      = "CollisionInfoDatabase"
)

type databaseKindInfo struct {
	vb   VirtualBoundaryType
	file string
	// collisionFile is set for perturbation kinds.
	collisionFile string
	zrd           bool
}

var databaseKinds = map[DatabaseKind]databaseKindInfo{
	DiffuseReflectanceDatabase:      {vb: DiffuseReflectanceVB, file: "DiffuseReflectanceDatabase"},
	DiffuseTransmittanceDatabase:    {vb: DiffuseTransmittanceVB, file: "DiffuseTransmittanceDatabase"},
	SpecularReflectanceDatabase:     {vb: SpecularReflectanceVB, file: "SpecularReflectanceDatabase"},
	PMCDiffuseReflectanceDatabase:   {vb: PMCDiffuseReflectanceVB, file: "pMCDiffuseReflectanceDatabase", collisionFile: collisionInfoFileSuffix},
	PMCDiffuseTransmittanceDatabase: {vb: PMCDiffuseTransmittanceVB, file: "pMCDiffuseTransmittanceDatabase", collisionFile: "Transmittance" + collisionInfoFileSuffix},
	ZRDDiffuseReflectanceDatabase:   {vb: DiffuseReflectanceVB, file: "ZRDDiffuseReflectanceDatabase", zrd: true},
	ZRDDiffuseTransmittanceDatabase: {vb: DiffuseTransmittanceVB, file: "ZRDDiffuseTransmittanceDatabase", zrd: true},
}

func (k DatabaseKind) info() (databaseKindInfo, bool) {
	i, ok := databaseKinds[k]
	return i, ok
}

func (k DatabaseKind) VirtualBoundary() VirtualBoundaryType { i, _ := k.info(); return i.vb }
func (k DatabaseKind) HasCollisionInfo() bool               { i, _ := k.info(); return i.vb.IsPerturbation() }
func (k DatabaseKind) IsZRD() bool                          { i, _ := k.info(); return i.zrd }
func (k DatabaseKind) FileName() string                     { i, _ := k.info(); return i.file }
func (k DatabaseKind) CollisionInfoFileName() string        { i, _ := k.info(); return i.collisionFile }

// kindWriter owns the files of one database kind during a run.
type kindWriter struct {
	kind       DatabaseKind
	photons    *DatabaseWriter[PhotonDataPoint]
	collisions *DatabaseWriter[CollisionInfo]
	zrd        *DatabaseWriter[ZRDRaySegment]
}

// databaseSet is written only by the batch reducer.
type databaseSet struct {
	writers []*kindWriter
}

func openDatabases(ctx context.Context, dir string, kinds []DatabaseKind, header DatabaseHeader) (_ *databaseSet, err error) {
	_, span := startSpan(ctx, "tissuemc.openDatabases", attribute.Int("databases", len(kinds)))
	defer span.End()
	set := &databaseSet{}
	defer func() {
		if err != nil {
			set.abort()
		}
	}()
	for _, k := range kinds {
		info, ok := k.info()
		if !ok {
			return nil, invalid("Options.Databases", "unknown database kind %q", k)
		}
		h := header
		h.VirtualBoundaryType = info.vb
		kw := &kindWriter{kind: k}
		set.writers = append(set.writers, kw)
		if info.zrd {
			if kw.zrd, err = CreateDatabase(filepath.Join(dir, info.file), ZRDRaySegmentCodec, h); err != nil {
				return nil, err
			}
			continue
		}
		if kw.photons, err = CreateDatabase(filepath.Join(dir, info.file), PhotonDataPointCodec, h); err != nil {
			return nil, err
		}
		if info.collisionFile != "" {
			if kw.collisions, err = CreateDatabase(filepath.Join(dir, info.collisionFile), CollisionInfoCodec, h); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// write appends one batch's buffered records, in the same order as kinds.
func (s *databaseSet) write(bufs []*recordBuffer) error {
	for i, kw := range s.writers {
		b := bufs[i]
		for j := range b.photons {
			var err error
			switch {
			case kw.zrd != nil:
				err = kw.zrd.Write(NewZRDRaySegment(&b.photons[j]))
			default:
				err = kw.photons.Write(b.photons[j])
				if err == nil && kw.collisions != nil {
					err = kw.collisions.Write(b.collisions[j])
				}
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *databaseSet) close(ctx context.Context, nPhotons int64) error {
	_, span := startSpan(ctx, "tissuemc.closeDatabases", attribute.Int64("photons", nPhotons))
	defer span.End()
	var errs []error
	for _, kw := range s.writers {
		if kw.photons != nil {
			kw.photons.Header.NumberOfPhotons = nPhotons
			errs = append(errs, kw.photons.Close())
		}
		if kw.collisions != nil {
			kw.collisions.Header.NumberOfPhotons = nPhotons
			errs = append(errs, kw.collisions.Close())
		}
		if kw.zrd != nil {
			kw.zrd.Header.NumberOfPhotons = nPhotons
			errs = append(errs, kw.zrd.Close())
		}
	}
	return errors.Join(errs...)
}

// abort closes files after a failed run; their content is incomplete.
func (s *databaseSet) abort() {
	for _, kw := range s.writers {
		for _, f := range []interface{ closeFile() }{kw.photons, kw.collisions, kw.zrd} {
			if f != nil {
				f.closeFile()
			}
		}
	}
}

func (dw *DatabaseWriter[T]) closeFile() {
	if dw != nil && dw.f != nil {
		dw.f.Close()
		dw.f = nil
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ioError("write "+path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ioError("read "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, ErrConfiguration, err)
	}
	return nil
}
