package tissuemc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	meanFileTag         = ".bin"
	secondMomentFileTag = "_2.bin"
	statisticsFileName  = "statistics.txt"
)

// WriteResults writes, per detector, a JSON header <Name>, the mean payload
// <Name>.bin and, when tallied, the second moment <Name>_2.bin, plus
// statistics.txt when statistics were tracked.
func WriteResults(dir string, out *SimulationOutput) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError("create output directory", err)
	}
	for _, r := range out.Detectors {
		if err := writeDetectorResult(dir, r); err != nil {
			return err
		}
	}
	if out.Statistics != nil {
		if err := writeJSON(filepath.Join(dir, statisticsFileName), out.Statistics); err != nil {
			return err
		}
	}
	return nil
}

func writeDetectorResult(dir string, r *DetectorResult) error {
	if err := writeJSON(filepath.Join(dir, r.Name), r); err != nil {
		return err
	}
	if err := writeFloats(filepath.Join(dir, r.Name+meanFileTag), r.Mean); err != nil {
		return err
	}
	if r.SecondMoment != nil {
		return writeFloats(filepath.Join(dir, r.Name+secondMomentFileTag), r.SecondMoment)
	}
	return nil
}

func writeFloats(path string, v []Real) error {
	f, err := os.Create(path)
	if err != nil {
		return ioError("create "+path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return ioError("write "+path, err)
	}
	if err := w.Flush(); err != nil {
		return ioError("flush "+path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("close "+path, err)
	}
	return nil
}

// ReadResult reads back one detector written by WriteResults.
func ReadResult(dir, name string) (*DetectorResult, error) {
	var r DetectorResult
	if err := readJSON(filepath.Join(dir, name), &r); err != nil {
		return nil, err
	}
	n := 1
	for _, d := range r.Dimensions {
		n *= d
	}
	var err error
	if r.Mean, err = readFloats(filepath.Join(dir, name+meanFileTag), n); err != nil {
		return nil, err
	}
	path2 := filepath.Join(dir, name+secondMomentFileTag)
	if _, statErr := os.Stat(path2); statErr == nil {
		if r.SecondMoment, err = readFloats(path2, n); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func readFloats(path string, n int) ([]Real, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("open "+path, err)
	}
	defer f.Close()
	v := make([]Real, n)
	if err := binary.Read(bufio.NewReader(f), binary.LittleEndian, v); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, fmt.Errorf("%s: %w: expected %d values", path, ErrIO, n)
		}
		return nil, ioError("read "+path, err)
	}
	return v, nil
}

// ReadStatistics reads statistics.txt from dir.
func ReadStatistics(dir string) (*SimulationStatistics, error) {
	var s SimulationStatistics
	if err := readJSON(filepath.Join(dir, statisticsFileName), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
