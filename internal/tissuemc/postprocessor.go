package tissuemc

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// GenerateOutput streams recorded photons once and tallies them into fresh
// detectors built from inputs. collisions, when not nil, yields the collision
// info of each photon in the same order. nPhotons is the number of launched
// photons used for normalization.
func GenerateOutput(vb VirtualBoundaryType, inputs []DetectorInput, photons iter.Seq2[PhotonDataPoint, error],
	collisions iter.Seq2[CollisionInfo, error], originalOps []OpticalProperties, nPhotons int64) (_ []*DetectorResult, err error) {
	if nPhotons <= 0 {
		return nil, invalid("NumberOfPhotons", "database does not record how many photons were launched")
	}
	detectors, err := createDetectors(inputs, originalOps)
	if err != nil {
		return nil, err
	}
	var surface []SurfaceDetector
	for _, d := range detectors {
		sd, ok := d.(SurfaceDetector)
		if !ok || !recordedOn(d.VirtualBoundary(), vb) {
			return nil, invalid("DetectorInputs."+d.Name(), "%s cannot be tallied from a %s database", d.TallyType(), vb)
		}
		surface = append(surface, sd)
	}

	var nextCI func() (CollisionInfo, error, bool)
	if collisions != nil {
		var stop func()
		nextCI, stop = iter.Pull2(collisions)
		defer stop()
	}

	var i int64
	for dp, perr := range photons {
		if perr != nil {
			return nil, perr
		}
		var ci CollisionInfo
		if nextCI != nil {
			c, cerr, ok := nextCI()
			if !ok {
				return nil, fmt.Errorf("record %d: %w: collision info database is shorter than the photon database", i, ErrIO)
			}
			if cerr != nil {
				return nil, cerr
			}
			ci = c
		}
		i++
		if !BelongsToSurfaceVirtualBoundary(vb, dp.StateFlag) {
			continue
		}
		for _, d := range surface {
			d.TallySingle(&dp, ci)
		}
	}

	results := make([]*DetectorResult, 0, len(detectors))
	for _, d := range detectors {
		d.Normalize(nPhotons)
		results = append(results, d.Result())
	}
	DebugLog("Post-processed %d records from %s database", i, vb)
	return results, nil
}

// photonDatabaseFiles lists candidate database files for vb, preferring the
// native layout.
func photonDatabaseFiles(vb VirtualBoundaryType) []DatabaseKind {
	switch vb {
	case DiffuseReflectanceVB:
		return []DatabaseKind{DiffuseReflectanceDatabase, PMCDiffuseReflectanceDatabase, ZRDDiffuseReflectanceDatabase}
	case DiffuseTransmittanceVB:
		return []DatabaseKind{DiffuseTransmittanceDatabase, PMCDiffuseTransmittanceDatabase, ZRDDiffuseTransmittanceDatabase}
	case SpecularReflectanceVB:
		return []DatabaseKind{SpecularReflectanceDatabase}
	case PMCDiffuseReflectanceVB:
		return []DatabaseKind{PMCDiffuseReflectanceDatabase}
	case PMCDiffuseTransmittanceVB:
		return []DatabaseKind{PMCDiffuseTransmittanceDatabase}
	}
	return nil
}

// findDatabase picks the database of vb in folder. A non-empty name selects
// the file; its kind comes from the file name or, for renamed files, from the
// element type recorded in its side header.
func findDatabase(folder string, vb VirtualBoundaryType, name string) (DatabaseKind, string, error) {
	candidates := photonDatabaseFiles(vb)
	if name == "" {
		for _, k := range candidates {
			if p := filepath.Join(folder, k.FileName()); exists(p) && exists(sideHeaderPath(p)) {
				return k, p, nil
			}
		}
		return "", "", invalid("InputFolder", "no %s database in %s", vb, folder)
	}
	p := filepath.Join(folder, name)
	if !exists(p) || !exists(sideHeaderPath(p)) {
		return "", "", invalid("DatabaseName", "no database %s in %s", name, folder)
	}
	for _, k := range candidates {
		if k.FileName() == name {
			return k, p, nil
		}
	}
	var header DatabaseHeader
	if err := readJSON(sideHeaderPath(p), &header); err != nil {
		return "", "", err
	}
	zrd := header.ElementType == ZRDRaySegmentCodec.elementType
	for _, k := range candidates {
		if k.IsZRD() == zrd && (zrd || k.VirtualBoundary() == header.VirtualBoundaryType) {
			return k, p, nil
		}
	}
	return "", "", invalid("DatabaseName", "%s holds %s records of %s, not a %s database",
		name, header.ElementType, header.VirtualBoundaryType, vb)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PostProcess re-tallies the database of in.VirtualBoundaryType found in
// dir/in.InputFolder and writes the results to dir/in.OutputName.
func PostProcess(ctx context.Context, in *PostProcessorInput, dir string) (_ *SimulationOutput, err error) {
	_, span := startSpan(ctx, "tissuemc.PostProcess",
		attribute.String("virtual_boundary", string(in.VirtualBoundaryType)),
		attribute.Int("detectors", len(in.DetectorInputs)))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()
	start := time.Now()
	if in.OutputName == "" {
		in.OutputName = "postprocessed"
	}

	folder := filepath.Join(dir, in.InputFolder)
	kind, path, err := findDatabase(folder, in.VirtualBoundaryType, in.DatabaseName)
	if err != nil {
		return nil, err
	}

	var (
		header  DatabaseHeader
		photons iter.Seq2[PhotonDataPoint, error]
	)
	if kind.IsZRD() {
		db, err := OpenDatabase(path, ZRDRaySegmentCodec)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		header = db.Header
		photons = func(yield func(PhotonDataPoint, error) bool) {
			for s, err := range db.Records() {
				if !yield(s.PhotonDataPoint(header.VirtualBoundaryType), err) || err != nil {
					return
				}
			}
		}
	} else {
		db, err := OpenDatabase(path, PhotonDataPointCodec)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		header = db.Header
		photons = db.Records()
	}

	var collisions iter.Seq2[CollisionInfo, error]
	if kind.HasCollisionInfo() {
		cpath := filepath.Join(folder, kind.CollisionInfoFileName())
		cdb, err := OpenDatabase(cpath, CollisionInfoCodec)
		if err != nil {
			return nil, err
		}
		defer cdb.Close()
		if cdb.Count() != header.NumberOfElements {
			return nil, fmt.Errorf("%s: %w: %d collision records for %d photons", cpath, ErrIO, cdb.Count(), header.NumberOfElements)
		}
		collisions = cdb.Records()
	}

	if err := in.validate(header, collisions != nil); err != nil {
		return nil, err
	}
	results, err := GenerateOutput(in.VirtualBoundaryType, in.DetectorInputs, photons, collisions, header.OpticalProperties, header.NumberOfPhotons)
	if err != nil {
		return nil, err
	}
	out := &SimulationOutput{Detectors: results, Elapsed: time.Since(start)}
	outDir := filepath.Join(dir, in.OutputName)
	if err := WriteResults(outDir, out); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(outDir, in.OutputName+".txt"), in); err != nil {
		return nil, fmt.Errorf("save post-processor input: %w", err)
	}
	return out, nil
}
