package tissuemc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func collect[T any](t *testing.T, dr *DatabaseReader[T]) []T {
	t.Helper()
	var out []T
	for v, err := range dr.Records() {
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, v)
	}
	return out
}

func sampleDataPoints() []PhotonDataPoint {
	return []PhotonDataPoint{
		{Position: Position{1, 2, 0}, Direction: Direction{0.6, 0, -0.8}, Weight: 0.5, TotalTime: 0.01, StateFlag: PseudoReflectedTissueBoundary},
		{Position: Position{-3, 0.25, 0}, Direction: Direction{0, 0, -1}, Weight: 1e-7, TotalTime: 2.5, StateFlag: PseudoReflectedTissueBoundary | KilledRussianRoulette},
	}
}

func TestPhotonDataPointDatabaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "DiffuseReflectanceDatabase")
	ops := []OpticalProperties{{N: 1}, {Mua: 0.01, Mus: 5, G: 0.8, N: 1.4}, {N: 1}}
	dw, err := CreateDatabase(path, PhotonDataPointCodec, DatabaseHeader{
		NumberOfSubRegions:  3,
		NumberOfPhotons:     10,
		VirtualBoundaryType: DiffuseReflectanceVB,
		OpticalProperties:   ops,
	})
	if err != nil {
		t.Fatal(err)
	}
	in := sampleDataPoints()
	for _, dp := range in {
		if err := dw.Write(dp); err != nil {
			t.Fatal(err)
		}
	}
	if err := dw.Close(); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(nativeHeaderSize + 2*68); st.Size() != want {
		t.Fatalf("file size %d, want %d", st.Size(), want)
	}

	dr, err := OpenDatabase(path, PhotonDataPointCodec)
	if err != nil {
		t.Fatal(err)
	}
	defer dr.Close()
	if dr.Count() != 2 || dr.Header.NumberOfElements != 2 || dr.Header.NumberOfPhotons != 10 || len(dr.Header.OpticalProperties) != 3 {
		t.Fatalf("header = %+v, count %d", dr.Header, dr.Count())
	}
	out := collect(t, dr)
	if len(out) != len(in) {
		t.Fatalf("read %d records, wrote %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("record %d: read %+v, wrote %+v", i, out[i], in[i])
		}
	}
}

func TestCollisionInfoDatabaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CollisionInfoDatabase")
	dw, err := CreateDatabase(path, CollisionInfoCodec, DatabaseHeader{NumberOfSubRegions: 3})
	if err != nil {
		t.Fatal(err)
	}
	in := []CollisionInfo{
		{{0, 0}, {12.5, 40}, {0, 0}},
		{{0, 0}, {0.25, 1}, {1e-3, 0}},
	}
	for _, ci := range in {
		if err := dw.Write(ci); err != nil {
			t.Fatal(err)
		}
	}
	if err := dw.Close(); err != nil {
		t.Fatal(err)
	}
	dr, err := OpenDatabase(path, CollisionInfoCodec)
	if err != nil {
		t.Fatal(err)
	}
	defer dr.Close()
	out := collect(t, dr)
	for i := range in {
		for r := range in[i] {
			if out[i][r] != in[i][r] {
				t.Fatalf("record %d region %d: read %+v, wrote %+v", i, r, out[i][r], in[i][r])
			}
		}
	}
}

func TestZRDDatabaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ZRDDiffuseReflectanceDatabase")
	dw, err := CreateDatabase(path, ZRDRaySegmentCodec, DatabaseHeader{NumberOfSubRegions: 3, VirtualBoundaryType: DiffuseReflectanceVB})
	if err != nil {
		t.Fatal(err)
	}
	in := sampleDataPoints()
	for i := range in {
		if err := dw.Write(NewZRDRaySegment(&in[i])); err != nil {
			t.Fatal(err)
		}
	}
	if err := dw.Close(); err != nil {
		t.Fatal(err)
	}
	st, _ := os.Stat(path)
	if want := int64(8 + 2*zrdSegmentSize); st.Size() != want {
		t.Fatalf("file size %d, want %d", st.Size(), want)
	}
	dr, err := OpenDatabase(path, ZRDRaySegmentCodec)
	if err != nil {
		t.Fatal(err)
	}
	defer dr.Close()
	out := collect(t, dr)
	if len(out) != 2 || out[0].Level != 1 {
		t.Fatalf("read %+v", out)
	}
	for i, s := range out {
		dp := s.PhotonDataPoint(DiffuseReflectanceVB)
		if dp.Position != in[i].Position || dp.Direction != in[i].Direction || dp.Weight != in[i].Weight {
			t.Fatalf("segment %d: %+v, want %+v", i, dp, in[i])
		}
		if !BelongsToSurfaceVirtualBoundary(DiffuseReflectanceVB, dp.StateFlag) {
			t.Fatalf("segment %d lost its virtual boundary: %s", i, dp.StateFlag)
		}
	}
}

func TestOpenDatabaseRejectsWrongElementType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	dw, err := CreateDatabase(path, PhotonDataPointCodec, DatabaseHeader{NumberOfSubRegions: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := dw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDatabase(path, CollisionInfoCodec); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := os.WriteFile(path, []byte("garbage garbage garbage garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDatabase(path, PhotonDataPointCodec); !errors.Is(err, ErrIO) {
		t.Fatalf("expected i/o error for a corrupt file, got %v", err)
	}
	if _, err := OpenDatabase(filepath.Join(t.TempDir(), "missing"), PhotonDataPointCodec); !errors.Is(err, ErrIO) {
		t.Fatalf("expected i/o error for a missing database, got %v", err)
	}
}

func TestDatabaseKinds(t *testing.T) {
	if !PMCDiffuseReflectanceDatabase.HasCollisionInfo() || DiffuseReflectanceDatabase.HasCollisionInfo() {
		t.Fatal("only perturbation databases carry collision info")
	}
	if PMCDiffuseTransmittanceDatabase.CollisionInfoFileName() != "TransmittanceCollisionInfoDatabase" {
		t.Fatalf("collision file = %q", PMCDiffuseTransmittanceDatabase.CollisionInfoFileName())
	}
	if !ZRDDiffuseTransmittanceDatabase.IsZRD() || ZRDDiffuseTransmittanceDatabase.VirtualBoundary() != DiffuseTransmittanceVB {
		t.Fatal("ZRD transmittance kind misconfigured")
	}
}
