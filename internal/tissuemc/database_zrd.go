package tissuemc

import (
	"encoding/binary"
)

// ZRDRaySegment is one ray segment in the uncompressed layout used by
// external non-sequential ray tracers. Only the position, direction cosines
// and intensity carry photon state.
type ZRDRaySegment struct {
	Status, Level, HitObject, HitFace, Unused, InObject, Parent, Storage, XYBin, LMBin int32

	Index, StartingPhase, X, Y, Z, L, M, N, Nx, Ny, Nz, PathTo, Intensity, PhaseOf, PhaseAt,
	Exr, Exi, Eyr, Eyi, Ezr, Ezi Real
}

const zrdSegmentSize = 10*4 + 21*8

// NewZRDRaySegment converts an exit data point.
func NewZRDRaySegment(dp *PhotonDataPoint) ZRDRaySegment {
	return ZRDRaySegment{
		Level:     1,
		X:         dp.Position.X,
		Y:         dp.Position.Y,
		Z:         dp.Position.Z,
		L:         dp.Direction.Ux,
		M:         dp.Direction.Uy,
		N:         dp.Direction.Uz,
		Intensity: dp.Weight,
	}
}

// PhotonDataPoint recovers the photon state, flagged for vb.
func (s ZRDRaySegment) PhotonDataPoint(vb VirtualBoundaryType) PhotonDataPoint {
	dp := PhotonDataPoint{
		Position:  Position{X: s.X, Y: s.Y, Z: s.Z},
		Direction: Direction{Ux: s.L, Uy: s.M, Uz: s.N},
		Weight:    s.Intensity,
	}
	switch vb {
	case DiffuseReflectanceVB, PMCDiffuseReflectanceVB:
		dp.StateFlag = PseudoReflectedTissueBoundary
	case DiffuseTransmittanceVB, PMCDiffuseTransmittanceVB:
		dp.StateFlag = PseudoTransmittedTissueBoundary
	case SpecularReflectanceVB:
		dp.StateFlag = PseudoSpecularTissueBoundary
	}
	return dp
}

// ZRDRaySegmentCodec writes a version/max-segments header followed by
// segments on a fixed 208-byte stride.
var ZRDRaySegmentCodec = &recordCodec[ZRDRaySegment]{
	elementType: "ZRDRaySegment",
	code:        3,
	size:        func(int) int { return zrdSegmentSize },
	put: func(b []byte, s ZRDRaySegment) {
		for i, v := range [10]int32{s.Status, s.Level, s.HitObject, s.HitFace, s.Unused,
			s.InObject, s.Parent, s.Storage, s.XYBin, s.LMBin} {
			binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
		}
		for i, v := range [21]Real{s.Index, s.StartingPhase, s.X, s.Y, s.Z, s.L, s.M, s.N,
			s.Nx, s.Ny, s.Nz, s.PathTo, s.Intensity, s.PhaseOf, s.PhaseAt,
			s.Exr, s.Exi, s.Eyr, s.Eyi, s.Ezr, s.Ezi} {
			putF64(b[40+8*i:], v)
		}
	},
	get: func(b []byte, _ int) ZRDRaySegment {
		var ints [10]int32
		for i := range ints {
			ints[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
		}
		var f [21]Real
		for i := range f {
			f[i] = getF64(b[40+8*i:])
		}
		return ZRDRaySegment{
			Status: ints[0], Level: ints[1], HitObject: ints[2], HitFace: ints[3], Unused: ints[4],
			InObject: ints[5], Parent: ints[6], Storage: ints[7], XYBin: ints[8], LMBin: ints[9],
			Index: f[0], StartingPhase: f[1], X: f[2], Y: f[3], Z: f[4], L: f[5], M: f[6], N: f[7],
			Nx: f[8], Ny: f[9], Nz: f[10], PathTo: f[11], Intensity: f[12], PhaseOf: f[13], PhaseAt: f[14],
			Exr: f[15], Exi: f[16], Eyr: f[17], Eyi: f[18], Ezr: f[19], Ezi: f[20],
		}
	},
	fileHeader: func() []byte {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint32(b[0:], uint32(ZRDVersion))
		binary.LittleEndian.PutUint32(b[4:], 1)
		return b
	},
}
