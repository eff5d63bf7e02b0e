package tissuemc

import (
	"log"
	"os"
)

var (
	Debug    = false // set to true for verbose debug output
	Progress = true  // set to false to silence [PROGRESS] lines
	// Logger receives progress lines and statistical warnings.
	Logger = log.New(os.Stderr, "", 0)
	// Compile time checks that the closed variant sets are implemented.
	_ Region          = (*LayerRegion)(nil)
	_ Region          = (*VoxelRegion)(nil)
	_ Region          = (*EllipsoidRegion)(nil)
	_ Tissue          = (*MultiLayerTissue)(nil)
	_ Tissue          = (*SingleInclusionTissue)(nil)
	_ Source          = (*DirectionalPointSource)(nil)
	_ Source          = (*IsotropicPointSource)(nil)
	_ Source          = (*FlatCircularSource)(nil)
	_ PhaseFunction   = HenyeyGreensteinPhaseFunction{}
	_ PhaseFunction   = BidirectionalPhaseFunction{}
	_ SurfaceDetector = (*TotalDetector)(nil)
	_ SurfaceDetector = (*RhoDetector)(nil)
	_ SurfaceDetector = (*AngleDetector)(nil)
	_ SurfaceDetector = (*RhoAndAngleDetector)(nil)
	_ SurfaceDetector = (*RhoAndTimeDetector)(nil)
	_ SurfaceDetector = (*XAndYDetector)(nil)
	_ SurfaceDetector = (*FxDetector)(nil)
	_ SurfaceDetector = (*TimeOfRhoAndSubregionDetector)(nil)
	_ SurfaceDetector = (*PerturbationDetector)(nil)
	_ VolumeDetector  = (*ATotalDetector)(nil)
	_ VolumeDetector  = (*RhoAndZDetector)(nil)
	_ historySink     = (*tallySet)(nil)
)
