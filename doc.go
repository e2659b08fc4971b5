// Package slicer renders 2D images of a 3D scalar volume, optionally with
// fiber tracts drawn over it, on the GPU.
//
// # Overview
//
// For every requested view (left, right, anterior, posterior, superior,
// inferior) a number of evenly spaced slices is cut out of the volume,
// rescaled to 8-bit with the range of the whole volume, resampled onto a
// letterboxed quad and rendered off screen through gogpu/wgpu. Streamlines
// are uploaded once and drawn as depth-tested, multisampled line lists
// over every slice.
//
// # Quick Start
//
//	vol, _, err := nifti.ReadFile("brain.nii.gz")
//	if err != nil {
//	    return err
//	}
//	r, err := slicer.New(slicer.DefaultSettings(), vol, nil)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	w := &output.Writer{Dir: "out", Format: output.PNG}
//	err = r.Run(ctx, func(im slicer.Image) error {
//	    _, err := w.WriteImage(im.View, im.Index, im.RGBA())
//	    return err
//	})
//
// A GPU backend must be registered, typically with a blank import of
// github.com/gogpu/wgpu/hal/allbackends.
//
// # Packages
//
//   - volume: the voxel grid, views and slice extraction
//   - transform: fit scale, alignment, projection and the slice quad
//   - fibers: streamline batching and coloring
//   - output: PNG, TIFF and BMP files
//   - format/nifti, format/trk: input decoders
//
// # Logging
//
// Nothing is logged by default. See [SetLogger].
package slicer
