// Package imaging handles the image side of the chip pipeline: loading
// source images, optional ground-sample-distance resampling, debug views of
// the chip layout, and plotting detections back onto the image.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based with (0,0) at the
// top-left corner:
//   - X (left/right, column) grows rightward
//   - Y (top/bottom, row) grows downward
//   - Rectangles include their top-left corner and exclude their
//     bottom-right corner
//
// Detection boxes arrive as (top, left, bottom, right) and may extend past
// the image into the chip padding; drawing clips them to the canvas.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The drawing functions never modify
// their input image; they draw on a copy.
//
// # Formats
//
// Images are decoded with disintegration/imaging, which reads JPEG, PNG,
// GIF, TIFF and BMP by content. Which extensions the pipeline accepts is a
// separate, configurable check (CheckApproved). Chip previews and grid
// overlays are returned as base64 PNG for the MCP tools; plots are written
// to disk in the format implied by the file extension.
//
// # Ground Sample Distance
//
// For non-georeferenced drone imagery, MaxGSD estimates centimetres per
// pixel from flight altitude and sensor geometry. ResampleToGSD then
// downsamples images that are finer than the model's training GSD so
// objects appear at the expected size. Coarser images are left alone.
package imaging
