// Package detection holds object-detection results and the inverse tiling
// transform that maps them from chip space back to image space.
//
// # Chip Space and Image Space
//
// A model sees one chip at a time and reports boxes normalised to that
// chip, in TensorFlow object-detection order (ymin, xmin, ymax, xmax), each
// in [0, 1]. Raw keeps those boxes alongside compact scores and class ids.
// Map collects Raw values by chip index and is sparse: a chip whose
// detections were all below the confidence threshold simply has no entry.
//
// Untile denormalises each chip's boxes with the chip size and adds the
// chip's top-left Offset, producing absolute (top, left, bottom, right)
// pixel boxes in a single Merged result per image.
//
// # Known Limitations
//
// Objects straddling a chip border are reported once per chip; no
// non-maximum suppression across borders is attempted. Boxes are not
// clipped, so a detection inside the bottom/right padding can extend beyond
// the original image. Filtering those is left to threshold tuning and to
// consumers of Merged.
package detection
