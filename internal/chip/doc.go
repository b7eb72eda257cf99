// Package chip splits a raster into a regular grid of equal-sized chips
// ready for batch inference.
//
// # Grid Layout
//
// The source is padded on the bottom and right only, with a caller-chosen
// no-data value, up to a whole number of chips per axis. Because nothing is
// added on the top or left, a chip's top-left corner has the same
// coordinates in the padded and the original image, and untiling only has
// to add that corner back. Chips are numbered row-major:
//
//	index = row*NumWidth + col
//	TopLeft(index) = (row*ChipHeight, col*ChipWidth)
//
// The padded image is never materialised; each chip copies its rows
// straight out of the source and fills the remainder with no-data.
//
// # Blank Chips
//
// With Options.DiscardBlank, chips that are entirely 0 or entirely 255 are
// dropped and their original indices recorded in Meta.Thinning. Surviving
// chips are renumbered densely, so chip i and TopLefts[i] always belong
// together.
//
// # On-Disk Chips
//
// WriteDir produces the same chips as Tile but streams them to <i>.tif
// files together with chip_toplefts.csv and fast_retile_meta.json, for
// images whose chip array would not fit in memory. OpenDir reads such a
// directory back; chips are decoded lazily.
package chip
