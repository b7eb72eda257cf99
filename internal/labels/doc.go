// Package labels turns numeric class ids into names and colours.
//
// Names come from a TensorFlow object-detection label map (.pbtxt); colours
// from a small JSON file. Both are optional: unknown ids are named by their
// number and coloured from a generated palette.
package labels
