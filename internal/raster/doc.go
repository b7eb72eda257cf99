// Package raster defines the in-memory sample array that flows through the
// chip/inference/unchip pipeline.
//
// A Raster is a (height, width, channels) array of unsigned 8-bit samples
// stored row-major. Only 8-bit integer samples are representable, so the
// blank-chip heuristic (all zero or all 255) is always well defined;
// floating point rasters are deliberately unsupported.
//
// # Coordinate System
//
// Pixel (y, x) follows image convention: y grows downward from the top row,
// x grows rightward from the left column, both 0-based. Sample c of pixel
// (y, x) lives at Pix[y*Width*Channels + x*Channels + c].
package raster
