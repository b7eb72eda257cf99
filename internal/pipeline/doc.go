// Package pipeline runs detection jobs end to end.
//
// For every image a job loads the raster, optionally downsamples it to the
// model's ground sample distance, chips it (in memory or under the
// project's tmp directory), fans the chips out to the model, maps the
// detections back to image coordinates, then plots and reports them. When
// all images have been tried the per-image reports are collated and the
// results are zipped. Each job and image outcome is written to the job
// store when one is configured.
package pipeline
