// Package inference sends chips to an object-detection model server and
// collects the detections that pass a confidence threshold.
//
// # Wire Format
//
// Client speaks the TensorFlow Serving REST predict API. A batch of chips
// is posted as
//
//	{"signature_name": "serving_default",
//	 "instances": [ [[[r,g,b], ...], ...], ... ]}
//
// with one nested [height][width][channels] integer array per chip, and
// the server answers
//
//	{"predictions": [{"detection_scores": [...],
//	                  "detection_classes": [...],
//	                  "detection_boxes": [[ymin,xmin,ymax,xmax], ...]}, ...]}
//
// or {"error": "..."}. Prediction k belongs to the k-th chip of the batch.
//
// # Dispatch
//
// Dispatcher splits a Source into contiguous batches and keeps at most
// MaxInFlight of them outstanding. Results land in a detection.Map keyed by
// chip index. Failures are contained per batch: a failed batch loses only
// its own chips, which shows up as Stats.FailedBatches rather than as an
// error.
//
// Scores are kept as IEEE half floats, boxes as float32 and class ids as
// uint16 to keep large result maps small. Thresholding happens before the
// narrowing.
package inference
