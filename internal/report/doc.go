// Package report writes detection results to disk.
//
// Each image produces <id>_objects.json, holding {image_id: {bboxes, scores,
// classes}}, and <id>_objects.csv with one row per detection. At the end of
// a job Collate stacks the per-image CSVs into all_objects.csv and tallies
// class_counts.csv, whose last row is the total. Archive zips a results
// directory for download.
package report
