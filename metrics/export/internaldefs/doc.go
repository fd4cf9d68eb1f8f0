// Package internaldefs holds the metric names and bucket bounds shared by the
// gateway exporters, so Prometheus and OTel report identical series.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
