// Package internaldefs holds the metric names shared by the Prometheus and
// OpenTelemetry exporters, so both render the same counter set.
package internaldefs
