package client

import "time"

// Endpoint labels passed to Recorder.ObserveFetch.
const (
	EndpointArchive  = "archive"
	EndpointForecast = "forecast"
	EndpointCurrent  = "current"
)

// Recorder receives operational events, typically to export them as metrics.
type Recorder interface {
	ObserveFetch(endpoint string, duration time.Duration, err error)
	ObserveForecastCache(hit bool)
	ObservePartition(reused bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, time.Duration, error) {}
func (nopRecorder) ObserveForecastCache(bool)                 {}
func (nopRecorder) ObservePartition(bool)                     {}
