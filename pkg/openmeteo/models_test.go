package openmeteo

import (
	"testing"

	"github.com/HatiCode/meteocache/pkg/series"
)

func TestDecodeHourly(t *testing.T) {
	raw := []byte(`{
		"latitude": 55.75, "longitude": 37.62, "elevation": 144,
		"generationtime_ms": 0.5, "utc_offset_seconds": 10800,
		"timezone": "Europe/Moscow", "timezone_abbreviation": "MSK",
		"hourly_units": {"time": "iso8601", "temperature_2m": "°C"},
		"hourly": {
			"time": ["2024-01-01T00:00", "2024-01-01T01:00"],
			"temperature_2m": [-5.2, null],
			"weather_code": [3, 71]
		}
	}`)

	f, err := series.Decode(raw, series.Hourly)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := DecodeHourly(f)
	if err != nil {
		t.Fatalf("DecodeHourly() error = %v", err)
	}

	if resp.Timezone != "Europe/Moscow" || resp.UTCOffsetSeconds != 10800 {
		t.Errorf("meta = %+v", resp.Meta)
	}
	if resp.HourlyUnits["temperature_2m"] != "°C" {
		t.Errorf("units = %v", resp.HourlyUnits)
	}
	if len(resp.Hourly.Time) != 2 {
		t.Fatalf("time = %v", resp.Hourly.Time)
	}
	if resp.Hourly.Temperature2m[0] == nil || *resp.Hourly.Temperature2m[0] != -5.2 {
		t.Errorf("temperature_2m[0] = %v", resp.Hourly.Temperature2m[0])
	}
	if resp.Hourly.Temperature2m[1] != nil {
		t.Error("temperature_2m[1] should be a missing value")
	}
	if *resp.Hourly.WeatherCode[1] != 71 {
		t.Errorf("weather_code[1] = %d", *resp.Hourly.WeatherCode[1])
	}
	if resp.Hourly.Rain != nil {
		t.Error("unrequested variable should stay nil")
	}
}

func TestDecodeDaily_WrongResolution(t *testing.T) {
	if _, err := DecodeDaily(series.New(series.Hourly)); err == nil {
		t.Error("DecodeDaily() of hourly fragment should fail")
	}
	if _, err := DecodeDaily(nil); err == nil {
		t.Error("DecodeDaily(nil) should fail")
	}
}

func TestEmptyFragment(t *testing.T) {
	f := EmptyFragment(55.75, 37.62, "auto", series.Daily)

	resp, err := DecodeDaily(f)
	if err != nil {
		t.Fatalf("DecodeDaily() error = %v", err)
	}
	if resp.Latitude != 55.75 || resp.Longitude != 37.62 || resp.Timezone != "auto" {
		t.Errorf("meta = %+v", resp.Meta)
	}
	if resp.Elevation != 0 || resp.TimezoneAbbreviation != "" {
		t.Errorf("metadata should be zeroed: %+v", resp.Meta)
	}
	if resp.Daily.Time == nil || len(resp.Daily.Time) != 0 {
		t.Errorf("time = %#v, want empty non-nil", resp.Daily.Time)
	}
	if resp.DailyUnits["time"] != "iso8601" {
		t.Errorf("units = %v", resp.DailyUnits)
	}
}

func TestDecodeCurrent(t *testing.T) {
	raw := []byte(`{"latitude":1,"longitude":2,"timezone":"GMT","current_units":{"time":"iso8601","interval":"seconds"},
		"current":{"time":"2024-06-01T12:00","interval":900,"temperature_2m":21.4,"cloud_cover":40}}`)

	resp, err := DecodeCurrent(raw)
	if err != nil {
		t.Fatalf("DecodeCurrent() error = %v", err)
	}
	if resp.Current.Interval != 900 || *resp.Current.Temperature2m != 21.4 || *resp.Current.CloudCover != 40 {
		t.Errorf("current = %+v", resp.Current)
	}
	if resp.Current.Rain != nil {
		t.Error("absent value should be nil")
	}

	if _, err := DecodeCurrent([]byte(`[`)); err == nil {
		t.Error("DecodeCurrent() of invalid JSON should fail")
	}
}
