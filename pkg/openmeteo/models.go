package openmeteo

import (
	"encoding/json"
	"fmt"

	"github.com/HatiCode/meteocache/pkg/series"
)

// Meta is the location and generation information shared by every response.
type Meta struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	Elevation            float64 `json:"elevation"`
	GenerationTimeMs     float64 `json:"generationtime_ms"`
	UTCOffsetSeconds     int     `json:"utc_offset_seconds"`
	Timezone             string  `json:"timezone"`
	TimezoneAbbreviation string  `json:"timezone_abbreviation"`
}

// HourlyData holds hourly columns; each slice is index-aligned with Time and
// nil when the variable was not requested.
type HourlyData struct {
	Time                     []string   `json:"time"`
	Temperature2m            []*float64 `json:"temperature_2m,omitempty"`
	RelativeHumidity2m       []*int     `json:"relative_humidity_2m,omitempty"`
	DewPoint2m               []*float64 `json:"dew_point_2m,omitempty"`
	ApparentTemperature      []*float64 `json:"apparent_temperature,omitempty"`
	Precipitation            []*float64 `json:"precipitation,omitempty"`
	Rain                     []*float64 `json:"rain,omitempty"`
	Snowfall                 []*float64 `json:"snowfall,omitempty"`
	SnowDepth                []*float64 `json:"snow_depth,omitempty"`
	WeatherCode              []*int     `json:"weather_code,omitempty"`
	PressureMSL              []*float64 `json:"pressure_msl,omitempty"`
	SurfacePressure          []*float64 `json:"surface_pressure,omitempty"`
	CloudCover               []*int     `json:"cloud_cover,omitempty"`
	CloudCoverLow            []*int     `json:"cloud_cover_low,omitempty"`
	CloudCoverMid            []*int     `json:"cloud_cover_mid,omitempty"`
	CloudCoverHigh           []*int     `json:"cloud_cover_high,omitempty"`
	WindSpeed10m             []*float64 `json:"wind_speed_10m,omitempty"`
	WindDirection10m         []*int     `json:"wind_direction_10m,omitempty"`
	WindGusts10m             []*float64 `json:"wind_gusts_10m,omitempty"`
	ShortwaveRadiation       []*float64 `json:"shortwave_radiation,omitempty"`
	DirectRadiation          []*float64 `json:"direct_radiation,omitempty"`
	DiffuseRadiation         []*float64 `json:"diffuse_radiation,omitempty"`
	ET0FAOEvapotranspiration []*float64 `json:"et0_fao_evapotranspiration,omitempty"`
	VapourPressureDeficit    []*float64 `json:"vapour_pressure_deficit,omitempty"`
	Visibility               []*float64 `json:"visibility,omitempty"`
	IsDay                    []*int     `json:"is_day,omitempty"`
}

// DailyData holds daily aggregates, index-aligned with Time.
type DailyData struct {
	Time                     []string   `json:"time"`
	Temperature2mMax         []*float64 `json:"temperature_2m_max,omitempty"`
	Temperature2mMin         []*float64 `json:"temperature_2m_min,omitempty"`
	Temperature2mMean        []*float64 `json:"temperature_2m_mean,omitempty"`
	ApparentTemperatureMax   []*float64 `json:"apparent_temperature_max,omitempty"`
	ApparentTemperatureMin   []*float64 `json:"apparent_temperature_min,omitempty"`
	ApparentTemperatureMean  []*float64 `json:"apparent_temperature_mean,omitempty"`
	PrecipitationSum         []*float64 `json:"precipitation_sum,omitempty"`
	RainSum                  []*float64 `json:"rain_sum,omitempty"`
	SnowfallSum              []*float64 `json:"snowfall_sum,omitempty"`
	PrecipitationHours       []*float64 `json:"precipitation_hours,omitempty"`
	WeatherCode              []*int     `json:"weather_code,omitempty"`
	Sunrise                  []string   `json:"sunrise,omitempty"`
	Sunset                   []string   `json:"sunset,omitempty"`
	DaylightDuration         []*float64 `json:"daylight_duration,omitempty"`
	SunshineDuration         []*float64 `json:"sunshine_duration,omitempty"`
	WindSpeed10mMax          []*float64 `json:"wind_speed_10m_max,omitempty"`
	WindGusts10mMax          []*float64 `json:"wind_gusts_10m_max,omitempty"`
	WindDirection10mDominant []*int     `json:"wind_direction_10m_dominant,omitempty"`
	ShortwaveRadiationSum    []*float64 `json:"shortwave_radiation_sum,omitempty"`
	ET0FAOEvapotranspiration []*float64 `json:"et0_fao_evapotranspiration,omitempty"`
	UVIndexMax               []*float64 `json:"uv_index_max,omitempty"`
}

// CurrentData is a single observation.
type CurrentData struct {
	Time                string   `json:"time"`
	Interval            int      `json:"interval"`
	Temperature2m       *float64 `json:"temperature_2m,omitempty"`
	RelativeHumidity2m  *int     `json:"relative_humidity_2m,omitempty"`
	DewPoint2m          *float64 `json:"dew_point_2m,omitempty"`
	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"`
	Precipitation       *float64 `json:"precipitation,omitempty"`
	Rain                *float64 `json:"rain,omitempty"`
	Snowfall            *float64 `json:"snowfall,omitempty"`
	WeatherCode         *int     `json:"weather_code,omitempty"`
	PressureMSL         *float64 `json:"pressure_msl,omitempty"`
	SurfacePressure     *float64 `json:"surface_pressure,omitempty"`
	CloudCover          *int     `json:"cloud_cover,omitempty"`
	WindSpeed10m        *float64 `json:"wind_speed_10m,omitempty"`
	WindDirection10m    *int     `json:"wind_direction_10m,omitempty"`
	WindGusts10m        *float64 `json:"wind_gusts_10m,omitempty"`
}

type HourlyResponse struct {
	Meta
	HourlyUnits map[string]string `json:"hourly_units"`
	Hourly      HourlyData        `json:"hourly"`
}

type DailyResponse struct {
	Meta
	DailyUnits map[string]string `json:"daily_units"`
	Daily      DailyData         `json:"daily"`
}

type CurrentResponse struct {
	Meta
	CurrentUnits map[string]string `json:"current_units"`
	Current      CurrentData       `json:"current"`
}

// DecodeHourly converts a merged hourly fragment into its typed form.
func DecodeHourly(f *series.Fragment) (*HourlyResponse, error) {
	var resp HourlyResponse
	if err := decodeFragment(f, series.Hourly, &resp); err != nil {
		return nil, err
	}
	if resp.Hourly.Time == nil {
		resp.Hourly.Time = []string{}
	}
	return &resp, nil
}

// DecodeDaily converts a merged daily fragment into its typed form.
func DecodeDaily(f *series.Fragment) (*DailyResponse, error) {
	var resp DailyResponse
	if err := decodeFragment(f, series.Daily, &resp); err != nil {
		return nil, err
	}
	if resp.Daily.Time == nil {
		resp.Daily.Time = []string{}
	}
	return &resp, nil
}

// DecodeCurrent parses a current-conditions payload.
func DecodeCurrent(data []byte) (*CurrentResponse, error) {
	var resp CurrentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode current response: %w", err)
	}
	return &resp, nil
}

func decodeFragment(f *series.Fragment, res series.Resolution, out any) error {
	if f == nil {
		return fmt.Errorf("decode %s response: nil fragment", res)
	}
	if f.Resolution != res {
		return fmt.Errorf("decode %s response: fragment has resolution %s", res, f.Resolution)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s fragment: %w", res, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", res, err)
	}
	return nil
}

// EmptyFragment returns the fragment served when no data exists for a
// request: the requested coordinates and timezone, zeroed metadata, and an
// empty time column.
func EmptyFragment(lat, lon float64, timezone string, res series.Resolution) *series.Fragment {
	f := series.New(res)
	meta := map[string]any{
		"latitude":              lat,
		"longitude":             lon,
		"elevation":             0,
		"generationtime_ms":     0,
		"utc_offset_seconds":    0,
		"timezone":              timezone,
		"timezone_abbreviation": "",
		string(res) + "_units":  map[string]string{series.TimeKey: "iso8601"},
	}
	for k, v := range meta {
		raw, _ := json.Marshal(v)
		f.Meta[k] = raw
	}
	f.Time = []string{}
	return f
}
