package openmeteo

const (
	ArchiveBaseURL  = "https://archive-api.open-meteo.com/v1/archive"
	ForecastBaseURL = "https://api.open-meteo.com/v1/forecast"

	MaxForecastDays     = 16
	DefaultForecastDays = 7
	DefaultTimezone     = "auto"
)

// HourlyVariables are requested for hourly series when the caller names none.
var HourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"apparent_temperature",
	"precipitation",
	"rain",
	"snowfall",
	"snow_depth",
	"weather_code",
	"pressure_msl",
	"surface_pressure",
	"cloud_cover",
	"cloud_cover_low",
	"cloud_cover_mid",
	"cloud_cover_high",
	"wind_speed_10m",
	"wind_direction_10m",
	"wind_gusts_10m",
	"shortwave_radiation",
	"direct_radiation",
	"diffuse_radiation",
	"et0_fao_evapotranspiration",
	"vapour_pressure_deficit",
	"visibility",
	"is_day",
}

// DailyVariables are requested for daily series when the caller names none.
var DailyVariables = []string{
	"temperature_2m_max",
	"temperature_2m_min",
	"temperature_2m_mean",
	"apparent_temperature_max",
	"apparent_temperature_min",
	"apparent_temperature_mean",
	"precipitation_sum",
	"rain_sum",
	"snowfall_sum",
	"precipitation_hours",
	"weather_code",
	"sunrise",
	"sunset",
	"daylight_duration",
	"sunshine_duration",
	"wind_speed_10m_max",
	"wind_gusts_10m_max",
	"wind_direction_10m_dominant",
	"shortwave_radiation_sum",
	"et0_fao_evapotranspiration",
	"uv_index_max",
}

// CurrentVariables are requested for current conditions.
var CurrentVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"apparent_temperature",
	"precipitation",
	"rain",
	"snowfall",
	"weather_code",
	"pressure_msl",
	"surface_pressure",
	"cloud_cover",
	"wind_speed_10m",
	"wind_direction_10m",
	"wind_gusts_10m",
}
