package domain

import "math"

// HeatIndexCelsius computes the apparent temperature from dry-bulb temperature
// and relative humidity using the NWS heat index algorithm: Steadman's simple
// formula, switching to the full Rothfusz regression (with the low-humidity
// and high-humidity adjustments) once the simple result averages 80°F or more
// with the air temperature. See https://www.wpc.ncep.noaa.gov/html/heatindex_equation.shtml.
func HeatIndexCelsius(tempC, humidityPct float64) float64 {
	t := tempC*9/5 + 32
	rh := humidityPct

	simple := 0.5 * (t + 61.0 + (t-68.0)*1.2 + rh*0.094)
	if (simple+t)/2 < 80 {
		return (simple - 32) * 5 / 9
	}

	hi := -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		0.00683783*t*t -
		0.05481717*rh*rh +
		0.00122874*t*t*rh +
		0.00085282*t*rh*rh -
		0.00000199*t*t*rh*rh

	if rh < 13 && t >= 80 && t <= 112 {
		hi -= ((13 - rh) / 4) * math.Sqrt((17-math.Abs(t-95))/17)
	}
	if rh > 85 && t >= 80 && t <= 87 {
		hi += ((rh - 85) / 10) * ((87 - t) / 2)
	}

	return (hi - 32) * 5 / 9
}
