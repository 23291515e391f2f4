// Package domain models environmental monitoring data for a network of up to
// 22 fixed stations and implements the analytical core: reading normalization,
// risk scoring, cross-factor correlation detection, alert generation, and
// citizen report validation.
//
// # Data Source
//
// Raw samples originate from an upstream collector that merges station sensor
// output (PM2.5, noise) with a weather feed (temperature, humidity, wind) and
// publishes one flat JSON sample per station per ingestion interval to the
// Kafka source topic.
//
// # Factor Conventions
//
// Units:
//
//	pm25          µg/m³ (particulate matter ≤ 2.5µm)
//	noise_db      dB(A)
//	temp_c        °C dry-bulb
//	humidity_pct  relative humidity, 0–100
//	wind_kph      km/h
//	wind_dir      16-point compass bearing the wind blows toward
//
// All physical values are non-negative. Fields that are missing, negative, or
// (for humidity) outside 0–100 are treated as absent, never defaulted to zero:
// a zero default would silently bias risk scores downward. Wind direction is
// normalized to the 16-point compass rose; numeric degrees in the feed are
// bucketed to the nearest point.
//
// # Risk Scoring
//
// Each present factor is mapped through a fixed piecewise-linear monotonic
// curve into a sub-score in [0,100] (see risk.go for the breakpoints; PM2.5
// follows the US EPA AQI breakpoints). Sub-scores are combined as a weighted
// sum with PM2.5 weighted most heavily. Weights of absent factors are
// renormalized over the present ones so a missing field does not lower the
// score. Band table (inclusive lower bounds, ties resolve upward):
//
//	Low       0–29
//	Moderate 30–49
//	High     50–69
//	Critical 70–100
//
// # Correlation Rules
//
// A fixed, closed rule set evaluated independently per reading; several rules
// may fire on the same reading:
//
//	pollution_source_direction  PM2.5 above the high threshold; payload is the
//	                            upwind bearing (opposite the blow-toward
//	                            direction) where the source likely sits.
//	heat_index                  apparent temperature from the NWS Rothfusz
//	                            regression whenever both temperature and
//	                            humidity are present. Informational.
//	stagnation_event            elevated PM2.5 with wind below the calm
//	                            threshold for K consecutive readings. The only
//	                            rule that consults recent history.
//	compound_risk               two or more independently elevated factors in
//	                            the same reading.
//
// A rule whose input factor is absent from the reading is disabled for that
// reading rather than evaluated against a default.
//
// # ID Generation
//
// Reading and alert IDs are deterministic SHA-256 hashes of their key fields.
// Reprocessing the same cycle produces the same IDs, which keeps downstream
// upserts idempotent and replays safe. See [ReadingID] and [GenerateAlert].
package domain
