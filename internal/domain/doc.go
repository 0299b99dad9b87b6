// Package domain models ensemble weather forecast data and the statistics
// derived from it.
//
// # Data Source
//
// Raw data comes from the Open-Meteo ensemble API. Each configured model
// (e.g. gfs025, ecmwf_ifs025) produces a run several times per day; a run
// contains one time series per ensemble member per variable, all sharing a
// single hourly UTC time axis. Members differ by initial-condition and
// physics perturbations, so the spread across members at a timestep is the
// forecast uncertainty.
//
// # Statistics Conventions
//
// Percentiles (p10, median, p90):
//
//	Computed per variable per timestep across the members that report a
//	value, using linear interpolation between bracketing order statistics
//	(the R-7 rule, h = (n-1)*q). Three members [10, 12, 14] yield
//	p10 = 10.4, median = 12, p90 = 13.6. Because all three points lie on
//	the same non-decreasing quantile function, p10 <= median <= p90 holds
//	by construction.
//
// Cloud cover octas:
//
//	Continuous 0-100% cover discretizes to an integer octa 0-8 via
//	round(percent / 100 * 8), clamped to [0, 8]. 0 = clear, 8 = overcast.
//
// Wind octants:
//
//	Directions in degrees map to 8 compass sectors of 45 degrees each,
//	centered on N/NE/E/SE/S/SW/W/NW. Sector k covers
//	[k*45 - 22.5, k*45 + 22.5) with north wrapping through 0, so 337.5
//	degrees is already north. Direction is meteorological: the direction
//	the wind blows from. Members with near-calm wind are excluded from
//	directional binning because direction is undefined at near-zero speed.
//
// Weather code groups:
//
//	WMO WW codes map to zero or more of the groups fog, storm and
//	severe_storm through a static rule table over the code space emitted
//	by Open-Meteo. Codes 45 and 48 are fog; 95, 96 and 99 are storm; 96
//	and 99 are additionally severe_storm. The groups are not a partition:
//	a timestep can be both foggy and stormy, and group probabilities are
//	computed independently. An unrecognized code maps to no group.
//
// Probabilities:
//
//	Every probability is the fraction of members with a defined value at
//	that timestep that satisfy the condition, so partial member data
//	degrades the sample size rather than silently diluting the fraction.
//
// # Undefined Statistics
//
// A statistic that cannot be computed (no member reported a value, or the
// sample is below the configured minimum) is represented as a nil pointer,
// never as zero. Nil values are excluded from cross-model averaging and
// render as empty cells in exports.
package domain
