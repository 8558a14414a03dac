// Package domain models seismic event reports from multiple independent
// upstream providers and the rules that turn them into alerts.
//
// # Data Sources
//
// Five feeds are polled, each with its own native schema:
//
//	USGS      GeoJSON FeatureCollection; geometry.coordinates = [lon, lat, depth],
//	          properties.{mag, place, time} with time in epoch milliseconds.
//	EMSC      Same GeoJSON geometry; properties.{mag, flynn_region, time, unid}
//	          with time as an ISO 8601 string and unid as the event id.
//	AFAD      Flat JSON array of {eventId, latitude, longitude, magnitude,
//	          location, depth, eventDate}; numeric fields encoded as strings.
//	Kandilli  Wrapped {status, result[]} with result entries carrying a
//	          "2006.01.02 15:04:05" date_time (also the event id) and
//	          geojson.coordinates = [lon, lat].
//	KRDAE     The raw Kandilli bulletin: a monospaced text table behind a
//	          dashed separator line, whitespace-delimited columns
//	          date, time, lat, lon, depth, MD, ML, MW, place...
//
// # KRDAE Conventions
//
// Magnitude scales (MD, ML, MW) are populated inconsistently; "-.-" marks an
// absent scale. The fallback chain ML → MD → MW picks whichever scale the
// bulletin reports, defaulting to 0 when all are absent. Rows may end with a
// revision qualifier (the localized "preliminary" marker or REVIZE), which is
// stripped from the place name. The feed has no native event id; the
// date+time composite "raw-<date>-<time>" is synthesized instead.
//
// # Identity
//
// Event ids are unique within a source's namespace and stable across repeated
// fetches; they are the deduplication key. AFAD ids get an "afad-" prefix to
// avoid cross-source collisions.
//
// # Zero Coordinates
//
// Some feeds emit 0 for unknown positions, so [DistanceKm] treats any zero
// coordinate component as missing and returns 0 instead of a distance to the
// null island.
package domain
