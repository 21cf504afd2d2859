package cache

// Key derivation is a pure function shared by every reader and
// invalidator, so a write path and the query path can never disagree on
// which entry a (city, date) pair maps to. City is always the normalized
// routing-safe form.

// LatestKey addresses the global latest-captures feed.
func LatestKey() string {
	return "weather:latest"
}

// CityLatestKey addresses the latest-captures feed for one city.
func CityLatestKey(city string) string {
	return "weather:latest:" + city
}

// DatesKey addresses the list of dates with captures for one city.
func DatesKey(city string) string {
	return "weather:dates:" + city
}

// CityDateKey addresses the captures of one city on one calendar date
// (date in YYYY-MM-DD form).
func CityDateKey(city, date string) string {
	return "weather:" + city + ":" + date
}

// InvalidationSet lists every key a write touching (city, date) could
// have made stale.
func InvalidationSet(city, date string) []string {
	return []string{
		LatestKey(),
		CityLatestKey(city),
		DatesKey(city),
		CityDateKey(city, date),
	}
}
