package cache

import "testing"

func TestKeyDerivationIsDeterministic(t *testing.T) {
	if LatestKey() != "weather:latest" {
		t.Fatalf("unexpected latest key: %s", LatestKey())
	}
	if CityLatestKey("vienna") != "weather:latest:vienna" {
		t.Fatalf("unexpected city latest key: %s", CityLatestKey("vienna"))
	}
	if DatesKey("vienna") != "weather:dates:vienna" {
		t.Fatalf("unexpected dates key: %s", DatesKey("vienna"))
	}
	if CityDateKey("vienna", "2024-03-01") != "weather:vienna:2024-03-01" {
		t.Fatalf("unexpected city date key: %s", CityDateKey("vienna", "2024-03-01"))
	}
}

func TestInvalidationSetCoversEveryAffectedKey(t *testing.T) {
	keys := InvalidationSet("vienna", "2024-03-01")

	want := map[string]bool{
		LatestKey():                         false,
		CityLatestKey("vienna"):             false,
		DatesKey("vienna"):                  false,
		CityDateKey("vienna", "2024-03-01"): false,
	}

	for _, k := range keys {
		if _, ok := want[k]; !ok {
			t.Fatalf("unexpected key in invalidation set: %s", k)
		}
		want[k] = true
	}
	for k, seen := range want {
		if !seen {
			t.Fatalf("invalidation set missing %s", k)
		}
	}
}
