package repository

import (
	"testing"

	"apartur/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSearchFilter(t *testing.T) {
	f := searchFilter(model.ApartmentFilter{
		Province:    "León",
		MinCapacity: 4,
		Query:       "casa (rural)",
	})

	if f["active"] != true {
		t.Error("search must only return active apartments")
	}
	province, ok := f["province"].(primitive.Regex)
	if !ok || province.Pattern != "^León$" || province.Options != "i" {
		t.Errorf("province filter = %#v", f["province"])
	}
	name, ok := f["name"].(primitive.Regex)
	if !ok || name.Pattern != `casa \(rural\)` {
		t.Errorf("name filter = %#v", f["name"])
	}
	capacity, ok := f["capacity"].(bson.M)
	if !ok || capacity["$gte"] != 4 {
		t.Errorf("capacity filter = %#v", f["capacity"])
	}
	if _, ok := f["municipality"]; ok {
		t.Error("empty municipality must not be filtered")
	}
}

func TestSearchFilter_Empty(t *testing.T) {
	f := searchFilter(model.ApartmentFilter{})
	if len(f) != 1 {
		t.Errorf("expected only the active flag, got %v", f)
	}
}

func TestMissingFilter(t *testing.T) {
	f := missingFilter([]string{"VA-1", "VA-3"})

	if f["active"] != true {
		t.Error("only active apartments should be deactivated")
	}
	registry, ok := f["registry_number"].(bson.M)
	if !ok {
		t.Fatalf("registry filter = %#v", f["registry_number"])
	}
	seen, ok := registry["$nin"].([]string)
	if !ok || len(seen) != 2 || seen[0] != "VA-1" || seen[1] != "VA-3" {
		t.Errorf("$nin = %#v", registry["$nin"])
	}
	if _, ok := f["synced_at"]; ok {
		t.Error("deactivation must not depend on the write time")
	}
}

func TestMissingFilter_NilSeenIsEmptyArray(t *testing.T) {
	registry := missingFilter(nil)["registry_number"].(bson.M)
	if seen, ok := registry["$nin"].([]string); !ok || seen == nil {
		t.Errorf("$nin must encode as an array, got %#v", registry["$nin"])
	}
}
