package core

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestOperations_JSON_Unmarshalling(t *testing.T) {

	type Object struct {
		Operations []Operation `json:"operations"`
	}
	var object Object
	jsonRead := `{"operations":["create","read","update","list"]}`
	err := json.Unmarshal([]byte(jsonRead), &object)
	if err != nil {
		t.Fatal(err)
	}

	jsonRead = `{"operations":["invalid"]}`
	err = json.Unmarshal([]byte(jsonRead), &object)
	if err == nil {
		t.Fatal("invalid operation accepted")
	}
}

func TestPlural(t *testing.T) {
	cases := map[string]string{
		"task":         "tasks",
		"company":      "companies",
		"address":      "addresses",
		"organization": "organizations",
	}
	for singular, plural := range cases {
		if got := Plural(singular); got != plural {
			t.Fatalf("Plural(%s): got %s, want %s", singular, got, plural)
		}
	}
}
