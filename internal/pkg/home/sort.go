package home

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortDevices orders devices in place: a "left" device comes before a
// "right" one (the pair flanking a window), anything else is ordered by
// name with numeric runs compared as numbers ("Lamp 2" before "Lamp 10").
func SortDevices(devices []Device) {
	// collators are not safe for concurrent use
	coll := collate.New(language.Und, collate.Numeric)

	sort.SliceStable(devices, func(i, j int) bool {
		return compareNames(coll, devices[i].Name, devices[j].Name) < 0
	})
}

func compareNames(coll *collate.Collator, a, b string) int {
	nameA := strings.ToLower(a)
	nameB := strings.ToLower(b)

	aLeft, aRight := strings.Contains(nameA, "left"), strings.Contains(nameA, "right")
	bLeft, bRight := strings.Contains(nameB, "left"), strings.Contains(nameB, "right")

	if aLeft && bRight {
		return -1
	}
	if aRight && bLeft {
		return 1
	}

	return coll.CompareString(nameA, nameB)
}
