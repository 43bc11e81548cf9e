package services

import "math/rand"

// guardianCatalog is the fixed set of guardian labels a user can be assigned.
// The update-deity endpoint accepts only these values; random assignment picks
// uniformly from the list.
var guardianCatalog = []string{
	"Seiryu",
	"Byakko",
	"Suzaku",
	"Genbu",
	"Kirin",
	"Houou",
	"Shiranui",
	"Komainu",
}

// GuardianCatalog returns a copy of the guardian labels.
func GuardianCatalog() []string {
	return append([]string(nil), guardianCatalog...)
}

// RandomGuardian picks a guardian uniformly at random from the catalog.
func RandomGuardian() string {
	return guardianCatalog[rand.Intn(len(guardianCatalog))]
}

// KnownGuardian reports whether g is part of the catalog.
func KnownGuardian(g string) bool {
	for _, v := range guardianCatalog {
		if v == g {
			return true
		}
	}
	return false
}
