// Package roles defines the fixed role tiers shared across the application.
package roles

// Role tiers, ordered from highest to lowest privilege.
const (
	Senior  = 1
	Middle  = 2
	Junior  = 3
	Trainee = 4
)

// BootstrapUserID is the reserved account id that is promoted to Senior on
// registration. Role changes for this account are rejected.
const BootstrapUserID = 1

// Names maps role ids to their display names.
var Names = map[int]string{
	Senior:  "senior",
	Middle:  "middle",
	Junior:  "junior",
	Trainee: "trainee",
}

// Valid reports whether id belongs to the known role set.
func Valid(id int) bool {
	_, ok := Names[id]
	return ok
}
