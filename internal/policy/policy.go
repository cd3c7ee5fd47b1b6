// Package policy holds the compile-time switches that decide whether a
// dictionary-mutating operation's commit side does anything at all. The
// zero-value defaults match the documented defaults; Load optionally
// overrides them from a TOML file for test and demo wiring.
package policy

import (
	"os"

	"github.com/pelletier/go-toml"
)

// Switches is the set of commit-side no-op toggles. The off/on split here
// mirrors the compiled-in defaults: insert and update commit as no-ops,
// delete's commit side actually runs.
type Switches struct {
	CommitCmdInsert bool `toml:"commit_cmd_insert"`
	CommitCmdDelete bool `toml:"commit_cmd_delete"`
	CommitCmdUpdate bool `toml:"commit_cmd_update"`
}

// Default is the compiled-in policy: insert(off), delete(on), update(off).
var Default = Switches{
	CommitCmdInsert: false,
	CommitCmdDelete: true,
	CommitCmdUpdate: false,
}

// Load reads switches from a TOML file at path, falling back to Default
// for any field the file omits. A missing file is not an error; it
// returns Default unchanged.
func Load(path string) (Switches, error) {
	s := Default

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return Switches{}, err
	}
	return s, nil
}
