package ver

import "fmt"

const Version = "0.4.0"

var Commit string

func VersionStr() string {
	if Commit == "" {
		return fmt.Sprintf("v%s", Version)
	}

	return fmt.Sprintf("v%s-%s", Version, Commit)
}
