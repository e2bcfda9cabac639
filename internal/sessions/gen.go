//go:build generate
// +build generate

package sessions

import (
	// Import to force a dependency
	_ "golang.org/x/tools/cmd/stringer"
)
