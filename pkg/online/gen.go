//go:build generate
// +build generate

package online

import (
	// Import to force a dependency
	_ "golang.org/x/tools/cmd/stringer"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=SessionState -output=sessionstate_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=SessionType -trimprefix=SessionType -output=sessiontype_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=ComparisonOp -trimprefix=Op -output=comparisonop_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=SearchState -trimprefix=Search -output=searchstate_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=ConnectionStatus -trimprefix=Status -output=connectionstatus_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=JoinResult -trimprefix=Join -output=joinresult_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=AdvertisementType -output=advertisementtype_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=ValueKind -trimprefix=Kind -output=valuekind_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=AccountType -trimprefix=Account -output=accounttype_string.go
