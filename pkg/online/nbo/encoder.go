package nbo

import (
	"encoding/binary"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
)

// Encoder writes with the byte order and string framing of this package, so
// fixed packet headers can be written with proto.WireWrite.
var Encoder = proto.Encoder{Order: binary.BigEndian, Strings: proto.Uint32Prefixed}
