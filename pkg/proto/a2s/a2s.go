package a2s

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
)

type (
	QueryResponder struct {
		challenges sync.Map
		enc        proto.Encoder
		state      *proto.StateHolder
		appID      int16
	}

	// infoWireFormat describes the format of a A2S_INFO query response.
	infoWireFormat struct {
		Header      []byte
		Protocol    byte
		ServerName  string
		GameMap     string
		GameFolder  string
		GameName    string
		SteamAppID  int16
		PlayerCount uint8
		MaxPlayers  uint8
		NumBots     uint8
		ServerType  byte
		Environment byte
		Visibility  byte
		VACEnabled  byte
	}

	// challengeWireFormat describes the format of an S2C_CHALLENGE response.
	challengeWireFormat struct {
		Header    []byte
		Challenge int32
	}

	// rulesHeaderWireFormat describes the fixed part of an A2S_RULES response.
	rulesHeaderWireFormat struct {
		Header   []byte
		NumRules int16
	}

	// ruleWireFormat describes one rule of an A2S_RULES response.
	ruleWireFormat struct {
		Name  string
		Value string
	}
)

// MaxPacketSize is the largest single-packet response a client accepts.
const MaxPacketSize = 1400

var (
	a2sInfoRequest     = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x54}
	a2sInfoResponse    = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x49}
	a2sRulesRequest    = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x56}
	a2sRulesResponse   = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x45}
	a2sChallengeHeader = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x41}
)

const noChallenge int32 = -1

// NewQueryResponder returns creates a new responder capable of responding
// to a2s-formatted queries.
func NewQueryResponder(state *proto.StateHolder, appID int16) (proto.QueryResponder, error) {
	q := &QueryResponder{
		enc:   proto.Encoder{Order: binary.LittleEndian, Strings: proto.NullTerminated},
		state: state,
		appID: appID,
	}

	return q, nil
}

// Respond writes a query response to the requester in the A2S wire protocol.
func (q *QueryResponder) Respond(clientAddress string, buf []byte) ([]byte, error) {
	if len(buf) < 5 {
		return nil, ErrInvalidPacketLength
	}

	switch {
	case bytes.Equal(buf[0:5], a2sInfoRequest):
		return q.handleInfoRequest()

	case bytes.Equal(buf[0:5], a2sRulesRequest):
		return q.handleRulesRequest(clientAddress, buf)
	}

	return nil, NewUnsupportedQueryError(buf[0:5])
}

func (q *QueryResponder) handleInfoRequest() ([]byte, error) {
	resp := bytes.NewBuffer(nil)
	f := infoWireFormat{
		Header:      a2sInfoResponse,
		Protocol:    1,
		ServerName:  "n/a",
		GameMap:     "n/a",
		GameFolder:  "n/a",
		GameName:    "n/a",
		SteamAppID:  q.appID,
		ServerType:  byte('d'),
		Environment: environmentFromRuntime(runtime.GOOS),
	}

	if state := q.state.Load(); state != nil {
		f.ServerName = state.ServerName
		f.GameMap = state.Map
		f.PlayerCount = byte(state.CurrentPlayers)
		f.MaxPlayers = byte(state.MaxPlayers)
		f.GameName = state.GameType
	}

	if err := proto.WireWrite(resp, q.enc, f); err != nil {
		return nil, err
	}

	return resp.Bytes(), nil
}

// handleRulesRequest issues a challenge to clients that do not present the
// one they were last given, and answers with the session rules otherwise.
func (q *QueryResponder) handleRulesRequest(clientAddress string, buf []byte) ([]byte, error) {
	if len(buf) < 9 {
		return nil, ErrInvalidPacketLength
	}

	got := int32(binary.LittleEndian.Uint32(buf[5:9]))
	expected, ok := q.challenges.Load(clientAddress)
	if !ok || got == noChallenge || got != expected.(int32) {
		return q.handleChallenge(clientAddress)
	}

	q.challenges.Delete(clientAddress)

	var rules map[string]string
	var names []string
	if state := q.state.Load(); state != nil {
		rules = state.Rules
		names = state.RuleNames()
	}

	resp := bytes.NewBuffer(nil)
	err := proto.WireWrite(resp, q.enc, rulesHeaderWireFormat{
		Header:   a2sRulesResponse,
		NumRules: int16(len(names)),
	})
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if err := proto.WireWrite(resp, q.enc, ruleWireFormat{Name: name, Value: rules[name]}); err != nil {
			return nil, err
		}
	}

	if resp.Len() > MaxPacketSize {
		return nil, ErrResponseTooLarge
	}

	return resp.Bytes(), nil
}

func (q *QueryResponder) handleChallenge(clientAddress string) ([]byte, error) {
	randBytes := make([]byte, 4)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, err
	}

	v := int32(binary.LittleEndian.Uint32(randBytes))
	if v == noChallenge {
		v = 0
	}

	q.challenges.Store(clientAddress, v)

	resp := bytes.NewBuffer(nil)
	err := proto.WireWrite(resp, q.enc, challengeWireFormat{
		Header:    a2sChallengeHeader,
		Challenge: v,
	})
	if err != nil {
		return nil, err
	}

	return resp.Bytes(), nil
}

func environmentFromRuntime(rt string) byte {
	switch rt {
	case "darwin":
		return byte('m')
	case "windows":
		return byte('w')
	default:
		return byte('l')
	}
}
