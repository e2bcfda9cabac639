package sqp

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
)

type (
	// QueryResponder represents a responder capable of responding to SQP-formatted queries.
	QueryResponder struct {
		challenges sync.Map
		enc        proto.Encoder
		state      *proto.StateHolder
	}

	// challengeWireFormat describes the format of an SQP challenge response.
	challengeWireFormat struct {
		Header    byte
		Challenge uint32
	}

	// queryHeaderWireFormat describes the fixed header of an SQP query response.
	queryHeaderWireFormat struct {
		Header           byte
		Challenge        uint32
		SQPVersion       uint16
		CurrentPacketNum byte
		LastPacketNum    byte
		PayloadLength    uint16
	}

	// serverInfoChunkWireFormat describes the ServerInfo chunk.
	serverInfoChunkWireFormat struct {
		ServerInfoLength uint32
		ServerInfo       sqpServerInfo
	}

	// ruleWireFormat describes one string-typed entry of the ServerRules chunk.
	ruleWireFormat struct {
		Key   string
		Type  byte
		Value string
	}
)

const (
	chunkServerInfo  = 0x1
	chunkServerRules = 0x2

	ruleTypeString = 4

	maxStringLength  = 0xFF
	maxPayloadLength = 0xFFFF
)

// NewQueryResponder returns creates a new responder capable of responding
// to SQP-formatted queries about the state published in state.
func NewQueryResponder(state *proto.StateHolder) (proto.QueryResponder, error) {
	q := &QueryResponder{
		enc:   proto.Encoder{Order: binary.BigEndian, Strings: proto.Uint8Prefixed},
		state: state,
	}

	return q, nil
}

// Respond writes a query response to the requester in the SQP wire protocol.
func (q *QueryResponder) Respond(clientAddress string, buf []byte) ([]byte, error) {
	if len(buf) < 5 {
		return nil, ErrInvalidPacketLength
	}

	switch {
	case isChallenge(buf):
		return q.handleChallenge(clientAddress)

	case isQuery(buf):
		return q.handleQuery(clientAddress, buf)
	}

	return nil, ErrUnsupportedQuery
}

// isChallenge determines if the input buffer corresponds to a challenge packet.
func isChallenge(buf []byte) bool {
	return bytes.Equal(buf[0:5], []byte{0, 0, 0, 0, 0})
}

// isQuery determines if the input buffer corresponds to a query packet.
func isQuery(buf []byte) bool {
	return buf[0] == 1
}

// handleChallenge handles an incoming challenge packet.
func (q *QueryResponder) handleChallenge(clientAddress string) ([]byte, error) {
	randBytes := make([]byte, 4)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, err
	}

	v := binary.BigEndian.Uint32(randBytes)
	q.challenges.Store(clientAddress, v)

	resp := bytes.NewBuffer(nil)
	err := proto.WireWrite(
		resp,
		q.enc,
		challengeWireFormat{
			Header:    0,
			Challenge: v,
		},
	)
	if err != nil {
		return nil, err
	}

	return resp.Bytes(), nil
}

// handleQuery handles an incoming query packet.
func (q *QueryResponder) handleQuery(clientAddress string, buf []byte) ([]byte, error) {
	expectedChallenge, ok := q.challenges.LoadAndDelete(clientAddress)
	if !ok {
		return nil, ErrNoChallenge
	}

	if len(buf) < 8 {
		return nil, ErrInvalidPacketLength
	}

	// Challenge doesn't match, return with no response
	if binary.BigEndian.Uint32(buf[1:5]) != expectedChallenge.(uint32) {
		return nil, ErrChallengeMismatch
	}

	if binary.BigEndian.Uint16(buf[5:7]) != 1 {
		return nil, NewUnsupportedSQPVersionError(int8(buf[6]))
	}

	requestedChunks := buf[7]
	state := q.state.Load()
	payload := bytes.NewBuffer(nil)

	if requestedChunks&chunkServerInfo != 0 {
		info := queryStateToServerInfo(state)
		err := proto.WireWrite(payload, q.enc, serverInfoChunkWireFormat{
			ServerInfoLength: info.Size(),
			ServerInfo:       info,
		})
		if err != nil {
			return nil, err
		}
	}

	if requestedChunks&chunkServerRules != 0 {
		if err := q.writeRules(payload, state); err != nil {
			return nil, err
		}
	}

	if payload.Len() > maxPayloadLength {
		return nil, ErrResponseTooLarge
	}

	resp := bytes.NewBuffer(nil)
	err := proto.WireWrite(resp, q.enc, queryHeaderWireFormat{
		Header:        1,
		Challenge:     expectedChallenge.(uint32),
		SQPVersion:    1,
		PayloadLength: uint16(payload.Len()),
	})
	if err != nil {
		return nil, err
	}

	resp.Write(payload.Bytes())

	return resp.Bytes(), nil
}

// writeRules writes the ServerRules chunk: a length followed by every rule as
// a string-typed entry.
func (q *QueryResponder) writeRules(payload *bytes.Buffer, state *proto.QueryState) error {
	chunk := bytes.NewBuffer(nil)
	if state != nil {
		for _, name := range state.RuleNames() {
			value := state.Rules[name]
			if len(name) > maxStringLength || len(value) > maxStringLength {
				return ErrStringTooLong
			}

			if err := proto.WireWrite(chunk, q.enc, ruleWireFormat{Key: name, Type: ruleTypeString, Value: value}); err != nil {
				return err
			}
		}
	}

	if err := q.enc.Write(payload, uint32(chunk.Len())); err != nil {
		return err
	}

	_, err := payload.Write(chunk.Bytes())

	return err
}
