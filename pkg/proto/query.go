package proto

import (
	"bytes"
	"reflect"
	"sort"
	"sync/atomic"
)

type (
	// QueryResponder represents an interface to a concrete type which responds
	// to query requests.
	QueryResponder interface {
		Respond(clientAddress string, buf []byte) ([]byte, error)
	}

	// WireEncoder is an interface which allows for different query implementations
	// to write data to a byte buffer in a specific format.
	WireEncoder interface {
		WriteString(resp *bytes.Buffer, s string) error
		Write(resp *bytes.Buffer, v interface{}) error
	}

	// QueryState represents the advertised state of a hosted session.
	QueryState struct {
		CurrentPlayers int32
		MaxPlayers     int32
		ServerName     string
		GameType       string
		Map            string
		BuildID        string
		Port           uint16

		// Rules is the session metadata served to rules queries.
		Rules map[string]string
	}

	// StateHolder publishes the current QueryState to query goroutines. The
	// stored state is treated as immutable; writers store a fresh copy.
	StateHolder struct {
		p atomic.Pointer[QueryState]
	}
)

// NewStateHolder returns a holder publishing qs, which may be nil.
func NewStateHolder(qs *QueryState) *StateHolder {
	h := &StateHolder{}
	h.Store(qs)

	return h
}

// Load returns the current state, or nil when nothing is hosted.
func (h *StateHolder) Load() *QueryState {
	if h == nil {
		return nil
	}

	return h.p.Load()
}

// Store replaces the current state.
func (h *StateHolder) Store(qs *QueryState) {
	h.p.Store(qs)
}

// RuleNames returns the rule names in a stable order.
func (qs *QueryState) RuleNames() []string {
	names := make([]string, 0, len(qs.Rules))
	for k := range qs.Rules {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

// WireWrite writes the provided data to resp with the provided WireEncoder w.
func WireWrite(resp *bytes.Buffer, w WireEncoder, data interface{}) error {
	t := reflect.TypeOf(data)
	vs := reflect.Indirect(reflect.ValueOf(data))
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		v := vs.FieldByName(f.Name)

		// Dereference pointer
		if f.Type.Kind() == reflect.Ptr {
			if v.IsNil() {
				continue
			}
			v = v.Elem()
		}

		switch v.Kind() {
		case reflect.Struct:
			if err := WireWrite(resp, w, v.Interface()); err != nil {
				return err
			}

		case reflect.String:
			if err := w.WriteString(resp, v.String()); err != nil {
				return err
			}

		default:
			if err := w.Write(resp, v.Interface()); err != nil {
				return err
			}
		}
	}

	return nil
}
