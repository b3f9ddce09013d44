package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes one frame of the given type.
func Encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", typ, err)
	}
	return json.Marshal(Frame{Type: typ, Data: raw})
}

// Result is one decoded candidate frame: either a frame or the error that
// made it undecodable. A bad candidate never poisons its siblings.
type Result struct {
	Frame Frame
	Err   error
}

// Decode parses a raw payload into frames. The whole payload is tried first;
// if that fails, the payload is assumed to be several frames delivered
// concatenated back to back (an observed transport defect) and is split on
// the "}{"  boundary, each piece parsed independently. The split is a
// heuristic: a frame whose string content legitimately contains "}{"  would
// be mangled. Pieces that still fail to parse come back as failed Results.
func Decode(raw []byte) []Result {
	var f Frame
	if err := json.Unmarshal(raw, &f); err == nil {
		return []Result{{Frame: f}}
	}

	parts := splitConcatenated(raw)
	if len(parts) < 2 {
		return []Result{{Err: fmt.Errorf("decode frame: not valid JSON and not splittable")}}
	}

	results := make([]Result, 0, len(parts))
	for i, part := range parts {
		var sub Frame
		if err := json.Unmarshal(part, &sub); err != nil {
			results = append(results, Result{Err: fmt.Errorf("decode split frame %d/%d: %w", i+1, len(parts), err)})
			continue
		}
		results = append(results, Result{Frame: sub})
	}
	return results
}

// splitConcatenated cuts raw on every "}{"  boundary, restoring the stripped
// brace on each side.
func splitConcatenated(raw []byte) [][]byte {
	pieces := bytes.Split(raw, []byte("}{"))
	if len(pieces) < 2 {
		return nil
	}
	out := make([][]byte, len(pieces))
	for i, p := range pieces {
		var b bytes.Buffer
		if i > 0 {
			b.WriteByte('{')
		}
		b.Write(p)
		if i < len(pieces)-1 {
			b.WriteByte('}')
		}
		out[i] = b.Bytes()
	}
	return out
}
