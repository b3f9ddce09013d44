package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeContent(t *testing.T) {
	payload := ContentPayload{
		Content:  "<p>hello</p>",
		Position: Position{X: 12, Y: 340},
		UserData: Identity{UserID: "u1", UserName: "Ada", UserColor: "#ff0000"},
	}

	raw, err := Encode(TypeContent, payload)
	require.NoError(t, err)

	results := Decode(raw)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, TypeContent, results[0].Frame.Type)

	got, err := results[0].Frame.ContentData()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeConcatenatedFrames(t *testing.T) {
	a, err := Encode(TypeUserAdded, PresencePayload{UserData: Identity{UserID: "u1", UserName: "Ada"}})
	require.NoError(t, err)
	b, err := Encode(TypeUserRemoved, PresencePayload{UserData: Identity{UserID: "u2", UserName: "Bob"}})
	require.NoError(t, err)

	results := Decode(append(a, b...))
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Equal(t, TypeUserAdded, results[0].Frame.Type)
	p0, err := results[0].Frame.PresenceData()
	require.NoError(t, err)
	assert.Equal(t, "u1", p0.UserData.UserID)

	require.NoError(t, results[1].Err)
	assert.Equal(t, TypeUserRemoved, results[1].Frame.Type)
	p1, err := results[1].Frame.PresenceData()
	require.NoError(t, err)
	assert.Equal(t, "u2", p1.UserData.UserID)
}

func TestDecodeThreeConcatenatedFrames(t *testing.T) {
	var raw []byte
	for _, id := range []string{"a", "b", "c"} {
		frame, err := Encode(TypeUserAdded, PresencePayload{UserData: Identity{UserID: id}})
		require.NoError(t, err)
		raw = append(raw, frame...)
	}

	results := Decode(raw)
	require.Len(t, results, 3)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, results[i].Err)
		p, err := results[i].Frame.PresenceData()
		require.NoError(t, err)
		assert.Equal(t, id, p.UserData.UserID)
	}
}

func TestDecodeGarbage(t *testing.T) {
	results := Decode([]byte("not json at all"))
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestDecodeConcatenatedWithOneBadFrame(t *testing.T) {
	good, err := Encode(TypeUserAdded, PresencePayload{UserData: Identity{UserID: "u1"}})
	require.NoError(t, err)
	raw := append([]byte(`{"type":"content","data":oops}`), good...)

	results := Decode(raw)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, TypeUserAdded, results[1].Frame.Type)
}
