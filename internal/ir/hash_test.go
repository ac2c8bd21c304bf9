package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterministic(t *testing.T) {
	ev := NewEvent("login", O("user", IRString("ada")))

	id1, err := EventID(ev, 1)
	require.NoError(t, err)
	id2, err := EventID(ev, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
}

func TestEventIDDistinguishesSeqAndContent(t *testing.T) {
	ev := NewEvent("login", O("user", IRString("ada")))

	assert.NotEqual(t, MustEventID(ev, 1), MustEventID(ev, 2))
	assert.NotEqual(t,
		MustEventID(ev, 1),
		MustEventID(NewEvent("login", O("user", IRString("bob"))), 1))
}

func TestEventIDAbsentContent(t *testing.T) {
	// Absent and explicit null content hash the same: neither is encoded.
	assert.Equal(t,
		MustEventID(Event{Name: "tick"}, 3),
		MustEventID(Event{Name: "tick", Content: IRNull{}}, 3))
}

func TestActionIDIncludesPipe(t *testing.T) {
	act := NewAction("ready", nil)

	assert.NotEqual(t, MustActionID("a", act, 1), MustActionID("b", act, 1))
	assert.Equal(t, MustActionID("a", act, 1), MustActionID("a", NewAction("ready", IRObject{}), 1))
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"seq":1}`)
	assert.NotEqual(t, hashWithDomain(DomainEvent, data), hashWithDomain(DomainAction, data))
}

func TestSpecHash(t *testing.T) {
	specs := []PipeSpec{{
		ID:      "ready",
		Streams: []string{"login", "profile-loaded"},
		Emit:    EmitClause{Type: "ready", Payload: map[string]string{"user": "login.user"}},
	}}

	h1, err := SpecHash(specs)
	require.NoError(t, err)
	h2, err := SpecHash(specs)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	specs[0].Emit.Type = "ready-v2"
	h3, err := SpecHash(specs)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
