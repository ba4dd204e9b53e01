package stream

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatStream = `{"model":"llama2","message":{"role":"assistant","content":"He"},"done":false}
{"model":"llama2","message":{"role":"assistant","content":"llo"},"done":false}

{"model":"llama2","message":{"role":"assistant","content":", wörld ✓"},"done":false}
{"model":"llama2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}
`

func collect(r *Reassembler, chunks ...string) []Event {
	var out []Event
	for _, c := range chunks {
		out = append(out, r.Feed(c)...)
	}
	return append(out, r.Finish()...)
}

func TestReassembler_WholeStream(t *testing.T) {
	events := collect(NewReassembler(), chatStream)

	require.Len(t, events, 4)
	assert.Equal(t, "He", events[0].Fragment())
	assert.Equal(t, "llo", events[1].Fragment())
	assert.Equal(t, ", wörld ✓", events[2].Fragment())
	assert.Equal(t, "assistant", events[2].Message.Role)
	assert.False(t, events[2].Done)
	assert.True(t, events[3].Done)
}

func TestReassembler_ChunkBoundaryIndependence(t *testing.T) {
	want := collect(NewReassembler(), chatStream)

	// every two-way split, including splits inside multi-byte runes
	for i := 0; i <= len(chatStream); i++ {
		got := collect(NewReassembler(), chatStream[:i], chatStream[i:])
		require.Equal(t, want, got, "split at %d", i)
	}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var chunks []string
		rest := chatStream
		for len(rest) > 0 {
			n := rng.Intn(12)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		require.Equal(t, want, collect(NewReassembler(), chunks...), "round %d", round)
	}
}

func TestReassembler_PartialRecordIsHeld(t *testing.T) {
	r := NewReassembler()

	require.Empty(t, r.Feed(`{"message":{"role":"assistant","con`))
	require.Equal(t, `{"message":{"role":"assistant","con`, r.Pending())

	events := r.Feed(`tent":"Hi"}}` + "\n" + `{"done":`)
	require.Len(t, events, 1)
	require.Equal(t, "Hi", events[0].Fragment())
	require.Equal(t, `{"done":`, r.Pending())

	events = r.Feed("true}")
	require.Empty(t, events)

	events = r.Finish()
	require.Len(t, events, 1)
	require.True(t, events[0].Done)
	require.Nil(t, events[0].Message)
	require.Empty(t, r.Pending())
}

func TestReassembler_EmptyAndNewlineFreeChunks(t *testing.T) {
	r := NewReassembler()
	require.Empty(t, r.Feed(""))
	require.Empty(t, r.Feed(`{"done":true}`))
	require.Empty(t, r.Feed(""))
	require.Equal(t, `{"done":true}`, r.Pending())
}

func TestReassembler_MalformedRecordsAreDiscarded(t *testing.T) {
	input := strings.Join([]string{
		`{"message":{"content":"a"}}`,
		`{"message":{"content":`,
		`not json at all`,
		`42`,
		`["array"]`,
		`{"message":{"content":"b"}}`,
	}, "\n") + "\n"

	events := collect(NewReassembler(), input)
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].Fragment())
	require.Equal(t, "b", events[1].Fragment())
}

func TestReassembler_FinishDiscardsMalformedTail(t *testing.T) {
	r := NewReassembler()
	require.Len(t, r.Feed(`{"done":false}`+"\n"+`{"trunc`), 1)
	require.Empty(t, r.Finish())
	require.Empty(t, r.Finish(), "finish twice yields nothing")
}

func TestReassembler_CRLFAndWhitespace(t *testing.T) {
	events := collect(NewReassembler(), "  {\"message\":{\"content\":\"x\"}}\r\n\r\n\t\n{\"done\":true}\r\n")
	require.Len(t, events, 2)
	require.Equal(t, "x", events[0].Fragment())
	require.True(t, events[1].Done)
}

func TestReassembler_InBandError(t *testing.T) {
	events := collect(NewReassembler(), `{"error":"model 'nope' not found"}`)
	require.Len(t, events, 1)
	require.Equal(t, "model 'nope' not found", events[0].Error)
	require.Empty(t, events[0].Fragment())
}
