package parser

import (
	"testing"

	"chattysync/internal/chatty"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseLolCounts(t *testing.T) {
	data := `{
		"100": {"100": {"lol": "3", "inf": 1}, "101": {"wtf": "0"}, "102": []},
		"200": [],
		"300": {"305": {"aww": 2}}
	}`

	counts, err := ParseLolCounts([]byte(data))
	if err != nil {
		t.Fatal(err)
	}

	expect := chatty.LolCounts{Threads: map[int64]chatty.ThreadLols{
		100: {100: {chatty.TagLol: 3, chatty.TagInf: 1}},
		300: {305: {chatty.TagAww: 2}},
	}}
	if diff := cmp.Diff(expect, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}
	require.Equal(t, 3, counts.Post(100, 100)[chatty.TagLol])
	require.Len(t, counts.Post(200, 1), 0)
}

func TestParseLolCountsEmpty(t *testing.T) {
	counts, err := ParseLolCounts([]byte("[]"))
	require.NoError(t, err)
	require.Len(t, counts.Threads, 0)

	_, err = ParseLolCounts([]byte(`{"x": {}}`))
	require.Error(t, err)
}

func TestParseThreadTags(t *testing.T) {
	data := `{"status": "1", "data": [
		{"thread_id": "101", "tag": "1", "total": "4"},
		{"thread_id": "101", "tag": "4", "total": "2"},
		{"thread_id": "102", "tag": 7, "total": 1},
		{"thread_id": "103", "tag": "2", "total": "0"}
	]}`

	tags, err := ParseThreadTags([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	expect := chatty.ThreadLols{
		101: {chatty.TagLol: 4, chatty.TagInf: 2},
		102: {chatty.TagAww: 1},
	}
	if diff := cmp.Diff(expect, tags); diff != "" {
		t.Fatalf("unexpected tags (-want +got):\n%s", diff)
	}

	_, err = ParseThreadTags([]byte(`{"status": "0", "data": []}`))
	require.Error(t, err)
}
