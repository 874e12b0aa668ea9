package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatResponse(t *testing.T) {
	res := &QueryResult{Query: "references", Word: "REQ_1", Locations: []QueryLocation{
		{Path: "/docs/a.rst", Line: 3, Character: 11, EndChar: 16},
		{Path: "/docs/b.rst", Line: 0},
	}}

	out, err := FormatResponse(res, FormatHuman)
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.rst:3:11-16\n/docs/b.rst:0:0", out)

	out, err = FormatResponse(res, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, out, "word: REQ_1")
	assert.NotContains(t, out, "hover")

	out, err = FormatResponse(map[string]int{"a": 1}, FormatHuman)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", out)

	_, err = FormatResponse(res, OutputFormat("xml"))
	assert.Error(t, err)
}

func TestFormatQueryHuman_Completion(t *testing.T) {
	out := formatQueryHuman(&QueryResult{Query: "completion", Completion: []QueryCompletion{
		{Label: "req", Detail: "need type"},
		{Label: "index"},
	}})
	assert.Equal(t, "req                      need type\nindex", out)
}
