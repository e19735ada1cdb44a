package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "clean array",
			content: `[1, 2, 3]`,
			want:    `[1, 2, 3]`,
		},
		{
			name:    "array with surrounding prose",
			content: "Here are your stories:\n[1, 2, 3]\nEnjoy!",
			want:    `[1, 2, 3]`,
		},
		{
			name:    "array in markdown fence",
			content: "```json\n[\"tag1\", \"tag2\"]\n```",
			want:    "[\"tag1\", \"tag2\"]",
		},
		{
			name:    "multiline array",
			content: "[\n  1,\n  2\n]",
			want:    "[\n  1,\n  2\n]",
		},
		{
			name:    "no array at all",
			content: "I cannot fulfil this request.",
			wantErr: true,
		},
		{
			name:    "empty content",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONArray(TypeRecommender, tt.content)
			if tt.wantErr {
				require.Error(t, err)
				var malformed *MalformedResponseError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, TypeRecommender, malformed.AgentType)
				assert.Equal(t, tt.content, malformed.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []int64
		wantErr bool
	}{
		{name: "json array", content: `[101, 202, 303]`, want: []int64{101, 202, 303}},
		{name: "array with prose", content: "Top picks: [5, 6, 7]", want: []int64{5, 6, 7}},
		{name: "comma separated", content: "1, 2, 3", want: []int64{1, 2, 3}},
		{name: "newline separated", content: "10\n20\n30", want: []int64{10, 20, 30}},
		{name: "no integers", content: "none match", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDList(TypeOracle, tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStringList(t *testing.T) {
	got, err := ParseStringList(TypeSimulator, `["fantasy", "dragons", " school "]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "dragons", "school"}, got)

	got, err = ParseStringList(TypeSimulator, "fantasy, dragons, school")
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "dragons", "school"}, got)

	_, err = ParseStringList(TypeSimulator, "")
	require.Error(t, err)
}

func TestDedupeIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, DedupeIDs([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, DedupeIDs(nil))
}
