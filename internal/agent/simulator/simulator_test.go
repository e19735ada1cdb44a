package simulator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/agent/simulator"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/story"
	"github.com/mkarpis/prompttuner/internal/testutil"
)

func newSimulator(client *testutil.MockClient, minTags, maxTags int) *simulator.Simulator {
	executor := agent.NewExecutor(testutil.Logger(), client)
	return simulator.New(testutil.Logger(), executor,
		config.AgentConfig{Temperature: 0.2, MaxTokens: 200},
		"openai/gpt-4o-mini",
		config.SimulateConfig{MinTags: minTags, MaxTags: maxTags})
}

func TestSimulate_SubsetOfProfile(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`["fantasy", "dragons", "unicorns", "school", "magic", "adventure"]`), nil)

	profile := story.UserProfile{
		UserID: 1,
		Tags:   []string{"fantasy", "dragons", "school", "magic", "adventure", "revenge", "swordplay"},
	}

	tags, err := newSimulator(client, 2, 8).Simulate(context.Background(), profile)
	require.NoError(t, err)

	// "unicorns" is not in the profile and must be dropped
	assert.Equal(t, []string{"fantasy", "dragons", "school", "magic", "adventure"}, tags)
}

func TestSimulate_ClampsToMaxTags(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`["a", "b", "c", "d", "e"]`), nil)

	profile := story.UserProfile{UserID: 1, Tags: []string{"a", "b", "c", "d", "e"}}

	tags, err := newSimulator(client, 1, 3).Simulate(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tags)
}

func TestSimulate_TopsUpToMinTags(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`["c"]`), nil)

	profile := story.UserProfile{UserID: 1, Tags: []string{"a", "b", "c", "d"}}

	tags, err := newSimulator(client, 3, 4).Simulate(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "c", tags[0])
	assert.Subset(t, profile.Tags, tags)
}

func TestSimulate_SmallProfileYieldsWholeProfile(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`["a"]`), nil)

	profile := story.UserProfile{UserID: 1, Tags: []string{"a", "b"}}

	tags, err := newSimulator(client, 5, 8).Simulate(context.Background(), profile)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, tags)
}

func TestSimulate_DedupesAndIgnoresCase(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`["Fantasy", "fantasy", "DRAGONS"]`), nil)

	profile := story.UserProfile{UserID: 1, Tags: []string{"fantasy", "dragons"}}

	tags, err := newSimulator(client, 1, 5).Simulate(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "dragons"}, tags)
}

func TestSimulate_MalformedResponse(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(""), nil)

	_, err := newSimulator(client, 1, 5).Simulate(context.Background(), testutil.Profile())
	require.Error(t, err)
}

func TestSimulate_RefusalProseIsMalformed(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse("Sorry, I am unable to generate preference tags for this request."), nil)

	profile := story.UserProfile{UserID: 1, Tags: []string{"a", "b", "c", "d", "e", "f"}}

	tags, err := newSimulator(client, 3, 8).Simulate(context.Background(), profile)
	require.Error(t, err)
	assert.Nil(t, tags)

	var malformed *agent.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, agent.TypeSimulator, malformed.AgentType)
}

func TestSimulate_NoProfileTagsInArrayIsMalformed(t *testing.T) {
	client := new(testutil.MockClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`["unicorns", "spaceships"]`), nil)

	profile := story.UserProfile{UserID: 1, Tags: []string{"fantasy", "dragons"}}

	_, err := newSimulator(client, 1, 5).Simulate(context.Background(), profile)

	var malformed *agent.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}
