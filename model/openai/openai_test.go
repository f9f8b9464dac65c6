package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/model"
)

func TestBuildMessagesPreservesAssistantTextWithToolCalls(t *testing.T) {
	req := model.Request{
		Instructions: "be helpful",
		Messages: []core.Message{
			core.NewUserMessage("what's the weather in Berlin?"),
			core.NewToolCallMessage("Let me look that up.", []core.ToolCall{
				{ID: "c1", Name: "weather", Arguments: json.RawMessage(`{"city":"Berlin"}`)},
			}),
			core.NewToolResultMessage("c1", "sunny"),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 4)

	assistant := msgs[2].OfAssistant
	require.NotNil(t, assistant)
	assert.Equal(t, "Let me look that up.", assistant.Content.OfString.Value)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "c1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "weather", assistant.ToolCalls[0].Function.Name)
}

func TestBuildMessagesOmitsEmptyAssistantText(t *testing.T) {
	msgs := buildMessages(model.Request{Messages: []core.Message{
		core.NewToolCallMessage("", []core.ToolCall{
			{ID: "c1", Name: "noop", Arguments: json.RawMessage(`{}`)},
		}),
	}})

	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].OfAssistant)
	assert.False(t, msgs[0].OfAssistant.Content.OfString.Valid())
}
