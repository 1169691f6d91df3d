package flow

import "fmt"

// analysisTemplate is the fixed analysis prompt. The fenced json block shows
// the reasoning service the exact shape the extractor looks for.
const analysisTemplate = `You are an AI assistant that helps manage notes and related tasks in Noterer.

Task: Analyze the user's request, determine necessary actions, and present a summary for confirmation.

Conversation history:
%s

Current user input:
%s

Please follow these steps:

1. Analyze the user's intent and determine required actions (note creation/modification, event scheduling, concept linking, etc.)

2. For each action, determine:
   - Specific changes to be made
   - Philosophical implications and categorizations
   - Impact on the existing knowledge graph

3. Generate a clear summary of all proposed actions in user-friendly language

4. Ask for user confirmation before proceeding

Your response should include:
1. A brief analysis of the user's request
2. A clear summary of all proposed actions
3. A request for confirmation

For machine processing, include a JSON block with proposed actions in this format:
` + "```json" + `
{
  "proposed_actions": [
    {
      "type": "create_note",
      "content": "note content",
      "concepts": ["concept1", "concept2"],
      "categories": [{"name": "category", "confidence": 0.9}]
    },
    {
      "type": "create_relationship",
      "source": "source_id",
      "target": "target_id",
      "relationship_type": "RELATES_TO",
      "properties": {"weight": 0.8}
    }
  ]
}
` + "```"

func analysisPrompt(userInput, history string) string {
	return fmt.Sprintf(analysisTemplate, history, userInput)
}
