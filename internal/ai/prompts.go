package ai

// System prompts keyed by prompt type. The general prompt serves the
// confirmation-driven chat flow; analysis drives structured note extraction.
var systemPrompts = map[PromptType]string{
	PromptGeneral:      "You are an intelligent assistant for the Noterer application. You help with note-taking, concept extraction, and philosophical organization.",
	PromptAnalysis:     "You are an analytical assistant for the Noterer application. Extract concepts, categorize content philosophically, and identify relationships between ideas.",
	PromptConfirmation: "You are a helpful assistant for the Noterer application. Your task is to clearly explain proposed changes and ask for user confirmation before proceeding.",
}

func systemPrompt(t PromptType) string {
	if p, ok := systemPrompts[t]; ok {
		return p
	}
	return systemPrompts[PromptGeneral]
}

const noteAnalysisPrompt = `Analyze the following note and extract:
1. Key concepts (nouns or noun phrases that represent distinct ideas)
2. Philosophical categories that apply (from: Teleology, Causality, Epistemology, Ontology, Axiology, Phenomenology, Temporality)
3. Suggested relationships between concepts and categories

Note content:
%s

Format your response as a JSON object with these keys:
- concepts: array of strings
- categories: array of objects with 'name' and 'confidence' (0-1)
- relationships: array of objects with 'source', 'target', and 'type'`
