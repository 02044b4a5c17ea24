package query

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to answer strictly from the supplied
// course-material context and cite sources by number.
const SystemPrompt = `You are a helpful teaching assistant that answers questions using the provided context from course materials.

## RULES:

1. **Use the provided CONTEXT chunks** to answer the question as best you can.
2. **If the context is fragmented or partial**, still try to provide a helpful answer based on what IS available, and note that the answer may be incomplete.
3. **NEVER invent information** that is not in the context. If you truly cannot answer, say so.
4. **Cite your sources** using [Source N] notation matching the chunk numbers provided.
5. **Be concise and educational** - explain concepts clearly for students.

## IMPORTANT:
- If context is provided, USE IT. Don't say "I don't have information" if there are context chunks.
- If the context is limited or fragmented, provide what you can and mention the limitation.

## EXAMPLE RESPONSES:

Good: "Based on the course materials [Source 1], the discussion mentions... However, the context is limited so this may be partial."

Good: "The provided excerpts [Source 1, 2] discuss... but don't fully cover the requested topic."

Bad: "I don't have information about that" (when context WAS provided - use it!)
`

// NoContextResponse is returned verbatim when retrieval finds nothing. It is
// a normal answer, not an error.
const NoContextResponse = `I couldn't find any relevant information in the uploaded course materials for your question.

**Suggestions:**
- Check if the relevant module materials have been uploaded
- Try rephrasing your question with different keywords
- Verify you're querying the correct course/module

If you believe the content should exist, please contact your instructor to ensure the materials are properly indexed.`

// contextChunk is the slice of retrieved payload that goes into the prompt.
type contextChunk struct {
	Text       string
	SourceType string
	CourseID   string
	ModuleID   string
}

// BuildPrompt assembles the user prompt: numbered, labelled context chunks
// separated by horizontal rules, followed by the student question.
func BuildPrompt(chunks []contextChunk, question string) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		sourceType := c.SourceType
		if sourceType == "" {
			sourceType = "document"
		}
		courseID := c.CourseID
		if courseID == "" {
			courseID = "N/A"
		}
		moduleID := c.ModuleID
		if moduleID == "" {
			moduleID = "N/A"
		}
		label := fmt.Sprintf("[Source %d] (%s - Course: %s, Module: %s)", i+1, sourceType, courseID, moduleID)
		parts = append(parts, label+"\n"+c.Text)
	}

	contextText := strings.Join(parts, "\n\n---\n\n")

	return fmt.Sprintf(`## CONTEXT FROM COURSE MATERIALS:

%s

---

## STUDENT QUESTION:
%s

## YOUR ANSWER (using ONLY the context above):`, contextText, question)
}
