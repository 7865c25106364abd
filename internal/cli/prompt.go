package cli

import (
	"fmt"

	"github.com/petasbytes/solver-agent/memory"
)

const systemPrompt = `You solve data tasks published as web pages.

Start by rendering the task URL with get_rendered_html and read the instructions.
Use download_file, add_dependencies and run_code to compute the answer.
Submit with submit_answer to the submission URL the page names; the payload is a JSON string.
If the response offers a new task URL, continue with that task.
Stop when a tool result tells you to stop.`

// seedConversation returns the opening messages for taskURL.
func seedConversation(taskURL string) *memory.Conversation {
	return memory.NewConversation(
		memory.Message{Role: memory.RoleSystem, Text: systemPrompt},
		memory.Message{Role: memory.RoleUser, Text: fmt.Sprintf("Solve the task at %s", taskURL)},
	)
}
