package runner

import (
	"encoding/json"
	"fmt"
)

// Texts returned to the model as tool results.
const (
	SuccessMessage = "Task completed successfully you can stop!"
	TimeoutMessage = "Task completed"
	SkippedMessage = "Submission ignored: the task has already finished."
	retryPrefix    = "Retry again! Your previous answer was wrong because, "
	resultPrefix   = "Tool call resulted in: "
)

// RetryMessage asks the model to try again, citing the endpoint's reason.
func RetryMessage(reason string) string { return retryPrefix + reason }

func toolSuccess(output string) string { return resultPrefix + output }

func toolFailure(tool, args string, err error) string {
	detail, _ := json.Marshal(fmt.Sprintf("Error %v occurred while calling %s with args %s", err, tool, args))
	return resultPrefix + `{"error": ` + string(detail) + `}`
}

func submissionFailure(args string, err error) string {
	return fmt.Sprintf("Error: occurred while using the tool 'submit_answer' using %s: %v", args, err)
}
