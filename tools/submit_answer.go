package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// SubmitAnswerInput is the advertised shape. Payload is described as a string
// because that is what models reliably produce; objects are accepted too.
type SubmitAnswerInput struct {
	SubmissionURL string `json:"submission_url" jsonschema_description:"URL to POST the answer to, exactly as given by the task page."`
	Payload       string `json:"payload" jsonschema_description:"The JSON body to submit, as a JSON-encoded string, e.g. {\"email\": \"...\", \"answer\": 42}."`
}

// SubmitAnswerArgs is the decoded form of a submit_answer call.
type SubmitAnswerArgs struct {
	SubmissionURL string          `json:"submission_url"`
	Payload       json.RawMessage `json:"payload"`
}

// DecodeSubmitAnswer parses submit_answer arguments without interpreting the
// payload.
func DecodeSubmitAnswer(input json.RawMessage) (SubmitAnswerArgs, error) {
	var args SubmitAnswerArgs
	if err := decodeInput(input, &args); err != nil {
		return SubmitAnswerArgs{}, err
	}
	if strings.TrimSpace(args.SubmissionURL) == "" {
		return SubmitAnswerArgs{}, errors.New("submission_url is required")
	}
	return args, nil
}

// submitAnswer advertises the submission schema. The solve loop intercepts
// submit_answer calls and hands them to its own evaluator, so Function only
// serves callers that invoke the registry directly.
func (d Deps) submitAnswer() ToolDefinition {
	return ToolDefinition{
		Name:        SubmitAnswer,
		Description: "Submit an answer to the task's submission URL. The response says whether it was correct, why not, and may carry the URL of the next task.",
		InputSchema: GenerateSchema[SubmitAnswerInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			args, err := DecodeSubmitAnswer(input)
			if err != nil {
				return "", err
			}
			if d.Submitter == nil {
				return "", notConfigured(SubmitAnswer)
			}

			resp, err := d.Submitter.Submit(ctx, args.SubmissionURL, args.Payload)
			if err != nil {
				return "", err
			}
			return encodeResult(resp)
		},
	}
}
