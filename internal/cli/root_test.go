package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	err := cmd.Execute()
	require.NoError(t, err)
	require.NotEmpty(t, buf.String())
}

func TestToolsCommandPrintsSchemas(t *testing.T) {
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"tools"})

	require.NoError(t, cmd.Execute())

	var out []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema struct {
			Type     string         `json:"type"`
			Props    map[string]any `json:"properties"`
			Required []string       `json:"required"`
		} `json:"input_schema"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 5)
	require.Equal(t, "submit_answer", out[4].Name)
	require.Equal(t, "object", out[4].InputSchema.Type)
	require.ElementsMatch(t, []string{"submission_url", "payload"}, out[4].InputSchema.Required)
}

func TestSolveRequiresTaskURL(t *testing.T) {
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"solve"})
	require.Error(t, cmd.Execute())
}

func TestParseTaskURL(t *testing.T) {
	u, err := parseTaskURL("https://quiz.example.com/task/1")
	require.NoError(t, err)
	require.Equal(t, "https://quiz.example.com/task/1", u)

	for _, bad := range []string{"quiz.example.com", "ftp://x/y", "https://", "::"} {
		_, err := parseTaskURL(bad)
		require.Error(t, err, bad)
	}
}

func TestSeedConversation(t *testing.T) {
	msgs := seedConversation("https://x/q1").Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "system", string(msgs[0].Role))
	require.Contains(t, msgs[1].Text, "https://x/q1")
}
