package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summary_review_workflow/workflow"
)

func newInputCmd(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	c.Flags().StringP("file", "f", "", "")
	c.Flags().Int("example", 0, "")
	require.NoError(t, c.Flags().Parse(flags))
	return c
}

func TestReadInput(t *testing.T) {
	text, err := readInput(newInputCmd(t), []string{"direct text"}, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "direct text", text)

	text, err = readInput(newInputCmd(t, "--example", "2"), nil, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, exampleTexts[1], text)

	_, err = readInput(newInputCmd(t, "--example", "9"), nil, strings.NewReader(""))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("from a file"), 0o644))
	text, err = readInput(newInputCmd(t, "--file", path), nil, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "from a file", text)

	text, err = readInput(newInputCmd(t, "--file", "-"), nil, strings.NewReader("piped"))
	require.NoError(t, err)
	assert.Equal(t, "piped", text)

	text, err = readInput(newInputCmd(t), nil, strings.NewReader("stdin text"))
	require.NoError(t, err)
	assert.Equal(t, "stdin text", text)

	_, err = readInput(newInputCmd(t), []string{"   "}, strings.NewReader(""))
	assert.Error(t, err)
}

func TestFollowPlain(t *testing.T) {
	ch := make(chan workflow.Event, 2)
	st := workflow.NewState("x")
	st.Title = "T"
	ch <- workflow.Event{Node: workflow.NodeStart, Percent: 0, Message: "workflow started"}
	ch <- workflow.Event{Node: workflow.NodeEnd, Percent: 100, Message: "workflow completed", Snapshot: st.Snapshot()}
	close(ch)

	var buf bytes.Buffer
	final := followPlain(ch, &buf)
	require.NotNil(t, final)
	assert.Equal(t, "T", final.Title)
	assert.Contains(t, buf.String(), "[  0%] start")
	assert.Contains(t, buf.String(), "[100%] end")
}

func TestRunCommandWithMockProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	report := filepath.Join(t.TempDir(), "report.md")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{
		"run", "--provider", "mock", "--model", "mock", "--plain", "--out", report,
		"Rain drums on the tin roof while the children read by candlelight.",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "# Rain drums on the")
	assert.Contains(t, out.String(), "outcome=completed revisions=1 approved=true terminated_by=approval")
	assert.Contains(t, errOut.String(), "[100%] end")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Rain drums on the")
}
