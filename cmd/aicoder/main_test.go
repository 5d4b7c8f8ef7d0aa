package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/contextmgr"
	"github.com/Cyclone1070/aicoder/internal/payload"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/render"
	"github.com/Cyclone1070/aicoder/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	workspace  string
	configPath string
	dataDir    string
}

func newTestEnv(t *testing.T, extra map[string]any) testEnv {
	t.Helper()
	env := testEnv{workspace: t.TempDir(), dataDir: t.TempDir()}

	cfg := map[string]any{"session": map[string]any{"dataDir": env.dataDir}}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	env.configPath = filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(env.configPath, data, 0o644))
	return env
}

func (e testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--workspace", e.workspace, "--config", e.configPath}, args...))

	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// --- HAPPY PATH TESTS ---

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"ask", "prompt", "goal", "tool", "mcp", "session", "payload"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"verbose", "workspace", "config"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestToolList(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "", "tool", "list")

	require.NoError(t, err)
	for _, name := range []string{"read_file", "write_file", "apply_patch", "run_command", "kill_command", "git_status"} {
		assert.Contains(t, out, name)
	}
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 12)
}

func TestToolCall_ReadFile(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.workspace, "a.txt"), []byte("hello"), 0o644))

	out, err := env.run(t, "", "tool", "call", "read_file", `{"path":"a.txt"}`)

	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "hello", res["output"])
}

func TestPrompt_PrintsIntent(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "", "prompt", "refactor", "the", "parser")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "intent: "))
	assert.Contains(t, out, "refactor the parser")
}

func TestPrompt_IncludesWorkspaceSnippets(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.workspace, "parser.go"), []byte("package parser\n\nfunc zorblax() {}\n"), 0o644))

	out, err := env.run(t, "", "prompt", "explain", "zorblax")

	require.NoError(t, err)
	assert.Contains(t, out, "Relevant workspace snippets:")
	assert.Contains(t, out, "[parser.go:1-4]")
	assert.Contains(t, out, "func zorblax() {}")
}

func TestSession_ListAndShow(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "", "session", "list")
	require.NoError(t, err)
	assert.Equal(t, "No sessions.\n", out)

	store, err := session.Open(env.dataDir, nil)
	require.NoError(t, err)
	state, err := encodeState(contextmgr.State{
		Summary:  "earlier work",
		Messages: []contextmgr.Message{{Role: contextmgr.RoleUser, Content: "add a flag"}},
	})
	require.NoError(t, err)
	sess, err := store.Save(context.Background(), "", "/elsewhere", state)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err = env.run(t, "", "session", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, sess.ID)

	out, err = env.run(t, "", "session", "show", sess.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "summary\nearlier work")
	assert.Contains(t, out, "user\nadd a flag")
}

func TestPayloadApply(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := "Here's your project:\n" + payload.StartTag + `
{"files":[{"path":"/cmd/app/main.go","content":"package main\n"}]}
` + payload.EndTag

	out, err := env.run(t, reply, "payload", "apply", "--no-repair")

	require.NoError(t, err)
	assert.Equal(t, "1 created, 0 updated\n", out)
	data, err := os.ReadFile(filepath.Join(env.workspace, "cmd", "app", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
}

func TestPayloadApply_DryRun(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := `{"files":[{"path":"a\\b.txt","content":"x"}]}`

	out, err := env.run(t, reply, "payload", "apply", "--no-repair", "--dry-run")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, payload.StartTag))
	assert.Contains(t, out, `"path": "a/b.txt"`)
	assert.NoFileExists(t, filepath.Join(env.workspace, "a", "b.txt"))
}

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs("  ")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = parseToolArgs(`{"path":"a.txt","max":3}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "a.txt", "max": 3.0}, args)
}

func TestFinalReply(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "goal"},
		{Role: models.RoleAssistant, Content: "done: added the flag"},
		{Role: models.RoleAssistant, Content: "  "},
		{Role: models.RoleTool, Content: "{}"},
	}

	assert.Equal(t, "done: added the flag", finalReply(messages))
	assert.Empty(t, finalReply(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Cancelled.", userMessage(context.Canceled))
	rl := &models.ProviderError{Code: models.ErrorCodeRateLimit, Message: "slow down"}
	assert.Equal(t, rl.UserMessage(), userMessage(rl))
}

// --- ERROR PATH TESTS ---

func TestToolCall_FailureExitsNonZero(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "", "tool", "call", "read_file", `{"path":"missing.txt"}`)

	assert.ErrorIs(t, err, errToolFailed)
	assert.Contains(t, out, `"ok": false`)
}

func TestToolCall_InvalidArgs(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.run(t, "", "tool", "call", "read_file", `[1,2]`)

	assert.ErrorContains(t, err, "tool arguments must be a JSON object")
}

func TestAsk_MissingAPIKey(t *testing.T) {
	t.Setenv("AICODER_TEST_KEY", "")
	env := newTestEnv(t, map[string]any{
		"provider": map[string]any{"type": "anthropic", "apiKeyEnv": "AICODER_TEST_KEY"},
	})

	_, err := env.run(t, "", "ask", "explain", "main.go")

	assert.ErrorIs(t, err, models.ErrMissingAPIKey)
}

func TestPayloadApply_UnparsableWithoutRepair(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "no payload here", "payload", "apply", "--no-repair")

	assert.ErrorIs(t, err, payload.ErrNoPayload)
	var unparsable *payload.UnparsableError
	require.ErrorAs(t, err, &unparsable)
	assert.Equal(t, "no payload here", unparsable.Raw)
	assert.Contains(t, out, "Error: ")
	assert.Contains(t, out, "Raw model reply:\nno payload here\n")
}

func TestFail_PrintsRawReplyOfUnparsablePayload(t *testing.T) {
	var buf bytes.Buffer
	a := &app{render: render.New(&buf, false)}
	raw := "Sure! Here are the files:\n{\"files\": [oops"

	err := fail(a, &payload.UnparsableError{Raw: raw})

	assert.ErrorIs(t, err, payload.ErrNoPayload)
	assert.Equal(t, "Error: unparsable project payload\nRaw model reply:\n"+raw+"\n", buf.String())
}

func TestFail_PlainErrorHasNoRawSection(t *testing.T) {
	var buf bytes.Buffer
	a := &app{render: render.New(&buf, false)}

	_ = fail(a, errors.New("boom"))

	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestConfig_InvalidFileFails(t *testing.T) {
	env := newTestEnv(t, map[string]any{"workflow": map[string]any{"maxIters": 0}})

	_, err := env.run(t, "", "tool", "list")

	assert.ErrorContains(t, err, "workflow.maxIters must be >= 1")
}
