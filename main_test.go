package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a Town Traitor game: the Sheriff is shown in Coven colours
const testLog = `<html><body>
<span><br>PLAYER INFO</span>
<span><br>[1] Alice - </span><span style="color:#BF5FFF">Sheriff</span><span> </span><span>x</span><span>(Username: alice1)</span><span>.</span>
<span><br>[2] Bob - </span><span style="color:#06E00C">Jailor</span><span> </span><span>x</span><span>(Username: bobby)</span><span>.</span>
<span><br>[3] Carol - </span><span style="color:#BF5FFF">Coven Leader</span><span> </span><span>x</span><span>(Username: carol)</span><span>.</span>
<span><br>[4] Dave - </span><span style="color:#BF5FFF">Poisoner</span><span> </span><span>x</span><span>(Username: dave99)</span><span>.</span>
<span><br>[5] Eve - </span><span style="color:#BF5FFF">Witch</span><span> </span><span>x</span><span>(Username: evee)</span><span>.</span>
<span><br>Day 1</span>
<span><br>[2]</span><span>Bob</span><span>hello <i>town</i></span>
<span><br>Night 1</span>
<span><br>Day 2</span>
<span><br>Bob died last night.</span>
</body></html>
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--env", "", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "good.html", testLog)

	out, _, err := execute(t, "parse", good)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"*   [1] alice1 as Alice - Sheriff (Coven)",
		" x  [2] bobby as Bob - Jailor",
		"*   [3] carol as Carol - Coven Leader",
		"*   [4] dave99 as Dave - Poisoner",
		"*   [5] evee as Eve - Witch",
		"Coven won",
		"Hunt not reached",
	}, "\n")+"\n", out)

	bad := writeLog(t, dir, "bad.html", "<html><body></body></html>")
	out, errOut, err := execute(t, "parse", "--json", good, bad)
	assert.ErrorIs(t, err, errFailed)
	assert.Equal(t, bad+": Does not appear to be a gamelog\n", errOut)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	assert.Equal(t, good, line["file"])
	assert.EqualValues(t, 11, line["message_count"])
}

func TestTranscriptCommand(t *testing.T) {
	path := writeLog(t, t.TempDir(), "game.html", testLog)
	out, _, err := execute(t, "transcript", path)
	require.NoError(t, err)
	assert.Equal(t, "== Day 1 ==\n[2] Bob: hello town\n== Night 1 ==\n== Day 2 ==\nBob died last night.\n", out)
}

func TestIngestAndGamesCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "test.db")
	path := writeLog(t, dir, "game-2024-05-01-20-15.html", testLog)
	notes := writeLog(t, dir, "notes.txt", "not a log")

	out, _, err := execute(t, "--db", db, "ingest", "--uploader", "tester", path, notes)
	require.NoError(t, err)
	assert.Equal(t, "Added 1 new game(s)\n", out)

	out, _, err = execute(t, "--db", db, "ingest", "--uploader", "tester", path)
	require.NoError(t, err)
	assert.Equal(t, "Added 0 new game(s)\n", out)

	out, _, err = execute(t, "--db", db, "games", "--account", "EVEE", "--victor", "coven")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Coven")
	assert.True(t, strings.HasSuffix(lines[0], "Alice/alice1/Sheriff,Bob/bobby/Jailor,Carol/carol/Coven Leader,Dave/dave99/Poisoner,Eve/evee/Witch"))

	out, _, err = execute(t, "--db", db, "games", "--account", "nobody", "--victor", "")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, _, err = execute(t, "--db", db, "reanalyze")
	require.NoError(t, err)
	assert.Equal(t, "Updated 0 game(s)\n", out)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("gamelogs version %s\n", rootCmd.Version), out)
}
