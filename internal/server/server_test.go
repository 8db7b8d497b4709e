package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tosgamelogs/internal/database"
	"tosgamelogs/internal/gamelog"
)

func sampleLog(accounts ...string) string {
	roles := []struct{ role, colour string }{
		{"Sheriff", "06E00C"},
		{"Jailor", "06E00C"},
		{"Coven Leader", "BF5FFF"},
		{"Poisoner", "BF5FFF"},
		{"Witch", "BF5FFF"},
	}
	var b strings.Builder
	b.WriteString("<html><body>\n<span><br>PLAYER INFO</span>\n")
	for i, r := range roles {
		fmt.Fprintf(&b, `<span><br>[%d] P%d - </span><span style="color:#%s">%s</span><span> </span><span>x</span><span>(Username: %s)</span><span>.</span>`+"\n",
			i+1, i+1, r.colour, r.role, accounts[i])
	}
	b.WriteString("<span><br>Day 1</span>\n<span><br>Night 1</span>\n<span><br>Day 2</span>\n")
	b.WriteString("<span><br>P1 died last night.</span>\n<span><br>P2 died today.</span>\n")
	b.WriteString("</body></html>\n")
	return b.String()
}

func newTestServer(t *testing.T) (http.Handler, *database.Database) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for i, accounts := range [][]string{
		{"ann", "ben", "cat", "dan", "eli"},
		{"ann", "fay", "gus", "hal", "ivy"},
	} {
		require.NoError(t, db.SaveNames(ctx, accounts))
		text := gamelog.CleanTags(sampleLog(accounts...))
		hash := fmt.Sprintf("log%d", i)
		_, err := db.SaveGamelog(ctx, database.Gamelog{Hash: hash, Filename: hash + ".html", CleanContent: text})
		require.NoError(t, err)
		result, count, err := gamelog.ParseWithCount(text)
		require.NoError(t, err)
		_, err = db.UpsertGame(ctx, database.Game{Gist: gamelog.GistOf(result), FromLog: hash, MessageCount: count, Result: result, AnalysisVersion: gamelog.Version})
		require.NoError(t, err)
	}
	return New(db), db
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["schema_version"])
	migrations := body["migrations"].([]any)
	require.Len(t, migrations, 3)
	for i, m := range migrations {
		m := m.(map[string]any)
		assert.EqualValues(t, i+1, m["id"])
		assert.Equal(t, true, m["applied"])
		assert.NotEmpty(t, m["description"])
	}

	rec = do(t, New(nil), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.NotContains(t, body, "schema_version")
	assert.NotContains(t, body, "migrations")
}

func TestGetPlayer(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		account string
		code    int
		id      int
		games   []string
	}{
		{
			account: "ann",
			code:    http.StatusOK,
			id:      1,
			games: []string{
				"P1/ann/Sheriff,P2/ben/Jailor,P3/cat/Coven Leader,P4/dan/Poisoner,P5/eli/Witch",
				"P1/ann/Sheriff,P2/fay/Jailor,P3/gus/Coven Leader,P4/hal/Poisoner,P5/ivy/Witch",
			},
		},
		{
			account: "fay",
			code:    http.StatusOK,
			id:      6,
			games:   []string{"P1/ann/Sheriff,P2/fay/Jailor,P3/gus/Coven Leader,P4/hal/Poisoner,P5/ivy/Witch"},
		},
		{account: "zed", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/players/"+tt.account, "")
			require.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			if tt.code != http.StatusOK {
				assert.Equal(t, "player not found", body["error"])
				return
			}
			assert.EqualValues(t, tt.id, body["id"])
			var gists []string
			for _, g := range body["games"].([]any) {
				gists = append(gists, g.(string))
			}
			assert.ElementsMatch(t, tt.games, gists)
		})
	}
}

func TestParse(t *testing.T) {
	h := New(nil)

	rec := do(t, h, http.MethodPost, "/parse", sampleLog("ann", "ben", "cat", "dan", "eli"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "P1/ann/Sheriff,P2/ben/Jailor,P3/cat/Coven Leader,P4/dan/Poisoner,P5/eli/Witch", body["gist"])
	assert.EqualValues(t, 11, body["message_count"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "coven", result["victor"])

	rec = do(t, h, http.MethodPost, "/parse", "<html><body><p>nope</p></body></html>")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Does not appear to be a gamelog", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/parse", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "File is not valid HTML", decode(t, rec)["error"])

	rec = do(t, h, http.MethodGet, "/games", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParse_TooLarge(t *testing.T) {
	rec := do(t, New(nil), http.MethodPost, "/parse", strings.Repeat("a", MaxUploadBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestFindGames(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 2},
		{"?account=ANN", http.StatusOK, 2},
		{"?account=fay", http.StatusOK, 1},
		{"?victor=coven", http.StatusOK, 2},
		{"?victor=town", http.StatusOK, 0},
		{"?role=Witch&limit=1", http.StatusOK, 1},
		{"?limit=x", http.StatusBadRequest, 0},
		{"?limit=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/games"+tt.query, "")
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			games := decode(t, rec)["games"].([]any)
			assert.Len(t, games, tt.count)
		})
	}
}

func TestGetGame(t *testing.T) {
	h, _ := newTestServer(t)
	gist := "P1/ann/Sheriff,P2/fay/Jailor,P3/gus/Coven Leader,P4/hal/Poisoner,P5/ivy/Witch"

	rec := do(t, h, http.MethodGet, "/games/"+strings.ReplaceAll(gist, " ", "%20"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, gist, body["gist"])
	assert.Equal(t, "log1", body["from_log"])
	assert.EqualValues(t, gamelog.Version, body["analysis_version"])

	rec = do(t, h, http.MethodGet, "/games/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestLogger_KeepsStatus(t *testing.T) {
	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
