package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"orbit/canvas"
	"orbit/core"
	"orbit/handlers/auth"
	"orbit/stores/memory"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func listJSON(t *testing.T) []core.Item {
	t.Helper()
	out, err := execute(t, "ls", "--json")
	if err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	var items []core.Item
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("Failed to decode ls output %q: %v", out, err)
	}
	return items
}

func TestRenderMinimap(t *testing.T) {
	frame := canvas.MinimapFrame{
		Width:  200,
		Height: 100,
		Markers: []canvas.MinimapMarker{
			{ID: "a", Kind: core.KindTask, X: 15, Y: 25, Visible: true},
			{ID: "b", Kind: core.KindNote, X: 500, Y: 25, Visible: false},
		},
		Viewport: canvas.Rect{X: 0, Y: 0, W: 50, H: 30},
	}

	var buf bytes.Buffer
	renderMinimap(&buf, frame, 20, 10)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if len(lines) != 12 {
		t.Fatalf("Expected 12 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "+"+strings.Repeat("-", 20)+"+" {
		t.Errorf("Top border = %q", lines[0])
	}
	if lines[3][2] != 't' {
		t.Errorf("Task marker missing, row = %q", lines[3])
	}
	if lines[1][1] != '.' || lines[1][5] != '.' || lines[1][6] != ' ' {
		t.Errorf("Viewport row = %q", lines[1])
	}
	if lines[4][1] != ' ' {
		t.Errorf("Row below viewport = %q", lines[4])
	}
	if strings.ContainsRune(buf.String(), 'n') {
		t.Error("Hidden marker was drawn")
	}
}

func TestPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	printTasks(&buf, nil)
	if buf.String() != "Nothing due.\n" {
		t.Errorf("Empty output = %q", buf.String())
	}

	buf.Reset()
	printTasks(&buf, []core.Item{
		{Kind: core.KindTask, Fields: core.Fields{"title": "Call", "due_date": "2024-03-05", "due_time": "09:00"}},
		{Kind: core.KindTask, Fields: core.Fields{"title": ""}},
	})
	want := "Up next:\n  - Call (due 2024-03-05 09:00)\n  - (untitled task)\n"
	if buf.String() != want {
		t.Errorf("printTasks() = %q, want %q", buf.String(), want)
	}
}

func TestRouter_HealthAndCORS(t *testing.T) {
	auth.Init("")
	r := newRouter(memory.NewStore())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("healthz: got %d %q", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodOptions, "/elements/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	if err := runServer(ctx, srv); err != nil {
		t.Errorf("runServer() = %v, want nil", err)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := execute(t, "token", "u1"); err == nil {
		t.Error("token without a secret succeeded")
	}

	t.Setenv("JWT_SECRET", "test-secret")
	out, err := execute(t, "token", "u1", "--name", "Ada")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	claims, err := auth.ParseJWT(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ParseJWT() failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Name != "Ada" {
		t.Errorf("Claims = %+v", claims)
	}
	auth.Init("")
}

func TestCanvasCommands(t *testing.T) {
	auth.Init("")
	srv := httptest.NewServer(newRouter(memory.NewStore()))
	defer srv.Close()

	t.Setenv("JWT_SECRET", "")
	t.Setenv("ORBIT_TOKEN", "")
	t.Setenv("ORBIT_API_URL", srv.URL)
	t.Setenv("ORBIT_USER_ID", "u1")
	t.Setenv("ORBIT_PREFS_PATH", filepath.Join(t.TempDir(), "prefs.json"))

	out, err := execute(t, "add", "task", "300", "200", "--title", "Call dentist")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	fields := strings.Fields(out)
	if len(fields) < 3 || fields[0] != "Created" || fields[1] != "task" {
		t.Fatalf("Unexpected add output %q", out)
	}
	id := fields[2]

	items := listJSON(t)
	if len(items) != 1 || items[0].ID != id || items[0].X != 300 || items[0].Y != 200 {
		t.Fatalf("ls = %+v", items)
	}
	if items[0].Fields.String("title") != "Call dentist" || items[0].Fields.String("priority") != "low" {
		t.Errorf("Fields = %v", items[0].Fields)
	}

	if _, err := execute(t, "mv", id, "500", "250"); err != nil {
		t.Fatalf("mv failed: %v", err)
	}
	if items := listJSON(t); items[0].X != 500 || items[0].Y != 250 {
		t.Errorf("After mv: %+v", items[0])
	}

	out, err = execute(t, "map")
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if !strings.Contains(out, "1 items") || !strings.Contains(out, "Call dentist") {
		t.Errorf("map output:\n%s", out)
	}

	out, err = execute(t, "search", "DENTIST")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(out, id) {
		t.Errorf("search output %q does not list %s", out, id)
	}

	if _, err := execute(t, "rm", id); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if items := listJSON(t); len(items) != 0 {
		t.Errorf("After rm: %+v", items)
	}
	if _, err := execute(t, "rm", id); err == nil {
		t.Error("Removing a missing card succeeded")
	}
}
