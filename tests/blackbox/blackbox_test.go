package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	bin := filepath.Join(t.TempDir(), "vlmd")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/vlmd")
	cmd.Dir = projectRootFromThisFile(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, out)
	}
	return bin
}

func writeMJPEG(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := 0; i < n; i++ {
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "clip.mjpeg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "an empty room"}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type serverProc struct {
	cmd  *exec.Cmd
	base string
}

func startServer(t *testing.T, bin string, env []string, args ...string) *serverProc {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, append(args, "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--log-format", "json")...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{cmd: cmd, base: base}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	model := fakeModel(t)
	sp := startServer(t, bin,
		[]string{"VLMD_MODEL_URL=" + model.URL, "VLMD_API_KEY=secret"},
		"--video_file", writeMJPEG(t, 600), "--fps", "30", "--overlay",
	)

	resp, body := get(t, sp.base+"/query?query=what+is+there")
	if resp.StatusCode != http.StatusOK || string(body) != "an empty room" {
		t.Fatalf("/query %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/status content-type=%s", ct)
	}
	var status struct {
		Running   bool   `json:"running"`
		LastReply string `json:"last_reply"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("/status json: %v body=%s", err, body)
	}
	if !status.Running || status.LastReply != "an empty room" {
		t.Fatalf("status=%+v", status)
	}

	resp, _ = get(t, sp.base+"/overlay.jpg")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/overlay.jpg %d", resp.StatusCode)
	}
}

func TestBlackbox_MissingVideoExits(t *testing.T) {
	bin := buildBinary(t)
	cmd := exec.Command(bin, "--model_url", "http://127.0.0.1:1", "--video_file", filepath.Join(t.TempDir(), "missing.mp4"))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exit *exec.ExitError
	if !errors.As(err, &exit) || exit.ExitCode() != 1 {
		t.Fatalf("err=%v want exit status 1", err)
	}
	if !strings.Contains(stderr.String(), "could not open video") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}

func TestBlackbox_MissingModelURLExits(t *testing.T) {
	bin := buildBinary(t)
	cmd := exec.Command(bin, "--video_file", "x.mp4")
	cmd.Env = append(os.Environ(), "VLMD_MODEL_URL=")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err == nil {
		t.Fatalf("expected failure without model_url")
	}
	if !strings.Contains(stderr.String(), "model_url") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
