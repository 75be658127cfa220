//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"

	rubika "github.com/rubikalib/client-go"
)

var (
	phone      string
	sessionDir string
)

// These tests need an account that is already logged in; run
// examples/login with the same RUBIKA_SESSION_DIR first.
func TestMain(m *testing.M) {
	// Load .env file if it exists (won't error if missing)
	if err := godotenv.Load("../.env"); err != nil {
		os.Stderr.WriteString("Note: .env file not found at project root\n")
	}

	phone = os.Getenv("RUBIKA_PHONE")
	sessionDir = os.Getenv("RUBIKA_SESSION_DIR")

	if phone == "" {
		os.Stderr.WriteString("Skipping integration tests: RUBIKA_PHONE not set\n")
		os.Exit(0)
	}
	if sessionDir == "" {
		os.Stderr.WriteString("Skipping integration tests: RUBIKA_SESSION_DIR not set\n")
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func newClient(t *testing.T) *rubika.Client {
	t.Helper()

	client, err := rubika.New(phone,
		rubika.WithSessionDir(sessionDir),
		rubika.WithTimeout(30*time.Second),
		rubika.WithRetries(2),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	if client.State() != rubika.StateAuthenticated {
		t.Skip("session is not logged in")
	}
	return client
}

func TestIntegration_GetUserInfo(t *testing.T) {
	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	resp, err := client.Call(ctx, "getUserInfo", map[string]any{})
	if err != nil {
		t.Fatalf("Call(getUserInfo) error = %v", err)
	}
	if resp.Data.Field("user").IsNull() {
		t.Errorf("getUserInfo returned no user: %s", resp.Data.Raw())
	}
}

func TestIntegration_UploadDownloadRoundtrip(t *testing.T) {
	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	content := make([]byte, 300*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	src := filepath.Join(t.TempDir(), "roundtrip.bin")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := client.Upload(ctx, src)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	t.Logf("Uploaded file %s on dc %s", res.FileID, res.DC)

	dst := filepath.Join(t.TempDir(), "copy.bin")
	if err := client.Download(ctx, res.AccessHash, res.FileID, res.DC, dst); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(content) {
		t.Fatalf("downloaded %d bytes, want %d", len(got), len(content))
	}
	if _, err := os.Stat(dst + ".lock"); !os.IsNotExist(err) {
		t.Errorf("journal left behind after successful download")
	}
}

func TestIntegration_ListenHandshake(t *testing.T) {
	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := client.Listen(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Listen() error = %v, want deadline exceeded", err)
	}
}
