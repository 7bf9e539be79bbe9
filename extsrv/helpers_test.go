package extsrv_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/programme-lv/extserver/demosrv"
	"github.com/programme-lv/extserver/extsrv"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "s3cret"

func setupDemoServer(t *testing.T, cfg demosrv.Config) (*demosrv.Server, *httptest.Server) {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	server := demosrv.NewServer(cfg, demosrv.NewDirStore(t.TempDir()))
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts
}

func demoClientConfig(ts *httptest.Server) extsrv.ServerConfig {
	return extsrv.ServerConfig{
		ID:        "demo",
		Name:      "Demo server",
		BaseURL:   ts.URL,
		UploadURL: ts.URL + "/upload",
		AuthType:  extsrv.AuthAPIKey,
		Secret:    testSecret,
	}
}

func testContext() extsrv.RequestContext {
	return extsrv.RequestContext{
		CourseID:       7,
		AssignmentID:   13,
		AssignmentName: "Essay 1",
		User: extsrv.UserIdentity{
			Username:  "alice",
			IDNumber:  "42",
			SessKey:   "sesskey123",
			Firstname: "Alice",
			Lastname:  "Smith",
		},
	}
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func bcryptHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash secret: %v", err)
	}
	return string(hash)
}
