package mirror

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"reflect"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestNewValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}, wantNil: true},
		{name: "unknown", cfg: Config{Backend: "ftp"}, wantErr: true},
		{name: "s3 missing bucket", cfg: Config{Backend: "s3", S3Region: "us-east-1"}, wantErr: true},
		{name: "s3 ok", cfg: Config{Backend: "S3", S3Bucket: "b", S3Region: "us-east-1"}},
		{name: "gcs missing bucket", cfg: Config{Backend: "gcs"}, wantErr: true},
		{name: "gcs ok", cfg: Config{Backend: "gcs", GCSBucket: "b"}},
		{name: "sftp missing auth", cfg: Config{Backend: "sftp", SFTPHost: "h", SFTPUser: "u"}, wantErr: true},
		{name: "sftp ok", cfg: Config{Backend: "sftp", SFTPHost: "h", SFTPUser: "u", SFTPPassword: "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(logger, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil != (m == nil) {
				t.Fatalf("mirror nil = %v, want %v", m == nil, tt.wantNil)
			}
		})
	}
}

func TestNameIsLowercased(t *testing.T) {
	m, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Backend: " GCS ", GCSBucket: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "gcs" {
		t.Errorf("Name = %q", m.Name())
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct{ prefix, name, want string }{
		{"", "a.mp4", "a.mp4"},
		{"media/", "a.mp4", "media/a.mp4"},
		{"/srv/uploads/", "a.mp4", "srv/uploads/a.mp4"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("objectKey(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestRemoteDirs(t *testing.T) {
	if got := remoteDirs("/srv/media/out"); !reflect.DeepEqual(got, []string{"/srv", "/srv/media", "/srv/media/out"}) {
		t.Errorf("absolute = %v", got)
	}
	if got := remoteDirs("media/out"); !reflect.DeepEqual(got, []string{"media", "media/out"}) {
		t.Errorf("relative = %v", got)
	}
	if got := remoteDirs("."); got != nil {
		t.Errorf("dot = %v", got)
	}
}

func TestGCSCredentials(t *testing.T) {
	raw := `{"type":"service_account"}`
	if got := string(gcsCredentials(raw)); got != raw {
		t.Errorf("raw json = %q", got)
	}
	enc := base64.StdEncoding.EncodeToString([]byte(raw))
	if got := string(gcsCredentials(enc)); got != raw {
		t.Errorf("base64 json = %q", got)
	}
	if gcsCredentials("  ") != nil {
		t.Error("blank credentials should be nil")
	}
}

func TestSFTPAuth(t *testing.T) {
	if _, err := sftpAuth(Config{}); err == nil {
		t.Error("expected error without credentials")
	}
	auths, err := sftpAuth(Config{SFTPPassword: "secret"})
	if err != nil || len(auths) != 1 {
		t.Errorf("password auth = %v, %v", auths, err)
	}
	if _, err := sftpAuth(Config{SFTPPrivateKey: "not a key"}); err == nil {
		t.Error("expected parse error for bad key")
	}
}

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestSFTPHostKey(t *testing.T) {
	pinned := newHostKey(t)
	other := newHostKey(t)
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}
	line := string(ssh.MarshalAuthorizedKey(pinned))

	for name, value := range map[string]string{
		"authorized_keys line": line,
		"base64 line":          base64.StdEncoding.EncodeToString([]byte(line)),
	} {
		t.Run(name, func(t *testing.T) {
			cb, err := sftpHostKey(Config{SFTPHostKey: value})
			if err != nil {
				t.Fatalf("sftpHostKey: %v", err)
			}
			if err := cb("h:22", addr, pinned); err != nil {
				t.Errorf("pinned key rejected: %v", err)
			}
			if err := cb("h:22", addr, other); err == nil {
				t.Error("unexpected key accepted")
			}
		})
	}

	if _, err := sftpHostKey(Config{SFTPHostKey: "ssh-ed25519 garbage"}); err == nil {
		t.Error("expected parse error for bad host key")
	}
	if _, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Backend: "sftp", SFTPHost: "h", SFTPUser: "u", SFTPPassword: "p", SFTPHostKey: "nope",
	}); err == nil {
		t.Error("New accepted an unparsable host key")
	}
}
