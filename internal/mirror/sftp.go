package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

func sftpAuth(cfg Config) ([]ssh.AuthMethod, error) {
	if cfg.SFTPPrivateKey != "" {
		keyBytes, err := base64.StdEncoding.DecodeString(cfg.SFTPPrivateKey)
		if err != nil {
			keyBytes = []byte(cfg.SFTPPrivateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if cfg.SFTPPassword != "" {
		return []ssh.AuthMethod{ssh.Password(cfg.SFTPPassword)}, nil
	}
	return nil, fmt.Errorf("no auth method provided; set a password or private key")
}

// sftpHostKey pins the server key when one is configured. The key uses the
// authorized_keys format, for example the output of ssh-keyscan.
func sftpHostKey(cfg Config) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(cfg.SFTPHostKey) == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	line := []byte(cfg.SFTPHostKey)
	if decoded, err := base64.StdEncoding.DecodeString(cfg.SFTPHostKey); err == nil {
		line = decoded
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return nil, fmt.Errorf("parse host key: %w", err)
	}
	return ssh.FixedHostKey(key), nil
}

func uploadSFTP(ctx context.Context, cfg Config, remotePath string, reader io.Reader) error {
	auths, err := sftpAuth(cfg)
	if err != nil {
		return err
	}
	hostKey, err := sftpHostKey(cfg)
	if err != nil {
		return err
	}

	port := cfg.SFTPPort
	if port == "" {
		port = "22"
	}
	addr := net.JoinHostPort(cfg.SFTPHost, port)

	clientCfg := &ssh.ClientConfig{
		User:            cfg.SFTPUser,
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer client.Close()

	if err := mkdirAll(client, path.Dir(remotePath)); err != nil {
		return fmt.Errorf("ensure remote dir: %w", err)
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	// Write errors can surface only on close.
	if err := f.Close(); err != nil {
		return fmt.Errorf("close remote file %s: %w", remotePath, err)
	}
	return nil
}

func mkdirAll(client *sftp.Client, dir string) error {
	for _, p := range remoteDirs(dir) {
		if _, err := client.Stat(p); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			if err := client.Mkdir(p); err != nil {
				return fmt.Errorf("mkdir %s: %w", p, err)
			}
		}
	}
	return nil
}

// remoteDirs lists every ancestor of dir from the top down.
func remoteDirs(dir string) []string {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	var out []string
	for _, p := range strings.Split(dir, "/") {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		out = append(out, cur)
	}
	return out
}
