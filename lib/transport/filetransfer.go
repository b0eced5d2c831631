package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/accessdeploy/models"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// FileTransferAdapter mutates static site assets over SFTP. A fresh SSH
// connection is dialed per call and torn down with it, so credentials never
// outlive a single operation.
type FileTransferAdapter struct {
	retryAttempts int
	dialTimeout   time.Duration
}

// NewFileTransferAdapter creates an SFTP adapter
func NewFileTransferAdapter(retryAttempts int) *FileTransferAdapter {
	return &FileTransferAdapter{
		retryAttempts: retryAttempts,
		dialTimeout:   15 * time.Second,
	}
}

// sftpRetryable retries network-level failures only. Permission and path
// errors are permanent.
func sftpRetryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, sftp.ErrSSHFxConnectionLost)
}

// Apply executes one file change over SFTP. Writes are full-content
// overwrites, so a retried write converges to the same result.
func (a *FileTransferAdapter) Apply(ctx context.Context, conn models.Connection, creds models.CredentialData, change models.FileChange) (models.AssetResult, error) {
	err := withRetry(ctx, a.retryAttempts, sftpRetryable, func() error {
		return a.withClient(conn, creds, func(client *sftp.Client) error {
			if change.Kind == models.ChangeKindDelete {
				return removeIfExists(client, change.Path)
			}
			return writeFile(client, change.Path, change.After)
		})
	})
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("sftp apply %s: %w", change.Path, err)
	}
	return models.AssetResult{AssetKey: change.Path, AppliedAt: time.Now().UTC()}, nil
}

// Restore replays one backup over SFTP
func (a *FileTransferAdapter) Restore(ctx context.Context, conn models.Connection, creds models.CredentialData, backup models.Backup) (models.AssetResult, error) {
	err := withRetry(ctx, a.retryAttempts, sftpRetryable, func() error {
		return a.withClient(conn, creds, func(client *sftp.Client) error {
			if backup.Absent() {
				return removeIfExists(client, backup.AssetKey)
			}
			return writeFile(client, backup.AssetKey, *backup.OriginalContent)
		})
	})
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("sftp restore %s: %w", backup.AssetKey, err)
	}
	return models.AssetResult{AssetKey: backup.AssetKey, AppliedAt: time.Now().UTC()}, nil
}

// Read fetches current file content, nil if the file does not exist
func (a *FileTransferAdapter) Read(ctx context.Context, conn models.Connection, creds models.CredentialData, filePath string) (*string, error) {
	var content *string
	err := withRetry(ctx, a.retryAttempts, sftpRetryable, func() error {
		return a.withClient(conn, creds, func(client *sftp.Client) error {
			f, err := client.Open(filePath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					content = nil
					return nil
				}
				return err
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				return err
			}
			text := string(data)
			content = &text
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sftp read %s: %w", filePath, err)
	}
	return content, nil
}

// withClient dials, runs fn, and closes everything before returning
func (a *FileTransferAdapter) withClient(conn models.Connection, creds models.CredentialData, fn func(*sftp.Client) error) error {
	sshConn, err := dialSSH(conn.Endpoint, creds, a.dialTimeout)
	if err != nil {
		return err
	}
	defer sshConn.Close()

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		return fmt.Errorf("opening sftp session: %v", err)
	}
	defer client.Close()

	return fn(client)
}

func writeFile(client *sftp.Client, filePath, content string) error {
	if dir := path.Dir(filePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating parent directory: %v", err)
		}
	}
	f, err := client.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write([]byte(content))
	return err
}

func removeIfExists(client *sftp.Client, filePath string) error {
	err := client.Remove(filePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// dialSSH opens an SSH connection from the credential material. Host keys
// are pinned when the connection was onboarded with one.
func dialSSH(endpoint string, creds models.CredentialData, timeout time.Duration) (*ssh.Client, error) {
	user := creds["username"]
	if user == "" {
		return nil, errors.New("credential is missing username")
	}

	var auth []ssh.AuthMethod
	if key := creds["privateKey"]; key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %v", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if password := creds["password"]; password != "" {
		auth = append(auth, ssh.Password(password))
	}
	if len(auth) == 0 {
		return nil, errors.New("credential has no usable auth method")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if pinned := creds["hostKey"]; pinned != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pinned))
		if err != nil {
			return nil, fmt.Errorf("parsing pinned host key: %v", err)
		}
		hostKeyCallback = ssh.FixedHostKey(key)
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := endpoint
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	return ssh.Dial("tcp", addr, cfg)
}
