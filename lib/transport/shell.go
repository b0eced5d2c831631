package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
	"time"

	"github.com/accessdeploy/models"
	"golang.org/x/crypto/ssh"
)

// ShellSessionAdapter mutates assets by running commands in remote SSH
// sessions, for hosts that expose neither a CMS API nor SFTP. Each operation
// dials its own connection; nothing is cached between calls.
type ShellSessionAdapter struct {
	retryAttempts int
	dialTimeout   time.Duration
}

// NewShellSessionAdapter creates a shell session adapter
func NewShellSessionAdapter(retryAttempts int) *ShellSessionAdapter {
	return &ShellSessionAdapter{
		retryAttempts: retryAttempts,
		dialTimeout:   15 * time.Second,
	}
}

// shellRetryable retries dial-level failures only. A command that ran and
// exited non-zero is never retried blindly: the session may have partially
// executed, and only whole-file writes below are safe to resend.
func shellRetryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ee *ssh.ExitError
	return !errors.As(err, &ee) && strings.Contains(err.Error(), "connection")
}

// Apply executes one file change through a remote shell. Writes stream the
// complete new content, so resending after a dial failure converges.
func (a *ShellSessionAdapter) Apply(ctx context.Context, conn models.Connection, creds models.CredentialData, change models.FileChange) (models.AssetResult, error) {
	var err error
	if change.Kind == models.ChangeKindDelete {
		err = a.remove(ctx, conn, creds, change.Path)
	} else {
		err = a.write(ctx, conn, creds, change.Path, change.After)
	}
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("shell apply %s: %w", change.Path, err)
	}
	return models.AssetResult{AssetKey: change.Path, AppliedAt: time.Now().UTC()}, nil
}

// Restore replays one backup through a remote shell
func (a *ShellSessionAdapter) Restore(ctx context.Context, conn models.Connection, creds models.CredentialData, backup models.Backup) (models.AssetResult, error) {
	var err error
	if backup.Absent() {
		err = a.remove(ctx, conn, creds, backup.AssetKey)
	} else {
		err = a.write(ctx, conn, creds, backup.AssetKey, *backup.OriginalContent)
	}
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("shell restore %s: %w", backup.AssetKey, err)
	}
	return models.AssetResult{AssetKey: backup.AssetKey, AppliedAt: time.Now().UTC()}, nil
}

// Read fetches current file content, nil if the file does not exist
func (a *ShellSessionAdapter) Read(ctx context.Context, conn models.Connection, creds models.CredentialData, filePath string) (*string, error) {
	var content *string
	err := withRetry(ctx, a.retryAttempts, shellRetryable, func() error {
		exists, out, err := a.run(conn, creds, fmt.Sprintf("test -f %s && cat -- %s", shellQuote(filePath), shellQuote(filePath)), nil)
		if err != nil {
			return err
		}
		if !exists {
			content = nil
			return nil
		}
		text := out
		content = &text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("shell read %s: %w", filePath, err)
	}
	return content, nil
}

func (a *ShellSessionAdapter) write(ctx context.Context, conn models.Connection, creds models.CredentialData, filePath, content string) error {
	dir := path.Dir(filePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(dir), shellQuote(filePath))
	return withRetry(ctx, a.retryAttempts, shellRetryable, func() error {
		ok, _, err := a.run(conn, creds, cmd, strings.NewReader(content))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("write command failed on remote host")
		}
		return nil
	})
}

func (a *ShellSessionAdapter) remove(ctx context.Context, conn models.Connection, creds models.CredentialData, filePath string) error {
	return withRetry(ctx, a.retryAttempts, shellRetryable, func() error {
		ok, _, err := a.run(conn, creds, fmt.Sprintf("rm -f -- %s", shellQuote(filePath)), nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("remove command failed on remote host")
		}
		return nil
	})
}

// run executes one command in a fresh session. The boolean result is the
// command's success; exit code 1 is reported as ok=false with no error so
// callers can distinguish "file absent" from transport failure.
func (a *ShellSessionAdapter) run(conn models.Connection, creds models.CredentialData, cmd string, stdin *strings.Reader) (bool, string, error) {
	sshConn, err := dialSSH(conn.Endpoint, creds, a.dialTimeout)
	if err != nil {
		return false, "", err
	}
	defer sshConn.Close()

	session, err := sshConn.NewSession()
	if err != nil {
		return false, "", fmt.Errorf("opening session: %v", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	if err := session.Run(cmd); err != nil {
		var ee *ssh.ExitError
		if errors.As(err, &ee) && ee.ExitStatus() == 1 {
			return false, "", nil
		}
		return false, "", fmt.Errorf("remote command failed: %v (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return true, stdout.String(), nil
}

// shellQuote wraps s in single quotes, escaping embedded quotes
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
