package remote

import (
	"errors"
	"io"
	"os"
	"path"

	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
)

type SSHConfig struct {
	Host string
	User string
	// path to the private key, e.g. ~/.ssh/id_ed25519
	KeyPath string
	// optional passphrase for the key
	KeyPass string
}

// SSHClient copies log files to a remote host over sftp.
type SSHClient struct {
	client *goph.Client
	sftp   *sftp.Client
}

func NewSSH(c *SSHConfig) (*SSHClient, error) {
	if c == nil || c.Host == "" || c.User == "" || c.KeyPath == "" {
		return nil, errors.New("must provide host, user and key path")
	}
	auth, err := goph.Key(c.KeyPath, c.KeyPass)
	if err != nil {
		return nil, err
	}
	client, err := goph.New(c.User, c.Host, auth)
	if err != nil {
		return nil, err
	}
	sftpc, err := client.NewSftp()
	if err != nil {
		client.Close()
		return nil, err
	}
	return &SSHClient{
		client: client,
		sftp:   sftpc,
	}, nil
}

func (c *SSHClient) Close() error {
	err := c.sftp.Close()
	err2 := c.client.Close()
	if err != nil {
		return err
	}
	return err2
}

func (c *SSHClient) Exists(remotePath string) bool {
	_, err := c.sftp.Stat(remotePath)
	return err == nil
}

// UploadLog copies localPath to remotePath, creating remote
// directories as needed. Refuses to overwrite an existing remote file
// unless overwrite is set.
func (c *SSHClient) UploadLog(remotePath string, localPath string, overwrite bool) error {
	if !overwrite && c.Exists(remotePath) {
		return os.ErrExist
	}
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := c.sftp.MkdirAll(dir); err != nil {
			return err
		}
	}
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := c.sftp.Create(remotePath)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	err2 := dst.Close()
	if err != nil {
		return err
	}
	return err2
}

// DownloadLog fetches remotePath into localPath via a temp file so a
// broken connection doesn't leave a truncated log behind.
func (c *SSHClient) DownloadLog(localPath string, remotePath string) error {
	src, err := c.sftp.Open(remotePath)
	if err != nil {
		return err
	}
	defer src.Close()
	tmpPath := localPath + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	err2 := dst.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, localPath)
}
