package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher. Agency mirrors reject or drop
// control connections under load, so dials are bounded and retried.
type FTPOptions struct {
	Timeout    time.Duration
	MaxRetries int
	User       string // empty means anonymous login
	Password   string
}

// FTPFetcher downloads dataset files from FTP mirrors.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL splits an FTP URL into a dialable host:port and a remote path.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("ftp: empty path in url")
	}

	return host, path, nil
}

// connect dials and logs in, retrying transient failures with backoff.
// Login failures are retried too: anonymous mirrors answer "too many
// users" when busy, and a later attempt usually gets through.
func (f *FTPFetcher) connect(ctx context.Context, host string) (*ftp.ServerConn, error) {
	var lastErr error
	for attempt := range f.opts.MaxRetries {
		conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
		if err == nil {
			if err = conn.Login(f.opts.User, f.opts.Password); err == nil {
				return conn, nil
			}
			_ = conn.Quit()
		}

		lastErr = err
		zap.L().Warn("ftp connect failed, retrying",
			zap.String("host", host),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		backoffWait(ctx, attempt)
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ftp: connect")
		}
	}
	return nil, eris.Wrapf(lastErr, "ftp: %d connect attempts to %s exhausted", f.opts.MaxRetries, host)
}

// ftpTransfer keeps the control connection open for the life of the data
// transfer. Close releases both.
type ftpTransfer struct {
	data *ftp.Response
	ctrl *ftp.ServerConn
}

func (t *ftpTransfer) Read(p []byte) (int, error) {
	return t.data.Read(p)
}

func (t *ftpTransfer) Close() error {
	dataErr := t.data.Close()
	quitErr := t.ctrl.Quit()
	if dataErr != nil {
		return eris.Wrap(dataErr, "ftp: close transfer")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "ftp: quit")
	}
	return nil
}

// Download retrieves the file behind an ftp:// URL. The caller must close
// the returned reader to release the control connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, remotePath, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	conn, err := f.connect(ctx, host)
	if err != nil {
		return nil, err
	}

	if size, err := conn.FileSize(remotePath); err == nil {
		zap.L().Debug("ftp transfer starting",
			zap.String("host", host),
			zap.String("path", remotePath),
			zap.Int64("bytes", size),
		)
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: retrieve %s", remotePath)
	}

	return &ftpTransfer{data: resp, ctrl: conn}, nil
}

// DownloadToFile downloads the FTP URL to a local file. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "ftp: create file %s", path)
	}
	defer func() { _ = file.Close() }()

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrapf(err, "ftp: write file %s", path)
	}
	return n, nil
}
