package backup

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultS3Region = "us-east-1"

// S3Config holds the off-site target for lead log snapshots.
type S3Config struct {
	BucketURL    string // s3://bucket/prefix, prefix optional
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
}

// runFunc executes the aws CLI with args and extra environment.
type runFunc func(ctx context.Context, args, env []string) ([]byte, error)

// S3Uploader copies snapshots to S3 through the aws CLI. Objects are keyed
// by the snapshot's UTC date, leads-20261019-093000.csv becoming
// <prefix>/2026/10/19/leads-20261019-093000.csv, and carry the lead count and
// a sha256 of the file as object metadata.
type S3Uploader struct {
	bucket string
	prefix string
	cfg    S3Config
	run    runFunc
}

// NewS3Uploader validates cfg and requires the aws CLI on PATH.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if _, err := exec.LookPath("aws"); err != nil {
		return nil, errors.New("s3: aws cli not found in PATH")
	}
	return newS3Uploader(cfg, runAWS)
}

func newS3Uploader(cfg S3Config, run runFunc) (*S3Uploader, error) {
	bucket, prefix, err := parseS3BucketURL(cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("s3: access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = defaultS3Region
	}
	return &S3Uploader{bucket: bucket, prefix: prefix, cfg: cfg, run: run}, nil
}

// UploadFile uploads one snapshot.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath string) error {
	sum, leads, err := summarizeSnapshot(localPath)
	if err != nil {
		return err
	}

	dest := "s3://" + u.bucket + "/" + objectKey(u.prefix, filepath.Base(localPath))
	args := []string{
		"s3", "cp", localPath, dest,
		"--region", u.cfg.Region,
		"--content-type", "text/csv; charset=utf-8",
		"--metadata", "sha256=" + sum + ",leads=" + strconv.Itoa(leads),
		"--only-show-errors",
	}
	if endpoint := normalizeEndpoint(u.cfg.Endpoint, u.cfg.UseSSL); endpoint != "" {
		args = append(args, "--endpoint-url", endpoint)
	}

	env := []string{
		"AWS_ACCESS_KEY_ID=" + u.cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY=" + u.cfg.SecretKey,
		"AWS_DEFAULT_REGION=" + u.cfg.Region,
	}
	if token := strings.TrimSpace(u.cfg.SessionToken); token != "" {
		env = append(env, "AWS_SESSION_TOKEN="+token)
	}

	if out, err := u.run(ctx, args, env); err != nil {
		return fmt.Errorf("s3: upload %s: %w: %s", dest, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runAWS(ctx context.Context, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "aws", args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// objectKey places a snapshot under its UTC date. Names that do not carry a
// snapshot timestamp go directly under prefix.
func objectKey(prefix, fileName string) string {
	key := fileName
	if strings.HasPrefix(fileName, snapshotPrefix) && strings.HasSuffix(fileName, snapshotExt) {
		stamp := strings.TrimSuffix(strings.TrimPrefix(fileName, snapshotPrefix), snapshotExt)
		if ts, err := time.Parse(snapshotLayout, stamp); err == nil {
			key = path.Join(ts.Format("2006/01/02"), fileName)
		}
	}
	if prefix != "" {
		key = path.Join(prefix, key)
	}
	return key
}

// summarizeSnapshot returns the hex sha256 of the file and the number of
// lead rows after the header.
func summarizeSnapshot(localPath string) (string, int, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("s3: open snapshot: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	r := csv.NewReader(io.TeeReader(f, h))
	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("s3: read snapshot: %w", err)
		}
		rows++
	}
	leads := rows - 1
	if leads < 0 {
		leads = 0
	}
	return hex.EncodeToString(h.Sum(nil)), leads, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func parseS3BucketURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("s3: parse bucket-url: %w", err)
	}
	switch {
	case u.Scheme != "s3":
		return "", "", errors.New("s3: bucket-url must use s3:// scheme")
	case u.Host == "":
		return "", "", errors.New("s3: bucket-url missing bucket name")
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
