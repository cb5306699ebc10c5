package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hygrolog/hygrolog/pkg/logging"
)

// DiskObjectStore writes uploaded photos to a local media directory and
// returns URLs under a base the HTTP server exposes as static files.
// Uploads are keyed by UUID so repeated uploads of the same photo never
// collide.
type DiskObjectStore struct {
	root    string
	baseURL string
	creds   CredentialProvider
}

// NewDiskObjectStore creates the media directory when missing.
func NewDiskObjectStore(root, baseURL string, creds CredentialProvider) (*DiskObjectStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskObjectStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
	}, nil
}

// Put stores the original photo bytes and returns a retrievable URL. The
// credential token authorizes the write; it is requested per upload and
// passed along opaquely (the disk backend only checks it is present, the
// way a remote drive would reject a missing bearer).
func (d *DiskObjectStore) Put(ctx context.Context, data []byte, mimeType, nameHint string) (string, error) {
	if d.creds != nil {
		token, err := d.creds.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("acquire upload credential: %w", err)
		}
		if token == "" {
			return "", fmt.Errorf("empty upload credential")
		}
	}

	name := fmt.Sprintf("%s_%s%s", sanitizeHint(nameHint), uuid.New().String(), extensionFor(mimeType))
	path := filepath.Join(d.root, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}

	url := d.baseURL + "/" + name
	lg := logging.GetStorageLogger("put", "disk")
	lg.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Msg("photo stored")
	return url, nil
}

func sanitizeHint(hint string) string {
	if hint == "" {
		return "photo"
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, hint)
	if len(clean) > 40 {
		clean = clean[:40]
	}
	return clean
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/heic", "image/heif":
		return ".heic"
	default:
		return ".jpg"
	}
}

// StaticCredentialProvider hands out a fixed bearer token, typically read
// from configuration or the environment.
type StaticCredentialProvider struct {
	token string
}

// NewStaticCredentialProvider wraps a fixed token.
func NewStaticCredentialProvider(token string) *StaticCredentialProvider {
	return &StaticCredentialProvider{token: token}
}

// Token implements CredentialProvider.
func (s *StaticCredentialProvider) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("no upload credential configured")
	}
	return s.token, nil
}
