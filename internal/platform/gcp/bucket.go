package gcp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ovelight/storyreel-backend/internal/platform/logger"
)

// Category is a logical artifact namespace. Every category maps to a key
// prefix inside the single documents bucket, so paths stay deterministic
// per document name.
type Category string

const (
	CategoryUploads     Category = "uploaded-docs"
	CategoryManifests   Category = "video-manifests"
	CategoryQuizzes     Category = "quiz-data"
	CategorySceneImages Category = "scene-images"
	CategoryVideos      Category = "generated-videos"
)

type BucketService interface {
	UploadBytes(ctx context.Context, category Category, key string, data []byte, contentType string) error
	ReadText(ctx context.Context, category Category, key string) (string, error)
	Download(ctx context.Context, category Category, key string) ([]byte, error)
	Exists(ctx context.Context, category Category, key string) (bool, error)
	ListKeys(ctx context.Context, category Category, prefix string) ([]string, error)
	Delete(ctx context.Context, category Category, key string) error
	PublicURL(category Category, key string) string
}

type bucketService struct {
	log           *logger.Logger
	client        *storage.Client
	bucketName    string
	cdnDomain     string
	emulatorHost  string
	publicBaseURL string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	bucketName := strings.TrimSpace(os.Getenv("DOCS_GCS_BUCKET_NAME"))
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var DOCS_GCS_BUCKET_NAME")
	}

	emulatorHost := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	publicBaseURL, err := resolvePublicBaseURL(emulatorHost)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var client *storage.Client
	if emulatorHost != "" {
		client, err = storage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		opts := append(clientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
		client, err = storage.NewClient(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	serviceLog := log.With("service", "BucketService")
	serviceLog.Info("Object storage initialized",
		"bucket", bucketName,
		"emulator_host", emulatorHost,
		"public_base_url", publicBaseURL,
	)

	return &bucketService{
		log:           serviceLog,
		client:        client,
		bucketName:    bucketName,
		cdnDomain:     strings.TrimSpace(os.Getenv("DOCS_CDN_DOMAIN")),
		emulatorHost:  emulatorHost,
		publicBaseURL: publicBaseURL,
	}, nil
}

func resolvePublicBaseURL(emulatorHost string) (string, error) {
	raw := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL"))
	if raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return "", fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL", raw)
		}
		return strings.TrimRight(raw, "/"), nil
	}
	return emulatorHost, nil
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func objectKey(category Category, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	return string(category) + "/" + key
}

func (bs *bucketService) UploadBytes(ctx context.Context, category Category, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(bs.bucketName).Object(objectKey(category, key)).NewWriter(ctx)
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) Download(ctx context.Context, category Category, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := bs.client.Bucket(bs.bucketName).Object(objectKey(category, key)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open reader for %q: %w", key, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return b, nil
}

func (bs *bucketService) ReadText(ctx context.Context, category Category, key string) (string, error) {
	b, err := bs.Download(ctx, category, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (bs *bucketService) Exists(ctx context.Context, category Category, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := bs.client.Bucket(bs.bucketName).Object(objectKey(category, key)).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object %q: %w", key, err)
	}
	return true, nil
}

func (bs *bucketService) ListKeys(ctx context.Context, category Category, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	full := objectKey(category, prefix)
	it := bs.client.Bucket(bs.bucketName).Objects(ctx, &storage.Query{Prefix: full})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", full, err)
		}
		out = append(out, strings.TrimPrefix(attrs.Name, string(category)+"/"))
	}
	return out, nil
}

func (bs *bucketService) Delete(ctx context.Context, category Category, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := bs.client.Bucket(bs.bucketName).Object(objectKey(category, key)).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) PublicURL(category Category, key string) string {
	name := objectKey(category, key)
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, name)
	}
	if bs.emulatorHost != "" {
		base := bs.publicBaseURL
		if base == "" {
			base = bs.emulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			base, url.PathEscape(bs.bucketName), url.PathEscape(name))
	}
	if bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.bucketName, name)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, name)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".txt"), strings.HasSuffix(s, ".md"):
		return "text/plain; charset=utf-8"
	default:
		return ""
	}
}
