package attach

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/debug"
)

// DefaultFetchTimeout bounds an image download when no fetch timeout is
// configured.
const DefaultFetchTimeout = 15 * time.Second

// Image is a loaded image ready for upload.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Cache keeps fetched images for a bounded time, keyed by source URL. It is
// safe for concurrent use.
type Cache struct {
	lru          *expirable.LRU[string, *Image]
	group        singleflight.Group
	httpClient   *http.Client
	fetchTimeout time.Duration
	maxBytes     int64
}

// NewCache creates a cache from the attachment settings.
func NewCache(cfg config.AttachmentsConfig, httpClient *http.Client) *Cache {
	size := cfg.CacheSize
	if size <= 0 {
		size = 32
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		lru:          expirable.NewLRU[string, *Image](size, nil, cfg.CacheTTL),
		httpClient:   httpClient,
		fetchTimeout: fetchTimeout,
		maxBytes:     cfg.MaxBytes,
	}
}

// Len returns the number of cached images.
func (c *Cache) Len() int { return c.lru.Len() }

// Load resolves an image reference. Inline data is used as is; data: and
// http(s) URLs are decoded or fetched and cached.
func (c *Cache) Load(ctx context.Context, ref *api.ImageRef) (*Image, error) {
	if ref == nil {
		return nil, fmt.Errorf("no image")
	}
	if len(ref.Data) > 0 {
		return c.finish(&Image{Data: ref.Data}, ref), nil
	}
	if ref.URL == "" {
		return nil, fmt.Errorf("image has neither data nor url")
	}

	key := ref.CacheKey()
	if img, ok := c.lru.Get(key); ok {
		debug.Log(debug.Attach, "image cache hit", "source", debug.Truncate(key, 80))
		return c.finish(img, ref), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		img, err := c.fetch(ctx, ref.URL)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return c.finish(v.(*Image), ref), nil
}

// finish fills in filename and content type without mutating cached values.
func (c *Cache) finish(img *Image, ref *api.ImageRef) *Image {
	out := *img
	if ref.ContentType != "" {
		out.ContentType = ref.ContentType
	}
	if out.ContentType == "" {
		out.ContentType = http.DetectContentType(out.Data)
	}
	if ref.Filename != "" {
		out.Filename = ref.Filename
	}
	if out.Filename == "" {
		out.Filename = "image" + extensionFor(out.ContentType)
	}
	return &out
}

func (c *Cache) fetch(ctx context.Context, raw string) (*Image, error) {
	if strings.HasPrefix(raw, "data:") {
		return decodeDataURL(raw, c.maxBytes)
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image url %q", debug.Truncate(raw, 80))
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: HTTP %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, c.maxBytes)
	if err != nil {
		return nil, err
	}
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = ""
	}
	return &Image{Data: data, ContentType: ct, Filename: name}, nil
}

func decodeDataURL(raw string, maxBytes int64) (*Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	isBase64 := strings.HasSuffix(meta, ";base64")
	ct := strings.TrimSuffix(meta, ";base64")

	var data []byte
	if isBase64 {
		d, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data url: %w", err)
		}
		data = d
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data url: %w", err)
		}
		data = []byte(s)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return &Image{Data: data, ContentType: ct}, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
