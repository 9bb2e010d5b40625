package batch

import (
	"FrameForge/internal/pipeline/storage"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MetadataName  = "metadata.json"
	timestampFmt  = "20060102_150405"
	uploadsPrefix = "uploads"
	imageNameFmt  = "frame_%06d.jpg"
	defaultPrefix = "extracted"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrAlreadySealed = errors.New("batch already sealed")
	ErrImageNotFound = errors.New("image not found")
)

var (
	batchIDPattern   = regexp.MustCompile(`^\d{8}_\d{6}(-[0-9a-f]{8})?$`)
	imageNamePattern = regexp.MustCompile(`^frame_(\d{6,})\.jpg$`)
)

// Metadata is the sealed summary of one batch, stored as metadata.json.
type Metadata struct {
	VideoPath           string    `json:"video_path"`
	Timestamp           string    `json:"timestamp"`
	FrameRate           int       `json:"frame_rate"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	TotalFrames         int       `json:"total_frames"`
	ProcessedFrames     int       `json:"processed_frames"`
	SampledFrames       int       `json:"sampled_frames"`
	ExtractedImages     int       `json:"extracted_images"`
	Methods             []string  `json:"methods"`
	CreatedAt           time.Time `json:"created_at"`
}

// MetadataCache caches sealed metadata. Metadata is immutable once written,
// so entries never need invalidation.
type MetadataCache interface {
	Get(ctx context.Context, batchID string) (*Metadata, bool)
	Set(ctx context.Context, batchID string, meta *Metadata)
}

// Store is the only component that names batches and lays out their keys.
type Store struct {
	storage storage.Storage
	bucket  string
	prefix  string
	logger  *zap.Logger
	cache   MetadataCache
	now     func() time.Time
}

func NewStore(st storage.Storage, bucket, prefix string, logger *zap.Logger) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		storage: st,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Store) WithCache(cache MetadataCache) *Store {
	s.cache = cache
	return s
}

// ImageName is the artifact name for a frame ordinal.
func ImageName(frame int) string {
	return fmt.Sprintf(imageNameFmt, frame)
}

// FrameFromName parses the ordinal out of an image name.
func FrameFromName(name string) (int, bool) {
	m := imageNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func ValidBatchID(id string) bool {
	return batchIDPattern.MatchString(id)
}

func (s *Store) key(parts ...string) string {
	return path.Join(append([]string{s.prefix}, parts...)...)
}

// Batch is the write handle for one invocation. It is sealed at most once.
type Batch struct {
	ID        string
	CreatedAt time.Time

	store  *Store
	mu     sync.Mutex
	sealed bool
	images int
}

// Create allocates a new batch id: the wall-clock second plus a random salt
// so two invocations in the same second never share a batch.
func (s *Store) Create(ctx context.Context) (*Batch, error) {
	now := s.now()
	salt := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	id := now.Format(timestampFmt) + "-" + salt

	s.logger.Info("Created batch", zap.String("batch_id", id))
	return &Batch{ID: id, CreatedAt: now, store: s}, nil
}

// WriteImage stores one encoded image and returns its artifact name.
func (b *Batch) WriteImage(ctx context.Context, frame int, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return "", ErrAlreadySealed
	}

	name := ImageName(frame)
	if err := b.store.storage.Upload(ctx, b.store.bucket, b.store.key(b.ID, name), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	b.images++
	return name, nil
}

// ImageCount is the number of images written so far.
func (b *Batch) ImageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.images
}

// Seal writes metadata.json. A batch can only be sealed once.
func (b *Batch) Seal(ctx context.Context, meta Metadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrAlreadySealed
	}

	s := b.store
	metaKey := s.key(b.ID, MetadataName)
	if _, err := s.storage.Download(ctx, s.bucket, metaKey); err == nil {
		return ErrAlreadySealed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to check metadata: %w", err)
	}

	meta.Timestamp = b.ID
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = b.CreatedAt
	}
	if meta.Methods == nil {
		meta.Methods = []string{}
	}
	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := s.storage.Upload(ctx, s.bucket, metaKey, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	b.sealed = true

	s.logger.Info("Sealed batch",
		zap.String("batch_id", b.ID),
		zap.Int("extracted_images", meta.ExtractedImages),
		zap.Int("processed_frames", meta.ProcessedFrames))
	return nil
}

// ArchiveSource copies the source video next to the batches as
// uploads/video_<batchID><ext> and returns the key.
func (s *Store) ArchiveSource(ctx context.Context, batchID, ext string, body io.Reader) (string, error) {
	key := path.Join(uploadsPrefix, "video_"+batchID+ext)
	if err := s.storage.Upload(ctx, s.bucket, key, body); err != nil {
		return "", fmt.Errorf("failed to archive source: %w", err)
	}
	return key, nil
}

// ListBatches returns sealed batch ids, most recent first.
func (s *Store) ListBatches(ctx context.Context) ([]string, error) {
	sealed, _, err := s.scan(ctx)
	return sealed, err
}

// ListPartialBatches returns ids of batches that have images but no
// metadata, e.g. from a crash mid-invocation.
func (s *Store) ListPartialBatches(ctx context.Context) ([]string, error) {
	_, partial, err := s.scan(ctx)
	return partial, err
}

func (s *Store) scan(ctx context.Context) ([]string, []string, error) {
	ids, err := s.storage.ListPrefixes(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list batches: %w", err)
	}
	var sealed, partial []string
	for _, id := range ids {
		if !ValidBatchID(id) {
			continue
		}
		names, err := s.storage.List(ctx, s.bucket, s.key(id))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list batch %s: %w", id, err)
		}
		if contains(names, MetadataName) {
			sealed = append(sealed, id)
		} else if len(names) > 0 {
			partial = append(partial, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(sealed)))
	sort.Sort(sort.Reverse(sort.StringSlice(partial)))
	return sealed, partial, nil
}

func (s *Store) ReadMetadata(ctx context.Context, batchID string) (*Metadata, error) {
	if !ValidBatchID(batchID) {
		return nil, ErrBatchNotFound
	}
	if s.cache != nil {
		if meta, ok := s.cache.Get(ctx, batchID); ok {
			return meta, nil
		}
	}

	data, err := s.storage.Download(ctx, s.bucket, s.key(batchID, MetadataName))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", batchID, err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, batchID, &meta)
	}
	return &meta, nil
}

// ListImages returns image names of a batch sorted by frame ordinal.
func (s *Store) ListImages(ctx context.Context, batchID string) ([]string, error) {
	if !ValidBatchID(batchID) {
		return nil, ErrBatchNotFound
	}
	names, err := s.storage.List(ctx, s.bucket, s.key(batchID))
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrBatchNotFound
	}

	images := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := FrameFromName(n); ok {
			images = append(images, n)
		}
	}
	sort.Slice(images, func(i, j int) bool {
		a, _ := FrameFromName(images[i])
		b, _ := FrameFromName(images[j])
		return a < b
	})
	return images, nil
}

// OpenImage streams one image. The caller closes the reader.
func (s *Store) OpenImage(ctx context.Context, batchID, name string) (io.ReadCloser, error) {
	if !ValidBatchID(batchID) {
		return nil, ErrBatchNotFound
	}
	if _, ok := FrameFromName(name); !ok {
		return nil, ErrImageNotFound
	}
	rc, err := s.storage.Open(ctx, s.bucket, s.key(batchID, name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return rc, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
