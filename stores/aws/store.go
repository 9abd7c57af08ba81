package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"orbit/core"
)

const itemExt = ".json"

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Store keeps one JSON object per item under <userID>/<itemID>.json.
type s3Store struct {
	// mu serialises read-modify-write updates from this process.
	mu       sync.Mutex
	s3Client s3API
	bucket   string
}

// NewStore creates a new S3-based store. A non-empty endpoint selects an
// S3-compatible service (MinIO, LocalStack) with path-style addressing.
func NewStore(ctx context.Context, bucketName, endpoint string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewStoreWithClient(s3Client, bucketName), nil
}

func NewStoreWithClient(client s3API, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName}
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("must not be empty or a dot directory")
	}
	if path.Base(name) != name || strings.Contains(name, `\`) {
		return fmt.Errorf("must not be a path")
	}
	return nil
}

func userPrefix(userID string) (string, error) {
	if err := checkName(userID); err != nil {
		return "", fmt.Errorf("invalid user id: %w", err)
	}
	return userID + "/", nil
}

func itemKey(userID, id string) (string, error) {
	prefix, err := userPrefix(userID)
	if err != nil {
		return "", err
	}
	if err := checkName(id); err != nil {
		return "", fmt.Errorf("%w: invalid item id", core.ErrNotFound)
	}
	return prefix + id + itemExt, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *s3Store) keys(ctx context.Context, userID string) ([]string, error) {
	prefix, err := userPrefix(userID)
	if err != nil {
		return nil, err
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list items for user %s: %w", userID, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, itemExt) {
				keys = append(keys, key)
			}
		}
	}
	// Item IDs are ULIDs, so key order is creation order.
	sort.Strings(keys)
	return keys, nil
}

func (s *s3Store) read(ctx context.Context, userID, key string) (*core.Item, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path.Base(key))
		}
		return nil, fmt.Errorf("failed to get item %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read item data: %w", err)
	}
	var it core.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s: %w", key, err)
	}
	it.UserID = userID
	return &it, nil
}

func (s *s3Store) write(ctx context.Context, key string, it *core.Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", it.ID, err)
	}
	return nil
}

// readKeys fetches objects in key order, skipping unreadable ones.
func (s *s3Store) readKeys(ctx context.Context, userID string, keys []string) []*core.Item {
	items := make([]*core.Item, 0, len(keys))
	for _, key := range keys {
		it, err := s.read(ctx, userID, key)
		if err != nil {
			logrus.WithFields(logrus.Fields{"user_id": userID, "key": key}).WithError(err).Warn("Failed to read item object, skipping")
			continue
		}
		items = append(items, it)
	}
	return items
}

func (s *s3Store) List(ctx context.Context, userID string, page, pageSize int) ([]*core.Item, error) {
	keys, err := s.keys(ctx, userID)
	if err != nil {
		return nil, err
	}
	start, end := core.PageBounds(len(keys), page, pageSize)
	return s.readKeys(ctx, userID, keys[start:end]), nil
}

func (s *s3Store) Create(ctx context.Context, it *core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	it.ID = ulid.Make().String()
	it.CreatedAt, it.UpdatedAt = now, now

	key, err := itemKey(it.UserID, it.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": it.UserID, "item_id": it.ID, "bucket": s.bucket})
	if err := s.write(ctx, key, it); err != nil {
		log.WithError(err).Error("Failed to create item")
		return err
	}
	log.Info("Item created successfully")
	return nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Item, error) {
	key, err := itemKey(userID, id)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, userID, key)
}

func (s *s3Store) Update(ctx context.Context, userID, id string, patch core.Patch) (*core.Item, error) {
	key, err := itemKey(userID, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.read(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	it.Apply(patch)
	it.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, key, it); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id}).WithError(err).Error("Failed to update item")
		return nil, err
	}
	return it, nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	key, err := itemKey(userID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "item_id": id})

	// DeleteObject succeeds for missing keys.
	if _, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			log.Warn("Item not found for deletion")
			return fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return fmt.Errorf("failed to check item %s: %w", id, err)
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	log.Info("Item deleted successfully")
	return nil
}

func (s *s3Store) Search(ctx context.Context, userID, query string) ([]*core.Item, error) {
	if core.NormalizeQuery(query) == "" {
		return []*core.Item{}, nil
	}
	keys, err := s.keys(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.FilterMatches(s.readKeys(ctx, userID, keys), query), nil
}
