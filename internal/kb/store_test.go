package kb

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/service-agreement/backend/internal/contract"
)

const currentShapeDoc = `[
  {
    "id": "24_hour_notice_cleaning",
    "service_type": "cleaning",
    "clause_type": "cancellation",
    "title": "24 hour notice",
    "short_summary": "Cancel at least 24 hours ahead.",
    "normalized_clause_en": "Client must cancel 24 hours before the visit.",
    "risk_level": "medium",
    "tags": ["cancellation", " reschedule "],
    "source": {"url": "https://example.org/a", "retrieved_at": "2025-05-01", "content_type": "web"},
    "unknown_extra": {"kept": false}
  },
  {
    "id": "pool_chemicals",
    "service_type": "Pool",
    "title": "Chemical handling",
    "short_summary": "Provider supplies pool chemicals."
  }
]`

const legacyShapeDoc = `[
  {
    "id": "pool_chemicals",
    "service_type": "pool_cleaning",
    "topic": "safety",
    "label": "Chemical safety",
    "summary": "Chemicals are stored away from pets.",
    "url": "https://example.org/b",
    "source_type": "guide",
    "enabled": true
  },
  {
    "id": "disabled_item",
    "service_type": "generic",
    "topic": "payment",
    "label": "Old payment terms",
    "summary": "Superseded.",
    "url": "https://example.org/c",
    "enabled": false
  }
]`

func writeKB(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestStore_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeKB(t, dir, map[string]string{
		"01_current.json": currentShapeDoc,
		"02_legacy.json":  legacyShapeDoc,
		"03_broken.json":  `{"not": "an array"}`,
		"04_invalid.json": `[{"id": "no_service_type", "title": "x"}]`,
		"notes.txt":       "ignored",
	})

	items := NewStore(NewDirSource(dir), nil).Load(context.Background())
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "24_hour_notice_cleaning", first.ID)
	assert.Equal(t, "cancellation", first.Topic)
	assert.Equal(t, "24 hour notice", first.Label)
	assert.Equal(t, "Cancel at least 24 hours ahead.", first.Summary)
	assert.Equal(t, "https://example.org/a", first.URL)
	assert.Equal(t, []string{"cancellation", "reschedule"}, first.Tags)
	assert.Equal(t, "web", first.SourceType)

	// Later documents overwrite earlier items with the same id.
	second := items[1]
	assert.Equal(t, "pool_chemicals", second.ID)
	assert.Equal(t, "pool_cleaning", second.ServiceType)
	assert.Equal(t, "Chemical safety", second.Label)
	assert.Equal(t, "safety", second.Topic)
}

func TestStore_DisabledLaterRecordRemovesItem(t *testing.T) {
	dir := t.TempDir()
	writeKB(t, dir, map[string]string{
		"a.json": `[{"id":"x","service_type":"cleaning","title":"X"}]`,
		"b.json": `[{"id":"x","service_type":"cleaning","title":"X","enabled":false}]`,
		"c.json": `[{"id":"x","service_type":"cleaning","title":"X again"}]`,
	})

	items := NewStore(NewDirSource(dir), nil).Load(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, "X again", items[0].Label)
}

func TestStore_MissingDirectoryIsEmpty(t *testing.T) {
	store := NewStore(NewDirSource(filepath.Join(t.TempDir(), "missing")), nil)
	items := store.Load(context.Background())
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestStore_Memoized(t *testing.T) {
	dir := t.TempDir()
	writeKB(t, dir, map[string]string{"a.json": currentShapeDoc})
	store := NewStore(NewDirSource(dir), nil)

	first := store.Load(context.Background())
	require.NoError(t, os.Remove(filepath.Join(dir, "a.json")))
	assert.Equal(t, first, store.Load(context.Background()))

	item, ok := store.Get(context.Background(), "pool_chemicals")
	require.True(t, ok)
	assert.Equal(t, "pool_cleaning", item.ServiceType)
}

func TestStore_EmptyLoadIsMemoized(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	store := NewStore(NewDirSource(dir), nil)
	require.Empty(t, store.Load(context.Background()))

	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeKB(t, dir, map[string]string{"a.json": currentShapeDoc})
	assert.Empty(t, store.Load(context.Background()))
}

func TestStore_StaticAndCallerCopy(t *testing.T) {
	store := NewStaticStore([]contract.KbItem{{ID: "a"}, {ID: "b"}})
	items := store.Load(context.Background())
	items[0].ID = "mutated"
	assert.Equal(t, "a", store.Load(context.Background())[0].ID)
}

func TestCanonicalServiceType(t *testing.T) {
	cases := map[string]string{
		"pool":           "pool_cleaning",
		"Pool Care":      "pool_cleaning",
		"lawn":           "lawn_care",
		"dog-walking":    "pet_sitting",
		"Housekeeping":   "cleaning",
		"home_services":  "home_services",
		"generic":        "generic",
		"window washing": "window_washing",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalServiceType(in), in)
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body := f.objects[aws.ToString(in.Key)]
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"kb/02.json":   legacyShapeDoc,
		"kb/01.json":   currentShapeDoc,
		"kb/readme.md": "skip",
	}}
	src := NewS3SourceWithClient(client, "bucket", "kb/")

	names, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kb/01.json", "kb/02.json"}, names)

	items := NewStore(src, nil).Load(context.Background())
	require.Len(t, items, 2)
	assert.Equal(t, "Chemical safety", items[1].Label)
}
