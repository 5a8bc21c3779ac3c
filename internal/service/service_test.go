package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/imgutil"
	"github.com/toonslate/toonslate-backend/internal/inpaint"
	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/queue"
	"github.com/toonslate/toonslate-backend/internal/quota"
	"github.com/toonslate/toonslate-backend/internal/redisstore"
	"github.com/toonslate/toonslate-backend/internal/region"
	"github.com/toonslate/toonslate-backend/internal/storage"
)

var (
	uploadIDPattern = regexp.MustCompile(`^upload_[0-9a-f]{8}$`)
	trIDPattern     = regexp.MustCompile(`^tr_[a-f0-9]{8}$`)
	batchIDPattern  = regexp.MustCompile(`^batch_[a-f0-9]{8}$`)
)

// fakeQueue records enqueued tasks and fails the call numbers listed in
// failOn (1-based) or everything when failAll is set.
type fakeQueue struct {
	tasks   []queue.Task
	calls   int
	failOn  map[int]bool
	failAll bool
}

type enqueueError struct{}

func (enqueueError) Error() string { return "broker gone" }

func (f *fakeQueue) Enqueue(_ context.Context, task queue.Task) error {
	f.calls++
	if f.failAll || f.failOn[f.calls] {
		return enqueueError{}
	}
	f.tasks = append(f.tasks, task)
	return nil
}

// fakeInpainter answers InpaintMask with a solid blue image and records
// the mask it was given.
type fakeInpainter struct {
	mask *image.Gray
	err  error
}

func (f *fakeInpainter) Inpaint(_ context.Context, img *image.NRGBA, regions []region.TextRegion, _ []geometry.BBox) (*image.NRGBA, []region.TextRegion, error) {
	return img, regions, nil
}

func (f *fakeInpainter) InpaintMask(_ context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	f.mask = mask
	if f.err != nil {
		return nil, f.err
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.NRGBA{B: 255, A: 255}), image.Point{}, draw.Src)
	return out, nil
}

type harness struct {
	svc       *Service
	jobs      *jobstore.Store
	store     *storage.Local
	quota     *quota.Engine
	queue     *fakeQueue
	inpainter *fakeInpainter
	mr        *miniredis.Miniredis
}

func newHarness(t *testing.T, weeklyLimit, maxBatch int) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redisstore.New(context.Background(), redisstore.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	jobs := jobstore.New(client, 2*time.Hour)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	qe := quota.New(client, "secret", weeklyLimit)
	fq := &fakeQueue{failOn: map[int]bool{}}
	fi := &fakeInpainter{}

	svc := New(jobs, store, qe, fq, fi, "http://localhost:8000", maxBatch, zap.NewNop())
	return &harness{svc: svc, jobs: jobs, store: store, quota: qe, queue: fq, inpainter: fi, mr: mr}
}

// quotaCount reads the raw weekly counter for the given IP.
func (h *harness) quotaCount(t *testing.T, ip string) string {
	t.Helper()
	key := h.quota.Key(h.quota.HashIP(ip))
	if !h.mr.Exists(key) {
		return ""
	}
	val, err := h.mr.Get(key)
	require.NoError(t, err)
	return val
}

// pngBytes encodes a solid white page of the given size.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(),
		image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
		image.Point{}, draw.Src)
	data, err := imgutil.EncodePNG(img)
	require.NoError(t, err)
	return data
}

// seedUpload ingests a valid image and returns its record.
func seedUpload(t *testing.T, h *harness) jobstore.UploadRecord {
	t.Helper()
	rec, err := h.svc.Upload(context.Background(),
		bytes.NewReader(pngBytes(t, 800, 700)), "image/png", "page.png")
	require.NoError(t, err)
	return rec
}

var _ inpaint.Inpainter = (*fakeInpainter)(nil)
