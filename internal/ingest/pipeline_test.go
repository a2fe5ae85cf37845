package ingest

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/trailcam-go/internal/classifier"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
	"github.com/tphakala/trailcam-go/internal/predictionstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memImages is an in-memory ImageStore.
type memImages struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint]*entities.ImageRecord
	saveErr error
}

func newMemImages() *memImages {
	return &memImages{records: make(map[uint]*entities.ImageRecord)}
}

func (m *memImages) Save(_ context.Context, data []byte, name, contentType string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.nextID++
	m.records[m.nextID] = &entities.ImageRecord{
		ID: m.nextID, Name: name, ContentType: contentType,
		Data: append([]byte(nil), data...), Size: int64(len(data)),
	}
	return m.nextID, nil
}

func (m *memImages) FetchByID(_ context.Context, id uint) (*entities.ImageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memImages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memPredictions is an in-memory PredictionStore enforcing one prediction per image.
type memPredictions struct {
	mu      sync.Mutex
	nextID  uint
	byImage map[uint]*entities.PredictionRecord
	saveErr error
}

func newMemPredictions() *memPredictions {
	return &memPredictions{byImage: make(map[uint]*entities.PredictionRecord)}
}

func (m *memPredictions) Save(ctx context.Context, result *classifier.Result, imageID uint) (*entities.PredictionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	if _, ok := m.byImage[imageID]; ok {
		return nil, predictionstore.ErrPredictionExists
	}
	m.nextID++
	rec := predictionstore.ToRecord(result, imageID)
	rec.ID = m.nextID
	m.byImage[imageID] = rec
	return rec, nil
}

func (m *memPredictions) ExistsForImage(_ context.Context, imageID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byImage[imageID]
	return ok, nil
}

func (m *memPredictions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byImage)
}

// mockClassifier records calls with testify/mock.
type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, data []byte, filename, contentType string) (*classifier.Result, error) {
	args := m.Called(ctx, data, filename, contentType)
	res, _ := args.Get(0).(*classifier.Result)
	return res, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishPrediction(ctx context.Context, img *entities.ImageMeta, rec *entities.PredictionRecord) error {
	return m.Called(ctx, img, rec).Error(0)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	sizes    []int64
}

func (r *recordingMetrics) ObserveImageSize(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, size)
}

func (r *recordingMetrics) ObserveIngest(operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, operation+":"+outcome)
}

func str(s string) *string { return &s }

func bearResult() *classifier.Result {
	return &classifier.Result{
		Class: str("mammalia"), Order: str("carnivora"), Family: str("ursidae"),
		Genus: str("ursus"), Species: str("americanus"), CommonName: str("american black bear"),
		Score:    0.9899,
		BBox:     &classifier.BBox{X: 0.4331, Y: 0.4284, Width: 0.3232, Height: 0.3223},
		Detected: true,
	}
}

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func testLimits() Limits {
	return Limits{
		MaxUploadSize:     1024,
		AllowedTypes:      []string{"image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff", "image/webp"},
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff", "webp"},
	}
}

type fixture struct {
	images      *memImages
	predictions *memPredictions
	classifier  *mockClassifier
	metrics     *recordingMetrics
	pipeline    *Pipeline
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		images:      newMemImages(),
		predictions: newMemPredictions(),
		classifier:  &mockClassifier{},
		metrics:     &recordingMetrics{},
	}
	opts = append(opts, WithMetrics(f.metrics))
	f.pipeline = New(f.images, f.classifier, f.predictions, testLimits(),
		logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil), opts...)
	t.Cleanup(func() { f.classifier.AssertExpectations(t) })
	return f
}

func TestIngest_Success(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, jpeg, "bear.jpg", "image/jpeg").Return(bearResult(), nil).Once()

	rec, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "bear.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err)

	assert.Equal(t, uint(1), rec.ImageID)
	assert.Equal(t, "mammalia", *rec.Class)
	assert.Equal(t, "american black bear", *rec.CommonName)
	assert.Equal(t, 0.9899, rec.Score)
	assert.Equal(t, 0.4331, *rec.BBoxX)
	assert.Equal(t, 0.3223, *rec.BBoxHeight)
	assert.True(t, rec.Detected)

	img, err := f.images.FetchByID(t.Context(), rec.ImageID)
	require.NoError(t, err)
	assert.Equal(t, jpeg, img.Data)
	assert.Equal(t, "image/jpeg", img.ContentType)

	f.classifier.AssertNumberOfCalls(t, "Classify", 1)
	assert.Equal(t, []string{"ingest:success"}, f.metrics.outcomes)
	assert.Equal(t, []int64{int64(len(jpeg))}, f.metrics.sizes)
}

func TestIngest_ImagePersistedWhenClassifierAlwaysFails(t *testing.T) {
	tests := []struct {
		name     string
		clsErr   error
		wantKind Kind
	}{
		{"unavailable", errors.Join(classifier.ErrUnavailable, context.DeadlineExceeded), ClassificationUnavailable},
		{"failure", classifier.ErrFailure, ClassificationFailure},
		{"unexpected", errors.NewStd("boom"), ClassificationFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.clsErr).Once()

			_, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "cam1.jpg", ContentType: "image/jpeg"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))

			imageID, ok := ImageIDOf(err)
			require.True(t, ok, "classification errors must carry the stored image id")
			img, fetchErr := f.images.FetchByID(t.Context(), imageID)
			require.NoError(t, fetchErr)
			assert.Equal(t, jpeg, img.Data)

			assert.Equal(t, 0, f.predictions.count())
		})
	}
}

func TestIngest_TimeoutIsUnavailableWithFetchableImage(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.Join(classifier.ErrUnavailable, context.DeadlineExceeded)).Once()

	_, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, ContentType: "image/jpeg"})
	require.Error(t, err)
	assert.Equal(t, ClassificationUnavailable, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	id, ok := ImageIDOf(err)
	require.True(t, ok)
	_, err = f.images.FetchByID(t.Context(), id)
	require.NoError(t, err)
}

func TestIngest_NoDetectionStoresEmptyPrediction(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, classifier.ErrNoDetection).Once()

	rec, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "night.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.False(t, rec.Detected)
	assert.Nil(t, rec.Class)
	assert.Nil(t, rec.CommonName)
	assert.Nil(t, rec.BBoxX)
	assert.Zero(t, rec.Score)
}

func TestIngest_InvalidRequestStoresNothing(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
	}{
		{"missing data", Upload{Filename: "a.jpg", ContentType: "image/jpeg"}},
		{"empty data", Upload{Data: []byte{}, Filename: "a.jpg", ContentType: "image/jpeg"}},
		{"too large", Upload{Data: make([]byte, 2048), Filename: "a.jpg", ContentType: "image/jpeg"}},
		{"not an image", Upload{Data: []byte("hello"), Filename: "a.txt", ContentType: "text/plain"}},
		{"image type not allowed", Upload{Data: jpeg, Filename: "a.svg", ContentType: "image/svg+xml"}},
		{"extension not allowed", Upload{Data: jpeg, Filename: "a.exe", ContentType: "image/jpeg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.pipeline.Ingest(t.Context(), tt.upload)
			require.Error(t, err)
			assert.Equal(t, InvalidRequest, KindOf(err))
			_, hasID := ImageIDOf(err)
			assert.False(t, hasID)

			assert.Equal(t, 0, f.images.count())
			assert.Equal(t, 0, f.predictions.count())
			f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestIngest_SniffsGenericContentType(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, jpeg, "", "image/jpeg").Return(bearResult(), nil).Once()

	rec, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, ContentType: "application/octet-stream"})
	require.NoError(t, err)

	img, err := f.images.FetchByID(t.Context(), rec.ImageID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.ContentType)
}

func TestIngest_ClientDisconnectAfterImageStoredStillCompletes(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	f.classifier.On("Classify", mock.Anything, jpeg, "fox.jpg", "image/jpeg").
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err(), "classifier context must outlive the request")
		}).
		Return(bearResult(), nil).Once()

	rec, err := f.pipeline.Ingest(ctx, Upload{Data: jpeg, Filename: "fox.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), rec.ImageID)
	assert.Equal(t, 1, f.predictions.count())
	assert.Equal(t, []string{"ingest:success"}, f.metrics.outcomes)
}

func TestIngest_ImageStorageFailureSkipsClassifier(t *testing.T) {
	f := newFixture(t)
	f.images.saveErr = errors.NewStd("disk full")

	_, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "a.jpg", ContentType: "image/jpeg"})
	require.Error(t, err)
	assert.Equal(t, StorageFailure, KindOf(err))
	_, hasID := ImageIDOf(err)
	assert.False(t, hasID)
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_PredictionStorageFailureCarriesImageID(t *testing.T) {
	f := newFixture(t)
	f.predictions.saveErr = predictionstore.ErrStorage
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(bearResult(), nil).Once()

	_, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "a.jpg", ContentType: "image/jpeg"})
	require.Error(t, err)
	assert.Equal(t, StorageFailure, KindOf(err))
	id, ok := ImageIDOf(err)
	require.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestIngest_PublishesEventBestEffort(t *testing.T) {
	pub := &mockPublisher{}
	f := newFixture(t, WithPublisher(pub))
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(bearResult(), nil).Once()
	pub.On("PublishPrediction", mock.Anything,
		mock.MatchedBy(func(img *entities.ImageMeta) bool { return img.Name == "bear.jpg" }),
		mock.AnythingOfType("*entities.PredictionRecord")).
		Return(errors.NewStd("broker down")).Once()

	rec, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "bear.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err, "publish failures must not fail ingestion")
	assert.NotNil(t, rec)
	pub.AssertExpectations(t)
}

func TestReclassify(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, classifier.ErrUnavailable).Once()

	_, err := f.pipeline.Ingest(t.Context(), Upload{Data: jpeg, Filename: "bear.jpg", ContentType: "image/jpeg"})
	require.Error(t, err)
	imageID, ok := ImageIDOf(err)
	require.True(t, ok)

	f.classifier.On("Classify", mock.Anything, jpeg, "bear.jpg", "image/jpeg").Return(bearResult(), nil).Once()
	rec, err := f.pipeline.Reclassify(t.Context(), imageID)
	require.NoError(t, err)
	assert.Equal(t, imageID, rec.ImageID)
	assert.Equal(t, 1, f.images.count(), "reclassify must not store a new image")

	_, err = f.pipeline.Reclassify(t.Context(), imageID)
	require.Error(t, err)
	assert.Equal(t, Conflict, KindOf(err))
	assert.ErrorIs(t, err, predictionstore.ErrPredictionExists)

	f.classifier.AssertNumberOfCalls(t, "Classify", 2)
	assert.Equal(t, []string{"ingest:classification_unavailable", "reclassify:success", "reclassify:conflict"}, f.metrics.outcomes)
}

func TestReclassify_UnknownImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Reclassify(t.Context(), 42)
	require.Error(t, err)
	assert.Equal(t, NotFound, KindOf(err))
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}

func TestIngest_ConcurrentUploadsGetDistinctImages(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(bearResult(), nil)

	const uploads = 8
	var wg sync.WaitGroup
	ids := make(chan uint, uploads)
	for range uploads {
		wg.Go(func() {
			rec, err := f.pipeline.Ingest(context.Background(), Upload{Data: jpeg, ContentType: "image/jpeg"})
			if assert.NoError(t, err) {
				ids <- rec.ImageID
			}
		})
	}
	wg.Wait()
	close(ids)

	seen := map[uint]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, uploads)
	assert.Equal(t, uploads, f.predictions.count())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Internal, KindOf(nil))
	assert.Equal(t, Internal, KindOf(errors.NewStd("x")))
	assert.Equal(t, Conflict, KindOf(errors.Join(errors.NewStd("ctx"), &Error{Kind: Conflict})))
	assert.Equal(t, "classification_unavailable", ClassificationUnavailable.String())
	assert.Equal(t, "kind(99)", Kind(99).String())

	_, ok := ImageIDOf(errors.NewStd("x"))
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: ClassificationFailure, ImageID: 7, Err: classifier.ErrFailure}
	assert.Equal(t, "classification_failure (image 7): classifier failure", err.Error())
	assert.ErrorIs(t, err, classifier.ErrFailure)
}
