package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderSetsFields(t *testing.T) {
	sentinel := NewStd("image not found")
	ee := New(fmt.Errorf("fetch image 7: %w", sentinel)).
		Component("imagestore").
		Category(CategoryNotFound).
		Priority(PriorityLow).
		Context("image_id", uint(7)).
		Build()

	assert.Equal(t, "imagestore", ee.GetComponent())
	assert.Equal(t, PriorityLow, ee.GetPriority())
	assert.Equal(t, uint(7), ee.GetContext()["image_id"])
	assert.True(t, Is(ee, sentinel), "wrapped sentinel must stay matchable")
	assert.True(t, IsNotFound(ee))
	assert.False(t, IsCategory(ee, CategoryDatabase))
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"timeout", NewStd("context deadline exceeded"), CategoryTimeout},
		{"connection", NewStd("connection refused"), CategoryNetwork},
		{"not found", NewStd("record not found"), CategoryNotFound},
		{"validation", NewStd("invalid content type"), CategoryValidation},
		{"nested enhanced", New(NewStd("x")).Category(CategoryClassification).Build(), CategoryClassification},
		{"generic", NewStd("boom"), CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err))
		})
	}
}

func TestErrorHooksEnableSlowPath(t *testing.T) {
	t.Cleanup(ClearErrorHooks)

	var seen []*EnhancedError
	AddErrorHook(func(ee *EnhancedError) { seen = append(seen, ee) })

	ee := New(NewStd("disk full")).Category(CategoryDatabase).Build()

	require.Len(t, seen, 1)
	assert.Same(t, ee, seen[0])
	assert.NotEmpty(t, ee.GetComponent(), "component detected from the call stack")
}

func TestComponentFromFunc(t *testing.T) {
	assert.Equal(t, "ingest", componentFromFunc("github.com/tphakala/trailcam-go/internal/ingest.(*Pipeline).Ingest"))
	assert.Equal(t, "repository", componentFromFunc("github.com/tphakala/trailcam-go/internal/datastore/v2/repository.(*imageRepository).Create"))
	assert.Empty(t, componentFromFunc("nodot"))
}

func TestRegexPrecompilation(t *testing.T) {
	scrubbed := basicURLScrub("Error at https://api.example.com?api_key=secret123&token=abc")
	assert.Equal(t, "Error at https://api.example.com?[REDACTED]", scrubbed)

	scrubbed = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, scrubbed, "[API_KEY_REDACTED]")

	scrubbed = basicURLScrub("S3 failed with secret_key=abc123 and token=xyz789")
	assert.False(t, strings.Contains(scrubbed, "abc123") || strings.Contains(scrubbed, "xyz789"), scrubbed)
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("boom")).
		Component("classifier").
		Category(CategoryClassification).
		Context("operation", "post_image").
		Build()
	assert.Equal(t, "Classifier Classification Error Post Image", generateErrorTitle(ee))
}
