package errors

import (
	"fmt"
	"testing"
)

func BenchmarkErrorCreationNoTelemetry(b *testing.B) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	b.ReportAllocs()

	for b.Loop() {
		_ = New(fmt.Errorf("test error")).
			Component("test").
			Category(CategoryGeneric).
			Build()
	}
}

func BenchmarkErrorCreationWithHook(b *testing.B) {
	AddErrorHook(func(*EnhancedError) {})
	b.Cleanup(ClearErrorHooks)

	b.ReportAllocs()

	for b.Loop() {
		_ = New(fmt.Errorf("test error")).
			Category(CategoryDatabase).
			Context("operation", "save_image").
			Build()
	}
}
