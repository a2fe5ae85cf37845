// Package repository provides GORM-backed repositories for images and
// predictions.
//
// # Error Handling
//
// All repositories return sentinel errors (ErrImageNotFound, etc.)
// instead of leaking GORM errors, so callers match failures with errors.Is.
// Unique and foreign key violations require gorm.Config.TranslateError;
// a driver message fallback covers connections opened without it.
//
// # Required Schema Constraints
//
//   - predictions: UNIQUE(image_id), FOREIGN KEY(image_id) REFERENCES images(id)
//
// AutoMigrate of entities.All creates both.
//
// # Thread Safety
//
// All repository methods are safe for concurrent use. The one-prediction-per-image
// rule holds under concurrent writers because it is the unique index, not a
// read-then-write check.
package repository
