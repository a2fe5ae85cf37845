// Package entities defines the GORM entity models for the trailcam schema.
//
// # Entities
//
//   - ImageRecord: an uploaded camera-trap image, bytes inline or in object storage
//   - PredictionRecord: the normalized classifier output, at most one per image
//
// PredictionRecord.ImageID is a foreign key with a unique index; the
// one-to-one relationship is enforced by the database, not by the caller.
package entities
