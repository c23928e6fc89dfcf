// Package service holds infrastructure adapters the application layer
// depends on through small interfaces: id generation and notification sinks.
package service

import (
	"github.com/google/uuid"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
)

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

var _ pei.IDGenerator = UUIDGenerator{}

// NewIDGenerator returns the default id source.
func NewIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// GenerateID implements pei.IDGenerator.
func (UUIDGenerator) GenerateID() string {
	return uuid.NewString()
}
