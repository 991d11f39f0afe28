package storage

import (
	"encoding/json"
	"fmt"

	"github.com/mmynk/tithe/internal/models"
)

// EncodeDocument serializes a session as stored, enforcing MaxDocumentBytes.
func EncodeDocument(s *models.CalcSession) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	return data, nil
}

// DecodeDocument parses a stored session.
func DecodeDocument(data []byte) (*models.CalcSession, error) {
	var s models.CalcSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}
