package sse

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendJSON sends payload as a compact JSON event.
func SendJSON(ctx context.Context, s *Session, payload any, opts ...EventOption) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: encode event: %w", err)
	}
	return s.SendEvent(ctx, string(data), opts...)
}
