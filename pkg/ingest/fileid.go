package ingest

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/docaihq/docai/pkg/domain"
)

// maxIDAttempts bounds regeneration of the random component when a
// generated id collides with an existing row.
const maxIDAttempts = 5

// newFileID builds `file_{unix_seconds}_{8hex_random}_{8hex_sha256}`.
// The trailing component is the content hash prefix, so identical bytes
// uploaded twice still differ in the random component.
func newFileID(content []byte, now time.Time) (string, error) {
	var random [4]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", fmt.Errorf("%w: failed to generate file id: %v", domain.ErrInternal, err)
	}
	sum := sha256.Sum256(content)
	return fmt.Sprintf("file_%010d_%s_%s",
		now.Unix(),
		hex.EncodeToString(random[:]),
		hex.EncodeToString(sum[:4]),
	), nil
}

func (e *Engine) uniqueFileID(ctx context.Context, content []byte) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := newFileID(content, time.Now())
		if err != nil {
			return "", err
		}
		exists, err := e.files.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		e.logger.Warn("file id collision, regenerating", "file_id", id, "attempt", attempt+1)
	}
	return "", fmt.Errorf("%w: could not allocate a unique file id after %d attempts", domain.ErrInternal, maxIDAttempts)
}
