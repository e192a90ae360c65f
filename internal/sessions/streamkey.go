package sessions

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewStreamKey generates a unique broadcast credential for a session.
func NewStreamKey() string {
	return fmt.Sprintf("session_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
