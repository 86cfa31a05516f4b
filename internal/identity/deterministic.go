package identity

import (
	"fmt"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must ensure key construction prevents cross-entity collisions (prefix by domain/type).
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// PageUUID derives the node id for a page. Repeated syncs of an unchanged
// page therefore reuse the same id.
func PageUUID(workspaceID uuid.UUID, pageName string) uuid.UUID {
	return UUID("notepress:page:" + workspaceID.String() + ":" + strings.TrimSpace(pageName))
}

// BlockUUID derives the node id for a block carrying an explicit source id.
func BlockUUID(workspaceID uuid.UUID, explicitID string) uuid.UUID {
	if parsed, err := uuid.Parse(strings.TrimSpace(explicitID)); err == nil {
		return parsed
	}
	return UUID("notepress:block:" + workspaceID.String() + ":" + strings.TrimSpace(explicitID))
}

// SyntheticBlockUUID derives a stable id for a block that has no explicit
// source id, keyed by parent id, sibling order, and normalized content.
func SyntheticBlockUUID(parentID uuid.UUID, order int, content string) uuid.UUID {
	normalized := strings.Join(strings.Fields(content), " ")
	return UUID(fmt.Sprintf("notepress:block:%s:%d:%s", parentID.String(), order, normalized))
}
