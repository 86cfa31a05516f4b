package ingest

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/notepress/notepress/pkg/interfaces"
)

// assetRefRe matches src/href attributes pointing into the repository's
// assets directory, with optional ../ climbing emitted by the renderer.
var assetRefRe = regexp.MustCompile(`(src|href)="((?:\.\./)*assets/[^"]+)"`)

// rewriteAssets uploads every asset referenced by the fragment through the
// blob store and swaps the relative reference for the returned public URL.
// Upload failures keep the original reference; the page must still publish.
func rewriteAssets(ctx context.Context, blobs interfaces.BlobStore, workspaceID uuid.UUID, repoDir, fragment string, warn func(format string, args ...any)) string {
	if blobs == nil {
		return fragment
	}

	return assetRefRe.ReplaceAllStringFunc(fragment, func(match string) string {
		groups := assetRefRe.FindStringSubmatch(match)
		attr, ref := groups[1], groups[2]

		relative := strings.TrimLeft(ref, "./")
		data, err := os.ReadFile(filepath.Join(repoDir, filepath.FromSlash(relative)))
		if err != nil {
			warn("asset %s unreadable: %v", relative, err)
			return match
		}

		contentType := mime.TypeByExtension(filepath.Ext(relative))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		url, err := blobs.Upload(ctx, workspaceID, relative, data, contentType)
		if err != nil {
			warn("asset %s upload failed: %v", relative, err)
			return match
		}
		return attr + `="` + url + `"`
	})
}
