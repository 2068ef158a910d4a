// Package archive uploads obsolete plugin files to S3-compatible storage
// before they are deleted from the project. Each project keeps a remote JSON
// index of what was archived, so re-runs skip files whose identical copy is
// already stored.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/plugrec/plugrec/internal/output"
	"github.com/plugrec/plugrec/internal/types"
)

// FileArchive represents one obsolete file to upload.
type FileArchive struct {
	LocalPath  string    // Full path to the local file
	Key        string    // Destination S3 key
	Size       int64     // File size in bytes
	ModTime    time.Time // File modification time
	ShouldSkip bool      // True if an identical copy exists remotely
	SkipReason string    // Reason for skipping (e.g., "unchanged")
}

// Result contains summary statistics from an archive operation.
type Result struct {
	Archived      int   // Number of files uploaded
	Skipped       int   // Number of files skipped
	ArchivedBytes int64 // Total bytes uploaded
}

// Archiver uploads project files to the configured archive bucket.
type Archiver struct {
	cfg    *types.Config
	client *s3.Client
}

// New creates an Archiver with the given configuration and S3 client.
// A nil client disables remote calls; Plan and Archive then only account
// for sizes, which tests rely on.
func New(cfg *types.Config, client *s3.Client) *Archiver {
	return &Archiver{cfg: cfg, client: client}
}

// Enabled reports whether archiving is configured.
func (a *Archiver) Enabled() bool {
	return a.cfg.Archive.Bucket != ""
}

func (a *Archiver) indexKey() string {
	return a.cfg.Archive.Prefix + projectName(a.cfg.Project.Root) + "/.archive-index.json"
}

// Plan stats each project-relative path and computes its archive key,
// consulting the remote index to mark files whose identical copy is already
// archived.
func (a *Archiver) Plan(ctx context.Context, relPaths []string) ([]FileArchive, error) {
	var files []FileArchive
	for _, rel := range relPaths {
		local := filepath.Join(a.cfg.Project.Root, filepath.FromSlash(rel))
		info, err := os.Stat(local)
		if err != nil {
			output.Warn("skipping unreadable archive candidate", "path", rel, "error", err)
			continue
		}
		files = append(files, FileArchive{
			LocalPath: local,
			Key:       ComputeKey(a.cfg.Archive.Prefix, projectName(a.cfg.Project.Root), rel),
			Size:      info.Size(),
			ModTime:   info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })

	if a.client == nil {
		return files, nil
	}

	idx, err := LoadIndex(ctx, a.client, a.cfg.Archive.Bucket, a.indexKey())
	if err != nil {
		// Treat as first run; the worst case is re-uploading identical bytes.
		output.Warn("loading archive index failed", "error", err)
		idx = NewIndex()
	}
	for i := range files {
		entry, exists := idx.Files[files[i].Key]
		if !exists {
			continue
		}
		if entry.Size == files[i].Size &&
			entry.Mtime.Truncate(time.Second).Equal(files[i].ModTime.Truncate(time.Second)) {
			files[i].ShouldSkip = true
			files[i].SkipReason = "unchanged"
		}
	}
	return files, nil
}

// Archive uploads the planned files, respecting the ShouldSkip field, and
// updates the remote index after the uploads succeed.
func (a *Archiver) Archive(ctx context.Context, files []FileArchive) (*Result, error) {
	result := &Result{}
	if len(files) == 0 {
		return result, nil
	}

	if a.client == nil {
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return result, fmt.Errorf("archive cancelled: %w", err)
			}
			if file.ShouldSkip {
				result.Skipped++
			} else {
				result.Archived++
				result.ArchivedBytes += file.Size
			}
		}
		return result, nil
	}

	idx, err := LoadIndex(ctx, a.client, a.cfg.Archive.Bucket, a.indexKey())
	if err != nil {
		output.Warn("loading archive index for update failed", "error", err)
		idx = NewIndex()
	}

	uploader := manager.NewUploader(a.client, func(mu *manager.Uploader) {
		mu.Concurrency = 5
		mu.PartSize = 5 * 1024 * 1024
	})

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("archive cancelled: %w", err)
		}
		if file.ShouldSkip {
			output.Debug("skipping archived file", "key", file.Key, "reason", file.SkipReason)
			result.Skipped++
			continue
		}

		if err := a.uploadFile(ctx, uploader, file); err != nil {
			return result, fmt.Errorf("archiving %s: %w", file.LocalPath, err)
		}
		output.Info("archived", "key", file.Key, "size", file.Size)

		idx.Files[file.Key] = FileEntry{
			Mtime: file.ModTime,
			Size:  file.Size,
		}
		result.Archived++
		result.ArchivedBytes += file.Size
	}

	if result.Archived > 0 {
		if err := SaveIndex(ctx, a.client, a.cfg.Archive.Bucket, a.indexKey(), idx); err != nil {
			// The uploads succeeded; a stale index just costs extra HeadObject
			// calls next run.
			output.Warn("saving archive index failed", "error", err)
		}
	}
	return result, nil
}

// uploadFile uploads a single file using the multipart uploader. The file is
// streamed verbatim; archived bytes must match the deleted original exactly.
func (a *Archiver) uploadFile(ctx context.Context, uploader *manager.Uploader, file FileArchive) error {
	f, err := os.Open(file.LocalPath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			output.Warn("closing archived file failed", "path", file.LocalPath, "error", closeErr)
		}
	}()

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Archive.Bucket),
		Key:    aws.String(file.Key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

// ComputeKey generates the S3 key for a project-relative file path.
// Format: <prefix><project-name>/<relative-path>
// The prefix is normalized to have a trailing slash if non-empty.
// Path separators are converted to forward slashes for S3 compatibility.
func ComputeKey(prefix, project, relPath string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	prefix = strings.ReplaceAll(prefix, "\\", "/")
	project = strings.ReplaceAll(project, "\\", "/")
	relPath = strings.ReplaceAll(relPath, "\\", "/")

	if prefix == "" {
		return project + "/" + relPath
	}
	return prefix + project + "/" + relPath
}

// ListArchived returns the keys archived under this project's prefix,
// paginating through the bucket listing.
func (a *Archiver) ListArchived(ctx context.Context) ([]string, error) {
	prefix := a.cfg.Archive.Prefix + projectName(a.cfg.Project.Root) + "/"

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.cfg.Archive.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list archived objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// projectName derives the remote folder name from the project root.
func projectName(root string) string {
	return path.Base(filepath.ToSlash(root))
}
