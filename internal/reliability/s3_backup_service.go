package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/events"
)

// RemoteArchiveInfo describes a backup archive stored in the bucket.
type RemoteArchiveInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// S3BackupService uploads backup archives to S3-compatible storage.
// Archives come from BackupService so the local and remote backup jobs
// running back to back share one archive instead of building two.
type S3BackupService struct {
	client        *S3Client
	backupService *BackupService
	events        EventEmitter
	log           zerolog.Logger
}

// NewS3BackupService creates a new S3 backup service. events may be nil.
func NewS3BackupService(
	client *S3Client,
	backupService *BackupService,
	eventEmitter EventEmitter,
	log zerolog.Logger,
) *S3BackupService {
	return &S3BackupService{
		client:        client,
		backupService: backupService,
		events:        eventEmitter,
		log:           log.With().Str("service", "s3_backup").Logger(),
	}
}

// CreateAndUpload uploads the most recent local archive, creating a fresh
// one first if none is recent enough to reuse.
func (s *S3BackupService) CreateAndUpload(ctx context.Context) error {
	s.log.Info().Msg("Starting S3 backup")
	startTime := time.Now()

	archive, ok := s.backupService.LatestArchive()
	if !ok {
		path, err := s.backupService.CreateArchive()
		if err != nil {
			return fmt.Errorf("failed to create archive: %w", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat archive: %w", err)
		}

		timestamp, _ := ParseArchiveName(filepath.Base(path))
		archive = ArchiveInfo{
			Name:      filepath.Base(path),
			Path:      path,
			Timestamp: timestamp,
			SizeBytes: info.Size(),
		}
	} else {
		s.log.Debug().Str("archive", archive.Name).Msg("Reusing recent archive")
	}

	file, err := os.Open(archive.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	if err := s.client.Upload(ctx, archive.Name, file, archive.SizeBytes); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	if s.events != nil {
		s.events.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
			Archive:   archive.Name,
			SizeBytes: archive.SizeBytes,
			Remote:    true,
		})
	}

	s.log.Info().
		Dur("duration", time.Since(startTime)).
		Str("archive", archive.Name).
		Int64("size_bytes", archive.SizeBytes).
		Msg("S3 backup completed")

	return nil
}

// ListRemote returns all remote archives, newest first.
func (s *S3BackupService) ListRemote(ctx context.Context) ([]RemoteArchiveInfo, error) {
	objects, err := s.client.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote archives: %w", err)
	}

	archives := parseRemoteArchives(objects, time.Now())

	skipped := len(objects) - len(archives)
	if skipped > 0 {
		s.log.Warn().Int("count", skipped).Msg("Ignoring objects with unparseable archive names")
	}

	return archives, nil
}

// RotateRemote deletes the oldest remote archives beyond keep.
// Returns the number of archives deleted.
func (s *S3BackupService) RotateRemote(ctx context.Context, keep int) (int, error) {
	archives, err := s.ListRemote(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, archive := range archivesToDelete(archives, keep) {
		if err := s.client.Delete(ctx, archive.Key); err != nil {
			s.log.Warn().
				Err(err).
				Str("key", archive.Key).
				Msg("Failed to delete remote archive")
			continue
		}

		s.log.Debug().Str("key", archive.Key).Msg("Deleted remote archive")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Remote backup rotation completed")

	return deleted, nil
}

// parseRemoteArchives converts listed objects into archive infos, dropping
// keys that do not look like backup archives. Result is newest first.
func parseRemoteArchives(objects []types.Object, now time.Time) []RemoteArchiveInfo {
	archives := make([]RemoteArchiveInfo, 0, len(objects))

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		timestamp, ok := ParseArchiveName(*obj.Key)
		if !ok {
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		archives = append(archives, RemoteArchiveInfo{
			Key:       *obj.Key,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})

	return archives
}

// archivesToDelete returns the archives beyond keep, assuming newest-first
// input. Never selects below minArchivesToKeep.
func archivesToDelete(archives []RemoteArchiveInfo, keep int) []RemoteArchiveInfo {
	if keep < minArchivesToKeep {
		keep = minArchivesToKeep
	}
	if len(archives) <= keep {
		return nil
	}
	return archives[keep:]
}

// S3BackupJob wraps S3BackupService for the scheduler.
type S3BackupJob struct {
	service *S3BackupService
	keep    int
}

// NewS3BackupJob creates a new S3 backup job.
func NewS3BackupJob(service *S3BackupService, keep int) *S3BackupJob {
	return &S3BackupJob{service: service, keep: keep}
}

// Run uploads the latest archive and rotates old remote ones.
func (j *S3BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}

	_, err := j.service.RotateRemote(ctx, j.keep)
	return err
}

// Name returns the job name for scheduler
func (j *S3BackupJob) Name() string {
	return "s3_backup"
}
