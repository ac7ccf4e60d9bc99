// Package reliability provides backup archives for the service databases,
// locally and to S3-compatible storage.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/database"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/version"
)

const (
	archivePrefix = "starledger-backup-"
	archiveSuffix = ".tar.gz"
	stampLayout   = "2006-01-02-150405"

	// Backups younger than this are reused instead of rebuilt, so the
	// local and remote backup jobs running back to back share one archive.
	archiveReuseWindow = 12 * time.Hour

	// Rotation never deletes below this many archives regardless of keep.
	minArchivesToKeep = 3

	manifestFilename = "backup-manifest.json"
	manifestVersion  = "1.0.0"
)

// EventEmitter defines the contract for event emission
// Used by backup services to enable testing with mocks
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// Manifest describes the contents of a backup archive.
type Manifest struct {
	Timestamp      time.Time          `json:"timestamp"`
	Version        string             `json:"version"`
	ServiceVersion string             `json:"service_version"`
	Databases      []DatabaseManifest `json:"databases"`
}

// DatabaseManifest describes a single database inside a backup archive.
type DatabaseManifest struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// ArchiveInfo describes a local backup archive.
type ArchiveInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService creates and rotates local backup archives of the service
// databases. Campaign databases are the ingester's property and are never
// backed up here.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	events    EventEmitter
	log       zerolog.Logger
}

// NewBackupService creates a new backup service. events may be nil.
func NewBackupService(
	databases map[string]*database.DB,
	backupDir string,
	eventEmitter EventEmitter,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		events:    eventEmitter,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// CreateArchive backs up every service database into a fresh tar.gz archive
// with a checksum manifest, returning the archive path.
func (s *BackupService) CreateArchive() (string, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stagingDir, err := os.MkdirTemp(s.backupDir, "staging-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	manifest := Manifest{
		Timestamp:      time.Now().UTC(),
		Version:        manifestVersion,
		ServiceVersion: version.Version,
		Databases:      make([]DatabaseManifest, 0, len(s.databases)),
	}

	for _, name := range s.databaseNames() {
		dbPath := filepath.Join(stagingDir, name+".db")

		if err := s.backupDatabase(name, dbPath); err != nil {
			return "", fmt.Errorf("failed to backup %s: %w", name, err)
		}
		if err := s.verifyBackup(dbPath); err != nil {
			return "", fmt.Errorf("backup verification failed for %s: %w", name, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s backup: %w", name, err)
		}

		checksum, err := checksumFile(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s backup: %w", name, err)
		}

		manifest.Databases = append(manifest.Databases, DatabaseManifest{
			Name:      name,
			Filename:  name + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	manifestPath := filepath.Join(stagingDir, manifestFilename)
	if err := writeManifest(manifestPath, manifest); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	archiveName := archivePrefix + time.Now().UTC().Format(stampLayout) + archiveSuffix
	archivePath := filepath.Join(s.backupDir, archiveName)

	filenames := make([]string, 0, len(manifest.Databases)+1)
	for _, db := range manifest.Databases {
		filenames = append(filenames, db.Filename)
	}
	filenames = append(filenames, manifestFilename)

	if err := createArchive(archivePath, stagingDir, filenames); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	if s.events != nil {
		s.events.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
			Archive:   archiveName,
			SizeBytes: archiveInfo.Size(),
			Remote:    false,
		})
	}

	s.log.Info().
		Dur("duration", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed")

	return archivePath, nil
}

// LatestArchive returns the newest archive if one is recent enough to reuse.
func (s *BackupService) LatestArchive() (ArchiveInfo, bool) {
	archives, err := s.ListArchives()
	if err != nil || len(archives) == 0 {
		return ArchiveInfo{}, false
	}

	newest := archives[0]
	if time.Since(newest.Timestamp) > archiveReuseWindow {
		return ArchiveInfo{}, false
	}

	return newest, true
}

// ListArchives returns all local archives, newest first.
func (s *BackupService) ListArchives() ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	archives := make([]ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		timestamp, ok := ParseArchiveName(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		archives = append(archives, ArchiveInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Timestamp: timestamp,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})

	return archives, nil
}

// Rotate deletes the oldest archives beyond keep.
// Returns the number of archives deleted.
func (s *BackupService) Rotate(keep int) (int, error) {
	if keep < minArchivesToKeep {
		keep = minArchivesToKeep
	}

	archives, err := s.ListArchives()
	if err != nil {
		return 0, err
	}
	if len(archives) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, archive := range archives[keep:] {
		if err := os.Remove(archive.Path); err != nil {
			s.log.Warn().
				Err(err).
				Str("archive", archive.Name).
				Msg("Failed to delete old backup archive")
			continue
		}

		s.log.Debug().Str("archive", archive.Name).Msg("Deleted old backup archive")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

// ParseArchiveName extracts the timestamp from an archive filename.
func ParseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	timestamp, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}

	return timestamp, true
}

// backupDatabase copies a single database using SQLite's VACUUM INTO.
// The copy is a fresh compacted database without WAL files.
func (s *BackupService) backupDatabase(name, backupPath string) error {
	db, ok := s.databases[name]
	if !ok || db == nil {
		return fmt.Errorf("database %s not found", name)
	}

	s.log.Debug().
		Str("database", name).
		Str("backup_path", backupPath).
		Msg("Backing up database")

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	return nil
}

// verifyBackup opens the backup copy and runs an integrity check.
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}

	return nil
}

// databaseNames returns registered database names in stable order.
func (s *BackupService) databaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeManifest(path string, manifest Manifest) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(manifest)
}

// createArchive writes the named staging files into a tar.gz archive.
func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}

// BackupJob wraps BackupService for the scheduler.
type BackupJob struct {
	service *BackupService
	keep    int
}

// NewBackupJob creates a new local backup job.
func NewBackupJob(service *BackupService, keep int) *BackupJob {
	return &BackupJob{service: service, keep: keep}
}

// Run creates a fresh archive and rotates old ones.
func (j *BackupJob) Run() error {
	if _, err := j.service.CreateArchive(); err != nil {
		return err
	}

	_, err := j.service.Rotate(j.keep)
	return err
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "local_backup"
}
