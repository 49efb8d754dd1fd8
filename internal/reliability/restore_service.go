package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RestoreService restores databases from R2 backup archives. Restores are
// two-phase: StageRestore downloads and verifies an archive while the
// application runs, then the staged files are swapped in on the next
// startup, before any database connection is opened.
type RestoreService struct {
	r2Client *R2Client
	dataDir  string
	log      zerolog.Logger
}

// RestoreManifest records a staged restore awaiting execution
type RestoreManifest struct {
	Archive   string             `json:"archive"`
	StagedAt  time.Time          `json:"staged_at"`
	Databases []DatabaseMetadata `json:"databases"`
}

// NewRestoreService creates a new restore service. The R2 client may be
// nil; staging then fails but pending restores can still be executed.
func NewRestoreService(r2Client *R2Client, dataDir string, log zerolog.Logger) *RestoreService {
	return &RestoreService{
		r2Client: r2Client,
		dataDir:  dataDir,
		log:      log.With().Str("service", "restore").Logger(),
	}
}

func (s *RestoreService) stagingDir() string {
	return filepath.Join(s.dataDir, "restore-staging")
}

func (s *RestoreService) manifestPath() string {
	return filepath.Join(s.dataDir, "restore-pending.json")
}

// StageRestore downloads a backup archive from R2, extracts it into the
// staging directory and verifies every database against its checksum.
// The restore itself happens on the next startup.
func (s *RestoreService) StageRestore(ctx context.Context, archiveName string) error {
	if s.r2Client == nil {
		return fmt.Errorf("r2 client not configured")
	}

	s.log.Info().Str("archive", archiveName).Msg("Staging restore")

	stagingDir := s.stagingDir()
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	archivePath := filepath.Join(stagingDir, archiveName)
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if _, err := s.r2Client.Download(ctx, archiveName, archiveFile); err != nil {
		archiveFile.Close()
		return fmt.Errorf("failed to download archive: %w", err)
	}
	archiveFile.Close()

	if err := extractArchive(archivePath, stagingDir); err != nil {
		return fmt.Errorf("failed to extract archive: %w", err)
	}

	metadata, err := readMetadata(filepath.Join(stagingDir, "backup-metadata.json"))
	if err != nil {
		return fmt.Errorf("failed to read backup metadata: %w", err)
	}

	for _, db := range metadata.Databases {
		stagedPath := filepath.Join(stagingDir, db.Filename)

		checksum, err := checksumFile(stagedPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", db.Name, err)
		}
		if checksum != db.Checksum {
			return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", db.Name, db.Checksum, checksum)
		}
	}

	manifest := RestoreManifest{
		Archive:   archiveName,
		StagedAt:  time.Now().UTC(),
		Databases: metadata.Databases,
	}

	manifestFile, err := os.Create(s.manifestPath())
	if err != nil {
		return fmt.Errorf("failed to create restore manifest: %w", err)
	}
	defer manifestFile.Close()

	encoder := json.NewEncoder(manifestFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("failed to write restore manifest: %w", err)
	}

	s.log.Info().
		Str("archive", archiveName).
		Int("databases", len(metadata.Databases)).
		Msg("Restore staged, restart to apply")

	return nil
}

// CheckPendingRestore reports whether a staged restore is waiting to be executed
func (s *RestoreService) CheckPendingRestore() (bool, error) {
	if _, err := os.Stat(s.manifestPath()); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check restore manifest: %w", err)
	}
	return true, nil
}

// ExecuteStagedRestore swaps staged database files into place. Must run
// before any database connection is opened. The replaced files are kept
// with a .pre-restore suffix until the next restore.
func (s *RestoreService) ExecuteStagedRestore() error {
	manifestData, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return fmt.Errorf("failed to read restore manifest: %w", err)
	}

	var manifest RestoreManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return fmt.Errorf("failed to parse restore manifest: %w", err)
	}

	s.log.Info().
		Str("archive", manifest.Archive).
		Time("staged_at", manifest.StagedAt).
		Msg("Executing staged restore")

	stagingDir := s.stagingDir()

	for _, db := range manifest.Databases {
		stagedPath := filepath.Join(stagingDir, db.Filename)

		checksum, err := checksumFile(stagedPath)
		if err != nil {
			return fmt.Errorf("failed to checksum staged %s: %w", db.Name, err)
		}
		if checksum != db.Checksum {
			return fmt.Errorf("staged %s corrupted: expected %s, got %s", db.Name, db.Checksum, checksum)
		}
	}

	for _, db := range manifest.Databases {
		stagedPath := filepath.Join(stagingDir, db.Filename)
		livePath := filepath.Join(s.dataDir, db.Filename)

		if _, err := os.Stat(livePath); err == nil {
			asidePath := livePath + ".pre-restore"
			os.Remove(asidePath)
			if err := os.Rename(livePath, asidePath); err != nil {
				return fmt.Errorf("failed to set aside %s: %w", db.Name, err)
			}
		}

		// Stale WAL sidecars would shadow the restored file
		os.Remove(livePath + "-wal")
		os.Remove(livePath + "-shm")

		if err := os.Rename(stagedPath, livePath); err != nil {
			return fmt.Errorf("failed to install %s: %w", db.Name, err)
		}

		s.log.Info().Str("database", db.Name).Msg("Database restored")
	}

	if err := os.Remove(s.manifestPath()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove restore manifest")
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove staging directory")
	}

	s.log.Info().Str("archive", manifest.Archive).Msg("Staged restore completed")
	return nil
}

// CancelPendingRestore discards a staged restore without applying it
func (s *RestoreService) CancelPendingRestore() error {
	pending, err := s.CheckPendingRestore()
	if err != nil {
		return err
	}
	if !pending {
		return fmt.Errorf("no restore pending")
	}

	if err := os.Remove(s.manifestPath()); err != nil {
		return fmt.Errorf("failed to remove restore manifest: %w", err)
	}
	if err := os.RemoveAll(s.stagingDir()); err != nil {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}

	s.log.Info().Msg("Pending restore cancelled")
	return nil
}

// readMetadata reads backup metadata from a JSON file
func readMetadata(path string) (*BackupMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var metadata BackupMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// extractArchive extracts a tar.gz archive into the destination directory
func extractArchive(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(header.Name)
		if name == "." || name == ".." || strings.Contains(header.Name, "..") {
			return fmt.Errorf("unsafe path in archive: %s", header.Name)
		}

		destPath := filepath.Join(destDir, name)
		destFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}

		if _, err := io.Copy(destFile, tarReader); err != nil {
			destFile.Close()
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
		destFile.Close()
	}

	return nil
}
