package jobs

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podstream/internal/config"
	"podstream/internal/pkg/geoip"
)

const (
	// GeoLite databases are refreshed weekly by MaxMind
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	// MaxMind download URL template for the country edition
	MaxMindDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-Country&license_key=%s&suffix=tar.gz"
)

// GeoLiteUpdaterJob keeps the on-disk GeoLite database current so country
// enrichment of demographic events stays accurate.
type GeoLiteUpdaterJob struct {
	logger *slog.Logger
	cfg    *config.Config
}

// NewGeoLiteUpdaterJob creates a new GeoLite updater job
func NewGeoLiteUpdaterJob(logger *slog.Logger, cfg *config.Config) *GeoLiteUpdaterJob {
	return &GeoLiteUpdaterJob{
		logger: logger,
		cfg:    cfg,
	}
}

// Run executes the GeoLite update job
func (j *GeoLiteUpdaterJob) Run() error {
	if j.cfg.MaxMindLicenseKey == "" {
		j.logger.Debug("MaxMind license key not configured, skipping GeoLite update")
		return nil
	}

	lastUpdate := j.lastUpdateTime()
	if time.Since(lastUpdate) < GeoLiteUpdateInterval {
		j.logger.Debug("GeoLite database is up to date",
			slog.Time("last_update", lastUpdate),
			slog.Duration("age", time.Since(lastUpdate)))
		return nil
	}

	j.logger.Info("Starting GeoLite database update",
		slog.Time("last_update", lastUpdate))

	if err := j.downloadAndUpdate(j.cfg.MaxMindLicenseKey); err != nil {
		j.logger.Error("Failed to update GeoLite database", slog.Any("error", err))
		return err
	}

	// Reload the in-memory reader so new events pick up the fresh data
	geoip.ReloadGeoDB()

	j.logger.Info("GeoLite database updated successfully")
	return nil
}

// lastUpdateTime reports when the database file was last written. A zero
// time means it has never been downloaded.
func (j *GeoLiteUpdaterJob) lastUpdateTime() time.Time {
	info, err := os.Stat(j.geoDBPath())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (j *GeoLiteUpdaterJob) geoDBPath() string {
	if j.cfg.GeoDBPath != "" {
		return j.cfg.GeoDBPath
	}
	return filepath.Join("storage", "GeoLite2-Country.mmdb")
}

// downloadAndUpdate downloads and extracts the GeoLite database
func (j *GeoLiteUpdaterJob) downloadAndUpdate(licenseKey string) error {
	geoDBPath := j.geoDBPath()

	if err := os.MkdirAll(filepath.Dir(geoDBPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	downloadURL := fmt.Sprintf(MaxMindDownloadURL, licenseKey)
	resp, err := http.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "geolite-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}

	if _, err := tempFile.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	if err := j.extractMMDB(tempFile, geoDBPath); err != nil {
		return fmt.Errorf("failed to extract database: %w", err)
	}

	return nil
}

// extractMMDB extracts the .mmdb file from the tar.gz archive
func (j *GeoLiteUpdaterJob) extractMMDB(tarGzFile *os.File, destPath string) error {
	gzr, err := gzip.NewReader(tarGzFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		if strings.HasSuffix(header.Name, ".mmdb") {
			outFile, err := os.Create(destPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer outFile.Close()

			if _, err := io.Copy(outFile, tr); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}

			return nil
		}
	}

	return fmt.Errorf("no .mmdb file found in archive")
}
