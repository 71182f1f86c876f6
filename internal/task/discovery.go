package task

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"autolearn/internal/logger"
	"autolearn/pkg/models"
)

// ImageExtensions are the file types picked up by discovery.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".pdf":  true,
}

// Discover lists images under basePath/{baptism,marriage,funeral}. Record type
// directories that are missing or unreadable are skipped with a warning.
func Discover(basePath string) ([]models.ImageDescriptor, error) {
	const op = "task.Discover"
	log := logger.WithComponent("discovery")

	info, err := os.Stat(basePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrBasePathNotFound, basePath)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory: %s", op, basePath)
	}

	log.Info().Str("base_path", basePath).Msg("Searching for record images")

	var images []models.ImageDescriptor
	for _, recordType := range models.RecordTypes {
		dir := filepath.Join(basePath, string(recordType))

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Skipping record directory")
			continue
		}

		found := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if !ImageExtensions[ext] {
				continue
			}
			images = append(images, models.ImageDescriptor{
				Path:       filepath.Join(dir, entry.Name()),
				Filename:   entry.Name(),
				RecordType: recordType,
				Extension:  ext,
			})
			found++
		}

		log.Info().
			Str("record_type", string(recordType)).
			Int("images", found).
			Msg("Scanned record directory")
	}

	log.Info().Int("total", len(images)).Msg("Image discovery finished")
	return images, nil
}
