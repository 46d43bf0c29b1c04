package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound indicates no video file exists for the item.
	ErrNotFound = errors.New("no video file found")
	// ErrAmbiguous indicates more than one candidate video file exists.
	ErrAmbiguous = errors.New("multiple video files found")
)

var videoExtensions = map[string]struct{}{
	".mkv": {},
	".mp4": {},
	".avi": {},
}

// Item is a located media file together with the identity used to find it.
type Item struct {
	Path  string
	Title string
	Year  int
}

// FullTitle returns the "Title (Year)" display form.
func (i Item) FullTitle() string {
	return fmt.Sprintf("%s (%d)", i.Title, i.Year)
}

// FolderTitle returns the display title in the directory naming
// convention, with colons rewritten to " -".
func (i Item) FolderTitle() string {
	return strings.ReplaceAll(i.FullTitle(), ":", " -")
}

// Locate resolves the single video file for the named item under the
// given media roots. Roots are searched in order; the first root whose
// item directory contains candidates wins.
func Locate(roots []string, title string, year int) (Item, error) {
	item := Item{Title: title, Year: year}
	if strings.TrimSpace(title) == "" {
		return Item{}, fmt.Errorf("%w: empty item name", ErrNotFound)
	}

	// The directory convention strips colons differently from the file
	// convention: " -" in directory names, removed entirely in filenames.
	filePrefix := strings.ReplaceAll(title, ":", "")

	for _, root := range roots {
		dir := filepath.Join(root, item.FolderTitle())
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Item{}, fmt.Errorf("read item directory %q: %w", dir, err)
		}

		var candidates []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if _, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
				continue
			}
			if !strings.HasPrefix(name, filePrefix) {
				continue
			}
			candidates = append(candidates, filepath.Join(dir, name))
		}

		if len(candidates) == 0 {
			continue
		}
		if len(candidates) > 1 {
			return Item{}, fmt.Errorf("%w for %q in %q", ErrAmbiguous, item.FullTitle(), dir)
		}

		path, err := filepath.Abs(candidates[0])
		if err != nil {
			return Item{}, fmt.Errorf("resolve item path: %w", err)
		}
		item.Path = path
		return item, nil
	}

	return Item{}, fmt.Errorf("%w for %q", ErrNotFound, item.FullTitle())
}
