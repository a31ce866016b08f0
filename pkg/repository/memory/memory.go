// Package memory implements the listing repository on in-process maps.
// It mirrors the postgres fan-in semantics and backs the worker tests
// and benchmarks.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/assetflow/pkg/repository"
)

// FileRecord mirrors one listing_files row.
type FileRecord struct {
	ID           string
	ListingID    string
	FilePath     string
	FileType     string
	Status       string
	ErrorMessage string
	Metadata     map[string]any
	IsGenerated  bool
	SourceFileID string
}

// ListingRecord mirrors one listings row.
type ListingRecord struct {
	ID            string
	Status        string
	ThumbnailPath string
}

// Repository is an in-memory ListingRepository. A single mutex plays
// the role of the postgres row lock: fan-in checks are serialized.
type Repository struct {
	mu       sync.Mutex
	listings map[string]*ListingRecord
	files    map[string]*FileRecord

	// terminalWrites counts transitions of a file into a terminal
	// status, letting tests assert the once-per-job invariant.
	terminalWrites map[string]int
}

// New builds an empty repository.
func New() *Repository {
	return &Repository{
		listings:       make(map[string]*ListingRecord),
		files:          make(map[string]*FileRecord),
		terminalWrites: make(map[string]int),
	}
}

// AddListing seeds a listing in PENDING_VALIDATION.
func (r *Repository) AddListing(id, thumbnailPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[id] = &ListingRecord{
		ID:            id,
		Status:        repository.ListingStatusPendingValidation,
		ThumbnailPath: thumbnailPath,
	}
}

// AddFile seeds a PENDING file row.
func (r *Repository) AddFile(id, listingID, filePath, fileType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[id] = &FileRecord{
		ID:        id,
		ListingID: listingID,
		FilePath:  filePath,
		FileType:  fileType,
		Status:    repository.FileStatusPending,
	}
}

// File returns a copy of a file row.
func (r *Repository) File(id string) (FileRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return FileRecord{}, false
	}
	return *f, true
}

// Listing returns a copy of a listing row.
func (r *Repository) Listing(id string) (ListingRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return ListingRecord{}, false
	}
	return *l, true
}

// FilesForListing returns copies of every file row of a listing,
// generated rows included.
func (r *Repository) FilesForListing(listingID string) []FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FileRecord
	for _, f := range r.files {
		if f.ListingID == listingID {
			out = append(out, *f)
		}
	}
	return out
}

// TerminalWrites returns how many times a file reached a terminal
// status.
func (r *Repository) TerminalWrites(fileID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminalWrites[fileID]
}

func (r *Repository) CompleteFileValidation(ctx context.Context, p repository.CompleteParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[p.ListingID]
	if !ok {
		return false, fmt.Errorf("listing %s not found", p.ListingID)
	}
	file, ok := r.files[p.FileID]
	if !ok {
		return false, fmt.Errorf("file %s not found", p.FileID)
	}

	for _, key := range p.GeneratedKeys {
		id := uuid.NewString()
		r.files[id] = &FileRecord{
			ID:           id,
			ListingID:    p.ListingID,
			FilePath:     key,
			FileType:     "image",
			Status:       repository.FileStatusValid,
			IsGenerated:  true,
			SourceFileID: p.FileID,
		}
	}

	if p.NewFileKey != "" {
		if listing.ThumbnailPath == file.FilePath {
			listing.ThumbnailPath = p.NewFileKey
		}
		file.FilePath = p.NewFileKey
	}
	r.setStatus(file, repository.FileStatusValid)
	file.ErrorMessage = p.FileWarning
	if len(p.Metadata) > 0 {
		if file.Metadata == nil {
			file.Metadata = make(map[string]any, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			file.Metadata[k] = v
		}
	}

	pending, rejected := 0, 0
	for _, f := range r.files {
		if f.ListingID != p.ListingID {
			continue
		}
		switch f.Status {
		case repository.FileStatusPending:
			pending++
		case repository.FileStatusFailed, repository.FileStatusInvalid:
			rejected++
		}
	}

	if pending > 0 {
		return false, nil
	}
	if rejected > 0 {
		listing.Status = repository.ListingStatusRejected
		return false, nil
	}
	if listing.Status != repository.ListingStatusActive {
		listing.Status = repository.ListingStatusActive
		return true, nil
	}
	return false, nil
}

func (r *Repository) MarkFileInvalid(ctx context.Context, fileID, reason string) error {
	return r.markFile(fileID, repository.FileStatusInvalid, reason)
}

func (r *Repository) MarkFileFailed(ctx context.Context, fileID, reason string) error {
	return r.markFile(fileID, repository.FileStatusFailed, reason)
}

func (r *Repository) markFile(fileID, status, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	r.setStatus(f, status)
	f.ErrorMessage = reason
	return nil
}

func (r *Repository) setStatus(f *FileRecord, status string) {
	if status != repository.FileStatusPending && f.Status != status {
		r.terminalWrites[f.ID]++
	}
	f.Status = status
}
