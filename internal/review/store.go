package review

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vignette/internal/services"
)

// Store supplies asset descriptors and their comments to the pipeline as plain
// data. Implementations must not leak live database handles across the
// boundary.
type Store interface {
	Asset(ctx context.Context, assetID string) (*AssetRef, error)
	ProjectAssets(ctx context.Context, projectID string) ([]AssetRef, error)
	AssetComments(ctx context.Context, assetID string) ([]CommentEvent, error)
}

type assetDescriptor struct {
	Asset    AssetRef       `json:"asset"`
	Comments []CommentEvent `json:"comments"`
}

// DirStore reads asset descriptors from a directory of JSON files, one file
// per asset (<assetID>.json with {asset, comments[]}). Missing fields default
// rather than error.
type DirStore struct {
	dir string
}

// NewDirStore builds a Store backed by dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

func (s *DirStore) load(assetID string) (*assetDescriptor, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" || strings.ContainsAny(assetID, "/\\") {
		return nil, services.Wrap(services.ErrValidation, "review", "load", fmt.Sprintf("invalid asset id %q", assetID), nil)
	}
	path := filepath.Join(s.dir, assetID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "review", "load", assetID, err)
		}
		return nil, services.Wrap(services.ErrTransient, "review", "load", assetID, err)
	}

	var desc assetDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "review", "parse", assetID, err)
	}
	if desc.Asset.ID == "" {
		desc.Asset.ID = assetID
	}
	desc.Asset.Kind = ParseAssetKind(string(desc.Asset.Kind))
	for i := range desc.Comments {
		if desc.Comments[i].AssetID == "" {
			desc.Comments[i].AssetID = desc.Asset.ID
		}
		if desc.Comments[i].ProjectID == "" {
			desc.Comments[i].ProjectID = desc.Asset.ProjectID
		}
	}
	return &desc, nil
}

// Asset returns the descriptor header for assetID.
func (s *DirStore) Asset(_ context.Context, assetID string) (*AssetRef, error) {
	desc, err := s.load(assetID)
	if err != nil {
		return nil, err
	}
	asset := desc.Asset
	return &asset, nil
}

// ProjectAssets scans the descriptor directory for assets owned by projectID.
func (s *DirStore) ProjectAssets(_ context.Context, projectID string) ([]AssetRef, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "review", "scan", s.dir, err)
	}

	var assets []AssetRef
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		desc, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if desc.Asset.ProjectID == projectID {
			assets = append(assets, desc.Asset)
		}
	}
	return assets, nil
}

// AssetComments returns the comments recorded for assetID.
func (s *DirStore) AssetComments(_ context.Context, assetID string) ([]CommentEvent, error) {
	desc, err := s.load(assetID)
	if err != nil {
		return nil, err
	}
	return desc.Comments, nil
}
