package main

import (
	"context"
)

type LayerFiles struct {
	Name    string   `json:"name"`
	Allowed []string `json:"allowed"`
	Files   []string `json:"files"`
	Imports []string `json:"imports"`
}

type LayerListing struct {
	Layers       []LayerFiles `json:"layers"`
	Unclassified []string     `json:"unclassified"`
}

func (l *linter) listLayers(ctx context.Context, dir string) (*LayerListing, error) {
	policy, files, err := l.scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	listing := &LayerListing{
		Layers:       []LayerFiles{},
		Unclassified: []string{},
	}

	byName := make(map[string]*LayerFiles)
	for _, layer := range policy.Layers() {
		listing.Layers = append(listing.Layers, LayerFiles{
			Name:    string(layer),
			Allowed: layerNames(policy.Allowed(layer)),
			Files:   []string{},
			Imports: []string{},
		})
	}
	for i := range listing.Layers {
		byName[listing.Layers[i].Name] = &listing.Layers[i]
	}

	for _, f := range files {
		if !f.Classified {
			listing.Unclassified = append(listing.Unclassified, f.File)
			continue
		}

		layer := byName[string(f.Layer)]
		layer.Files = append(layer.Files, f.File)

		// Collect unique imported modules
		for _, imp := range f.Imports {
			if !contains(layer.Imports, imp.Module) {
				layer.Imports = append(layer.Imports, imp.Module)
			}
		}
	}

	return listing, nil
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
