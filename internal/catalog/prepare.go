package catalog

import (
	"fmt"
	"strings"

	"github.com/iliyamo/screening-license/internal/model"
)

// Prepare checks imported catalog entries and fills the normalized title
// the prefix search runs against.  Entries without a media type are
// treated as downloadable titles.
func Prepare(titles []model.CatalogTitle) ([]model.CatalogTitle, error) {
	out := make([]model.CatalogTitle, 0, len(titles))
	seen := make(map[string]bool, len(titles))
	for i, t := range titles {
		t.ID = strings.TrimSpace(t.ID)
		t.Title = strings.TrimSpace(t.Title)
		if t.ID == "" || t.Title == "" {
			return nil, fmt.Errorf("entry %d: id and title are required", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if t.MediaType == "" {
			t.MediaType = model.MediaDigitalDownload
		}
		t.TitleNorm = Normalize(t.Title)
		out = append(out, t)
	}
	return out, nil
}
