package web

import (
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

// Image resolves one media value. fallback labels assets without alt text.
func Image(m *cms.MediaResolver, media any, fallback string) *models.Image {
	u, ok := m.URL(media)
	if !ok {
		return nil
	}
	return &models.Image{URL: u, Alt: cms.LabelOr(media, fallback)}
}

// Images resolves a to-many media relation, dropping duplicates and any
// asset whose URL equals exclude.
func Images(m *cms.MediaResolver, media any, fallback, exclude string) []models.Image {
	rows := cms.Many(media)
	seen := make(map[string]struct{}, len(rows))
	out := make([]models.Image, 0, len(rows))
	for _, r := range rows {
		u, ok := m.URL(r)
		if !ok || u == exclude {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, models.Image{URL: u, Alt: cms.LabelOr(r, fallback)})
	}
	return out
}

// RefOf turns a to-one relation into an id/name pair.
func RefOf(v any, nameKey string) *models.Ref {
	row := cms.One(v)
	if row == nil {
		return nil
	}
	return &models.Ref{ID: row.ID(), Name: row.String(nameKey)}
}
