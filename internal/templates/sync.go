package templates

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/mindmaps/internal/storage"
)

// Result summarizes one Sync pass.
type Result struct {
	Upserted int
	Removed  int
	Failed   int
}

// Changed returns the number of template documents that were written or
// removed.
func (r Result) Changed() int { return r.Upserted + r.Removed }

// Sync brings the template library up to date with dir:
//   - new or changed files are parsed and upserted
//   - templates whose file is gone are deleted
//
// Files that cannot be read, parsed or validated are logged and skipped. A
// template whose file became invalid keeps its last good version.
func Sync(ctx context.Context, store storage.TemplateStore, dir *Dir, logger *slog.Logger) (Result, error) {
	var res Result

	sources, err := dir.List()
	if err != nil {
		return res, err
	}
	known, err := store.TemplateSources(ctx)
	if err != nil {
		return res, err
	}

	byPath := make(map[string]storage.TemplateSource, len(known))
	for _, k := range known {
		if k.Path != "" {
			byPath[k.Path] = k
		}
	}

	seen := make(map[string]string, len(sources))
	// kept holds slugs whose file is still present but unusable.
	kept := make(map[string]bool)
	keep := func(path string) {
		if k, ok := byPath[path]; ok {
			kept[k.Slug] = true
		}
	}
	for _, src := range sources {
		data, err := dir.Read(src.Name)
		if err != nil {
			logger.Warn("templates: read failed", slog.String("path", src.Name), slog.String("error", err.Error()))
			res.Failed++
			keep(src.Name)
			continue
		}
		f, err := Parse(src.Name, data)
		if err != nil {
			logger.Warn("templates: parse failed", slog.String("path", src.Name), slog.String("error", err.Error()))
			res.Failed++
			keep(src.Name)
			continue
		}
		if prev, dup := seen[f.Slug]; dup {
			logger.Warn("templates: duplicate slug",
				slog.String("slug", f.Slug),
				slog.String("path", src.Name),
				slog.String("first", prev))
			res.Failed++
			continue
		}
		seen[f.Slug] = src.Name

		if k, ok := known[f.Slug]; ok && k.Checksum == src.Checksum && k.Path == src.Name {
			continue
		}
		m, err := f.MindMap(time.Now().UTC())
		if err != nil {
			logger.Warn("templates: invalid template", slog.String("path", src.Name), slog.String("error", err.Error()))
			res.Failed++
			keep(src.Name)
			continue
		}
		rec := storage.TemplateSource{Slug: f.Slug, Path: src.Name, MindMapID: m.ID, Checksum: src.Checksum}
		if err := store.UpsertTemplate(ctx, rec, m); err != nil {
			return res, err
		}
		res.Upserted++
		logger.Debug("templates: upserted", slog.String("slug", f.Slug), slog.String("path", src.Name))
	}

	for slug, k := range known {
		if _, ok := seen[slug]; ok || kept[slug] {
			continue
		}
		if err := store.DeleteTemplate(ctx, k); err != nil {
			return res, err
		}
		res.Removed++
		logger.Debug("templates: removed", slog.String("slug", slug))
	}

	return res, nil
}
