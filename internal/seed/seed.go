package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
	"flashquiz-backend/internal/quiz"
)

//go:embed fixtures/demo.yaml
var fixturesFS embed.FS

// File is the fixture document: a default owner plus the sets to load.
type File struct {
	UserID string        `yaml:"userId"`
	Sets   []*models.Set `yaml:"sets"`
}

type setWriter interface {
	Upsert(ctx context.Context, s *models.Set) error
}

type imageChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Demo returns the embedded demo fixtures.
func Demo() (*File, error) {
	data, err := fixturesFS.ReadFile("fixtures/demo.yaml")
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a fixture document. Sets without an owner get
// the document's userId.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for _, s := range f.Sets {
		if s != nil && s.UserID == "" {
			s.UserID = f.UserID
		}
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every set can actually be studied as its own type.
func Validate(f *File) error {
	if len(f.Sets) == 0 {
		return errors.New("fixtures contain no sets")
	}
	seen := make(map[string]struct{}, len(f.Sets))
	var errs []error
	for i, s := range f.Sets {
		if s == nil {
			errs = append(errs, fmt.Errorf("set %d is empty", i))
			continue
		}
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, fmt.Errorf("set %d has no id", i))
			continue
		}
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate set id %s", s.ID))
			continue
		}
		seen[s.ID] = struct{}{}
		if s.UserID == "" {
			errs = append(errs, fmt.Errorf("set %s has no owner", s.ID))
			continue
		}

		qt, err := quiz.SourceType(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Type = qt
		if _, err := quiz.ToQuizItems(s, qt, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ImageKeys lists the storage keys referenced by s. Absolute URLs are left
// out.
func ImageKeys(s *models.Set) []string {
	var keys []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || strings.Contains(k, "://") || strings.HasPrefix(k, "data:") {
			return
		}
		keys = append(keys, k)
	}
	for _, c := range s.Cards {
		add(c.Image)
	}
	for _, q := range s.QAItems {
		add(q.Image)
	}
	for _, q := range s.Questions {
		add(q.Image)
	}
	for _, c := range s.Categories {
		add(c.Image)
	}
	return keys
}

// Apply writes every set. Missing images are logged but do not stop the
// load; images may be nil to skip the check.
func Apply(ctx context.Context, f *File, sets setWriter, images imageChecker, log *logger.Logger) (int, error) {
	if log == nil {
		log = logger.Nop()
	}
	written := 0
	for _, s := range f.Sets {
		if images != nil {
			for _, key := range ImageKeys(s) {
				ok, err := images.Exists(ctx, key)
				if err != nil {
					log.Warn("image check failed", "set_id", s.ID, "key", key, "error", err)
					continue
				}
				if !ok {
					log.Warn("image missing from bucket", "set_id", s.ID, "key", key)
				}
			}
		}
		if err := sets.Upsert(ctx, s); err != nil {
			return written, fmt.Errorf("upsert set %s: %w", s.ID, err)
		}
		written++
		log.Info("seeded set", "set_id", s.ID, "type", string(s.Type), "title", s.Title)
	}
	return written, nil
}
