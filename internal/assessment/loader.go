package assessment

import (
	"context"

	"github.com/lethanbinh/apsas-export-service/internal/grouping"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/rs/zerolog"
)

// Snapshot is everything the grouping engine needs, fetched in one pass.
type Snapshot struct {
	Groups      []model.GradingGroup
	Submissions []model.Submission
	Lookups     grouping.Lookups
}

// Loader pulls the full reference dataset from the assessment service.
type Loader struct {
	client *Client
	log    zerolog.Logger
}

func NewLoader(client *Client) *Loader {
	return &Loader{
		client: client,
		log:    logger.Get(),
	}
}

func (l *Loader) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	groups, err := l.client.ListGradingGroups(ctx)
	if err != nil {
		return nil, err
	}

	submissions, err := l.client.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}

	templates, err := l.client.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	courseElements, err := l.client.ListCourseElements(ctx)
	if err != nil {
		return nil, err
	}

	semesterCourses, err := l.client.ListSemesterCourses(ctx)
	if err != nil {
		return nil, err
	}

	semesters, err := l.client.ListSemesters(ctx)
	if err != nil {
		return nil, err
	}

	courses, err := l.client.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	l.log.Debug().
		Int("groups", len(groups)).
		Int("submissions", len(submissions)).
		Int("templates", len(templates)).
		Msg("Assessment snapshot loaded")

	return &Snapshot{
		Groups:      groups,
		Submissions: submissions,
		Lookups:     grouping.NewLookups(templates, courseElements, semesterCourses, semesters, courses),
	}, nil
}
