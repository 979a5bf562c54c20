package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"

	"github.com/rs/zerolog"
)

// Client reads assessment resources from the remote service. Every listing
// endpoint is paginated with pageNumber/pageSize query params and answers
// with an {"items": [...]} envelope; pages are fetched until a short page
// ends the loop.
type Client struct {
	cfg         *config.Config
	httpClient  *http.Client
	authManager *AuthManager
	log         zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Assessment.Timeout,
		},
		authManager: NewAuthManager(cfg),
		log:         logger.Get(),
	}
}

type listEnvelope struct {
	Items json.RawMessage `json:"items"`
}

func (c *Client) listPages(ctx context.Context, path string, params url.Values, appendPage func(items json.RawMessage) (int, error)) error {
	pageSize := c.cfg.Assessment.PageSize

	for pageNumber := 1; ; pageNumber++ {
		query := url.Values{}
		for key, values := range params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		query.Set("pageNumber", strconv.Itoa(pageNumber))
		query.Set("pageSize", strconv.Itoa(pageSize))

		fullURL := c.cfg.Assessment.BaseURL + path + "?" + query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		token, err := c.authManager.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", path, err)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("server returned status %d for %s: %s", resp.StatusCode, path, string(body))
		}

		var envelope listEnvelope
		err = json.NewDecoder(resp.Body).Decode(&envelope)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		count, err := appendPage(envelope.Items)
		if err != nil {
			return fmt.Errorf("failed to decode items for %s: %w", path, err)
		}

		if count < pageSize {
			return nil
		}
	}
}

func (c *Client) ListTemplates(ctx context.Context) ([]model.AssessmentTemplate, error) {
	var all []model.AssessmentTemplate
	err := c.listPages(ctx, "/api/assessment-templates", nil, func(items json.RawMessage) (int, error) {
		var page []model.AssessmentTemplate
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) GetTemplate(ctx context.Context, templateID int64) (*model.AssessmentTemplate, error) {
	templates, err := c.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == templateID {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("assessment template %d not found", templateID)
}

func (c *Client) ListPapers(ctx context.Context, templateID int64) ([]model.Paper, error) {
	params := url.Values{}
	params.Set("assessmentTemplateId", strconv.FormatInt(templateID, 10))

	var all []model.Paper
	err := c.listPages(ctx, "/api/assessment-papers", params, func(items json.RawMessage) (int, error) {
		var page []model.Paper
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListQuestions(ctx context.Context, paperID int64) ([]model.Question, error) {
	params := url.Values{}
	params.Set("assessmentPaperId", strconv.FormatInt(paperID, 10))

	var all []model.Question
	err := c.listPages(ctx, "/api/assessment-questions", params, func(items json.RawMessage) (int, error) {
		var page []model.Question
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListRubricItems(ctx context.Context, questionID int64) ([]model.RubricItem, error) {
	params := url.Values{}
	params.Set("assessmentQuestionId", strconv.FormatInt(questionID, 10))

	var all []model.RubricItem
	err := c.listPages(ctx, "/api/rubric-items", params, func(items json.RawMessage) (int, error) {
		var page []model.RubricItem
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListTemplateFiles(ctx context.Context, templateID int64) ([]model.TemplateFile, error) {
	params := url.Values{}
	params.Set("assessmentTemplateId", strconv.FormatInt(templateID, 10))

	var all []model.TemplateFile
	err := c.listPages(ctx, "/api/template-files", params, func(items json.RawMessage) (int, error) {
		var page []model.TemplateFile
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListGradingGroups(ctx context.Context) ([]model.GradingGroup, error) {
	var all []model.GradingGroup
	err := c.listPages(ctx, "/api/grading-groups", nil, func(items json.RawMessage) (int, error) {
		var page []model.GradingGroup
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	var all []model.Submission
	err := c.listPages(ctx, "/api/submissions", nil, func(items json.RawMessage) (int, error) {
		var page []model.Submission
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	var all []model.Course
	err := c.listPages(ctx, "/api/courses", nil, func(items json.RawMessage) (int, error) {
		var page []model.Course
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListCourseElements(ctx context.Context) ([]model.CourseElement, error) {
	var all []model.CourseElement
	err := c.listPages(ctx, "/api/course-elements", nil, func(items json.RawMessage) (int, error) {
		var page []model.CourseElement
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListSemesterCourses(ctx context.Context) ([]model.SemesterCourse, error) {
	var all []model.SemesterCourse
	err := c.listPages(ctx, "/api/semester-courses", nil, func(items json.RawMessage) (int, error) {
		var page []model.SemesterCourse
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

func (c *Client) ListSemesters(ctx context.Context) ([]model.Semester, error) {
	var all []model.Semester
	err := c.listPages(ctx, "/api/semesters", nil, func(items json.RawMessage) (int, error) {
		var page []model.Semester
		if err := json.Unmarshal(items, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	return all, err
}

// DeleteGradingGroup relays a grading-group deletion to the assessment
// service.
func (c *Client) DeleteGradingGroup(ctx context.Context, groupID int64) error {
	fullURL := c.cfg.Assessment.BaseURL + "/api/grading-groups/" + strconv.FormatInt(groupID, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.authManager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete grading group: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	c.log.Info().Int64("group_id", groupID).Msg("Grading group deleted")
	return nil
}
