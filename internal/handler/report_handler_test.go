package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalmiddleware "github.com/noah-isme/trivsel-api/internal/middleware"
	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/repository"
	"github.com/noah-isme/trivsel-api/internal/service"
	"github.com/noah-isme/trivsel-api/pkg/jobs"
)

type reportStoreStub struct {
	mu   sync.Mutex
	jobs []*models.ReportJob
	seq  int
}

func (s *reportStoreStub) Create(ctx context.Context, job *models.ReportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", s.seq)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	copied := *job
	s.jobs = append(s.jobs, &copied)
	return nil
}

func (s *reportStoreStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			copied := *job
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *reportStoreStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID != id {
			continue
		}
		if params.Status != nil {
			job.Status = *params.Status
		}
		if params.ResultURL != nil {
			job.ResultURL = params.ResultURL
		}
		if params.ErrorMessage != nil {
			job.ErrorMessage = params.ErrorMessage
		}
		if params.FinishedAt != nil {
			job.FinishedAt = params.FinishedAt
		}
		return nil
	}
	return sql.ErrNoRows
}

func (s *reportStoreStub) List(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReportJob, 0, len(s.jobs))
	for i := len(s.jobs) - 1; i >= 0; i-- {
		job := s.jobs[i]
		if createdBy != "" && job.CreatedBy != createdBy {
			continue
		}
		out = append(out, *job)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *reportStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

func (s *reportStoreStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type reportQueueStub struct {
	mu      sync.Mutex
	jobs    []jobs.Job
	enqueue error
}

func (q *reportQueueStub) Enqueue(job jobs.Job) error {
	if q.enqueue != nil {
		return q.enqueue
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type reportPairStub struct {
	pairs map[string]bool
}

func (s reportPairStub) ExistsPair(ctx context.Context, studentID, userID string) (bool, error) {
	return s.pairs[studentID+"/"+userID], nil
}

type reportHandlerFixture struct {
	router *gin.Engine
	store  *reportStoreStub
	queue  *reportQueueStub
}

func newReportHandlerFixture(t *testing.T, pairs map[string]bool) *reportHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &reportStoreStub{}
	queue := &reportQueueStub{}
	svc := service.NewReportService(store, reportPairStub{pairs: pairs}, queue, nil, zap.NewNop(), service.ReportServiceConfig{})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			c.Next()
			return
		}
		userID := c.GetHeader("X-Test-User")
		if userID == "" {
			userID = "staff-1"
		}
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.StaffRole(role)})
		c.Next()
	})

	h := NewReportHandler(svc)
	router.GET("/reports", h.List)
	router.POST("/reports", h.Create)
	router.GET("/reports/:id", h.Status)

	return &reportHandlerFixture{router: router, store: store, queue: queue}
}

func TestReportHandlerCreateStudentReport(t *testing.T) {
	fixture := newReportHandlerFixture(t, map[string]bool{"student-1/mentor-1": true})

	payload := `{"type":"student","studentId":"student-1","format":"pdf"}`
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", string(models.RoleMentor))
	req.Header.Set("X-Test-User", "mentor-1")

	resp := performRequest(fixture.router, req)
	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Contains(t, resp.Body.String(), string(models.ReportStatusQueued))

	require.Len(t, fixture.store.jobs, 1)
	job := fixture.store.jobs[0]
	require.Equal(t, models.ReportTypeStudent, job.Type)
	require.Equal(t, "mentor-1", job.CreatedBy)
	require.Len(t, fixture.queue.jobs, 1)
	require.Equal(t, job.ID, fixture.queue.jobs[0].ID)
}

func TestReportHandlerCreateUnassignedStudentForbidden(t *testing.T) {
	fixture := newReportHandlerFixture(t, map[string]bool{})

	payload := `{"type":"student","studentId":"student-1","format":"pdf"}`
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", string(models.RoleMentor))
	req.Header.Set("X-Test-User", "mentor-1")

	resp := performRequest(fixture.router, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Empty(t, fixture.store.jobs)
	require.Empty(t, fixture.queue.jobs)
}

func TestReportHandlerCreateWeeklyRequiresAnalystOrAdmin(t *testing.T) {
	fixture := newReportHandlerFixture(t, nil)

	payload := `{"type":"weekly","weekNumber":34,"year":2026,"format":"csv"}`
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", string(models.RoleMentor))

	resp := performRequest(fixture.router, req)
	require.Equal(t, http.StatusForbidden, resp.Code)

	req, _ = http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", string(models.RoleAnalyst))

	resp = performRequest(fixture.router, req)
	require.Equal(t, http.StatusAccepted, resp.Code)
}

func TestReportHandlerRequiresAuth(t *testing.T) {
	fixture := newReportHandlerFixture(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/reports", nil)
	resp := performRequest(fixture.router, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestReportHandlerListScopedToCaller(t *testing.T) {
	fixture := newReportHandlerFixture(t, nil)
	require.NoError(t, fixture.store.Create(context.Background(), &models.ReportJob{
		ID: "job-analyst", Type: models.ReportTypeWeekly, Status: models.ReportStatusFinished, CreatedBy: "analyst-1",
	}))
	require.NoError(t, fixture.store.Create(context.Background(), &models.ReportJob{
		ID: "job-admin", Type: models.ReportTypeWeekly, Status: models.ReportStatusQueued, CreatedBy: "admin-1",
	}))

	req, _ := http.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("X-Test-Role", string(models.RoleAnalyst))
	req.Header.Set("X-Test-User", "analyst-1")
	resp := performRequest(fixture.router, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "job-analyst", body.Data[0].ID)

	req, _ = http.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("X-Test-Role", string(models.RoleAdmin))
	req.Header.Set("X-Test-User", "admin-1")
	resp = performRequest(fixture.router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
}

func TestReportHandlerStatusUnknownJob(t *testing.T) {
	fixture := newReportHandlerFixture(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/reports/nope", nil)
	req.Header.Set("X-Test-Role", string(models.RoleAdmin))
	resp := performRequest(fixture.router, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
