package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/practika/backend/internal/middleware"
	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/pkg/apperrors"
)

// fakeStore enforces the claim and completion rules in memory through the same
// policy functions the repository runs inside its transactions.
type fakeStore struct {
	requests    map[uuid.UUID]*models.FeedbackRequest
	assignments map[uuid.UUID][]*models.FeedbackAssignment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests:    make(map[uuid.UUID]*models.FeedbackRequest),
		assignments: make(map[uuid.UUID][]*models.FeedbackAssignment),
	}
}

func (s *fakeStore) CreateRequest(ctx context.Context, req *models.FeedbackRequest) error {
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	s.requests[req.ID] = req
	return nil
}

func (s *fakeStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, error) {
	return s.requests[id], nil
}

func (s *fakeStore) Claim(ctx context.Context, requestID, reviewerID uuid.UUID) (*models.FeedbackAssignment, error) {
	req := s.requests[requestID]
	if req == nil {
		return nil, apperrors.NotFound("feedback request not found")
	}
	active, already := 0, false
	for _, a := range s.assignments[requestID] {
		if a.Status == models.AssignmentStatusClaimed || a.Status == models.AssignmentStatusCompleted {
			active++
		}
		if a.ReviewerID == reviewerID {
			already = true
		}
	}
	if err := ClaimCheck(req, active, already, time.Now()); err != nil {
		return nil, err
	}
	a := &models.FeedbackAssignment{
		ID:         uuid.New(),
		RequestID:  requestID,
		ReviewerID: reviewerID,
		Status:     models.AssignmentStatusClaimed,
		ClaimedAt:  time.Now(),
	}
	s.assignments[requestID] = append(s.assignments[requestID], a)
	return a, nil
}

func (s *fakeStore) Complete(ctx context.Context, requestID, reviewerID uuid.UUID, commentText, videoReplyKey string) (*models.FeedbackAssignment, *models.FeedbackRequest, error) {
	req := s.requests[requestID]
	if req == nil {
		return nil, nil, apperrors.NotFound("feedback request not found")
	}
	if req.Status != models.RequestStatusOpen {
		return nil, nil, apperrors.Conflict("feedback request is %s", req.Status)
	}
	var mine *models.FeedbackAssignment
	completed, videoDone := 0, 0
	for _, a := range s.assignments[requestID] {
		if a.ReviewerID == reviewerID {
			mine = a
		}
		if a.Status == models.AssignmentStatusCompleted {
			completed++
			if a.IsVideoReview {
				videoDone++
			}
		}
	}
	if mine == nil {
		return nil, nil, apperrors.NotFound("no claim found for this reviewer")
	}
	if mine.Status != models.AssignmentStatusClaimed {
		return nil, nil, apperrors.Conflict("assignment is %s", mine.Status)
	}
	if videoReplyKey == "" && VideoReplyRequired(req.VideoRequiredCount, videoDone) {
		return nil, nil, apperrors.Validation("video reply required")
	}
	now := time.Now()
	mine.Status = models.AssignmentStatusCompleted
	mine.CommentText = commentText
	mine.VideoReplyKey = videoReplyKey
	mine.IsVideoReview = videoReplyKey != ""
	mine.CompletedAt = &now
	completed++
	if mine.IsVideoReview {
		videoDone++
	}
	if RequestFulfilled(completed, videoDone, req.RequiredReviews, req.VideoRequiredCount) {
		req.Status = models.RequestStatusFulfilled
		req.ResolvedAt = &now
	}
	return mine, req, nil
}

func (s *fakeStore) Cancel(ctx context.Context, requestID, requesterID uuid.UUID) error {
	return nil
}

func (s *fakeStore) Release(ctx context.Context, requestID, reviewerID uuid.UUID) error {
	return nil
}

func (s *fakeStore) SweepSpace(ctx context.Context, spaceID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *fakeStore) ListOpenBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.FeedbackRequest, error) {
	var out []models.FeedbackRequest
	for _, r := range s.requests {
		if r.SpaceID == spaceID && r.Status == models.RequestStatusOpen {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAssignments(ctx context.Context, requestID uuid.UUID) ([]models.FeedbackAssignment, error) {
	var out []models.FeedbackAssignment
	for _, a := range s.assignments[requestID] {
		out = append(out, *a)
	}
	return out, nil
}

type fakeSessions struct {
	sessions map[uuid.UUID]*models.Session
}

func (s *fakeSessions) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.sessions[id], nil
}

type fakeAccess struct {
	members map[uuid.UUID]map[uuid.UUID]bool // space -> user
}

func (f *fakeAccess) CanAccess(ctx context.Context, userID, spaceID uuid.UUID) bool {
	return f.members[spaceID][userID]
}

func (f *fakeAccess) IsMember(ctx context.Context, userID, spaceID uuid.UUID) bool {
	return f.members[spaceID][userID]
}

type fakeReplies struct {
	uploaded []string
	deleted  []string
}

func (f *fakeReplies) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, _ = io.Copy(io.Discard, body)
	f.uploaded = append(f.uploaded, key)
	return nil
}

func (f *fakeReplies) DeleteObject(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fixture struct {
	handler  *Handler
	store    *fakeStore
	sessions *fakeSessions
	access   *fakeAccess
	replies  *fakeReplies

	spaceID   uuid.UUID
	owner     uuid.UUID
	reviewer  uuid.UUID
	sessionID uuid.UUID
}

// newFixture builds a space with an owner and one other member, and a session
// owned by the owner shared into the space.
func newFixture() *fixture {
	f := &fixture{
		store:    newFakeStore(),
		sessions: &fakeSessions{sessions: make(map[uuid.UUID]*models.Session)},
		access:   &fakeAccess{members: make(map[uuid.UUID]map[uuid.UUID]bool)},
		replies:  &fakeReplies{},
		spaceID:  uuid.New(),
		owner:    uuid.New(),
		reviewer: uuid.New(),
	}
	f.access.members[f.spaceID] = map[uuid.UUID]bool{f.owner: true, f.reviewer: true}
	session := &models.Session{ID: uuid.New(), OwnerID: f.owner, SpaceID: &f.spaceID, Title: "spin combo"}
	f.sessions.sessions[session.ID] = session
	f.sessionID = session.ID
	f.handler = NewHandler(f.store, f.sessions, f.access, f.replies, nil, DefaultSLAHours, nil)
	return f
}

// seedRequest persists an open request against the fixture session.
func (f *fixture) seedRequest(requiredReviews, videoRequiredCount int) *models.FeedbackRequest {
	req := &models.FeedbackRequest{
		SessionID:          f.sessionID,
		SpaceID:            f.spaceID,
		RequestedBy:        f.owner,
		SLAHours:           DefaultSLAHours,
		DueAt:              time.Now().Add(DefaultSLAHours * time.Hour),
		RequiredReviews:    requiredReviews,
		VideoRequiredCount: videoRequiredCount,
		Status:             models.RequestStatusOpen,
	}
	_ = f.store.CreateRequest(context.Background(), req)
	return req
}

func run(t *testing.T, userID uuid.UUID, pathID uuid.UUID, body *bytes.Buffer, contentType string, fn gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body == nil {
		body = &bytes.Buffer{}
	}
	c.Request = httptest.NewRequest(http.MethodPost, "/", body)
	if contentType != "" {
		c.Request.Header.Set("Content-Type", contentType)
	}
	c.Params = gin.Params{{Key: "id", Value: pathID.String()}}
	c.Set(middleware.ContextUserID, userID)
	fn(c)
	return w
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(raw)
}

func formBody(t *testing.T, comment string, videoType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("comment", comment); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if videoType != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="video_reply"; filename="reply.mp4"`)
		header.Set("Content-Type", videoType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte("fake video bytes")); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreateByOutsiderConcealed(t *testing.T) {
	f := newFixture()
	outsider := uuid.New()

	w := run(t, outsider, f.sessionID, jsonBody(t, gin.H{"focus_prompt": "check my frame"}), "application/json", f.handler.Create)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (existence concealed, not 403)", w.Code)
	}
	if len(f.store.requests) != 0 {
		t.Errorf("request persisted for outsider")
	}
}

func TestCreateByMember(t *testing.T) {
	f := newFixture()

	w := run(t, f.owner, f.sessionID, jsonBody(t, gin.H{"focus_prompt": "check my frame", "required_reviews": 2}), "application/json", f.handler.Create)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if len(f.store.requests) != 1 {
		t.Fatalf("requests stored = %d, want 1", len(f.store.requests))
	}
	for _, req := range f.store.requests {
		if req.Status != models.RequestStatusOpen {
			t.Errorf("status = %s, want open", req.Status)
		}
		if !req.DueAt.After(time.Now()) {
			t.Error("due_at not in the future")
		}
	}
}

func TestClaimDuplicateConflict(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(2, 0)
	if _, err := f.store.Claim(context.Background(), req.ID, f.reviewer); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	w := run(t, f.reviewer, req.ID, nil, "", f.handler.Claim)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if got := len(f.store.assignments[req.ID]); got != 1 {
		t.Errorf("assignment count = %d after duplicate claim, want 1", got)
	}
}

func TestClaimLastSlotConflict(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(1, 0)
	first := uuid.New()
	f.access.members[f.spaceID][first] = true
	if _, err := f.store.Claim(context.Background(), req.ID, first); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	w := run(t, f.reviewer, req.ID, nil, "", f.handler.Claim)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if got := len(f.store.assignments[req.ID]); got != 1 {
		t.Errorf("assignment count = %d, want 1", got)
	}
}

func TestClaimSelfReviewForbidden(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(1, 0)

	w := run(t, f.owner, req.ID, nil, "", f.handler.Claim)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if len(f.store.assignments[req.ID]) != 0 {
		t.Error("self-review claim persisted")
	}
}

func TestCompleteTextOnlyRejectedWhileQuotaUnmet(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(1, 1)
	if _, err := f.store.Claim(context.Background(), req.ID, f.reviewer); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	body, ct := formBody(t, "nice lines", "")
	w := run(t, f.reviewer, req.ID, body, ct, f.handler.Complete)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	a := f.store.assignments[req.ID][0]
	if a.Status != models.AssignmentStatusClaimed {
		t.Errorf("assignment status = %s after refused completion, want claimed", a.Status)
	}
	if f.store.requests[req.ID].Status != models.RequestStatusOpen {
		t.Errorf("request status = %s, want open", f.store.requests[req.ID].Status)
	}
}

func TestCompleteWithVideoFulfills(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(1, 1)
	if _, err := f.store.Claim(context.Background(), req.ID, f.reviewer); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	body, ct := formBody(t, "great control", "video/mp4")
	w := run(t, f.reviewer, req.ID, body, ct, f.handler.Complete)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if f.store.requests[req.ID].Status != models.RequestStatusFulfilled {
		t.Errorf("request status = %s, want fulfilled", f.store.requests[req.ID].Status)
	}
	a := f.store.assignments[req.ID][0]
	if !a.IsVideoReview || a.Status != models.AssignmentStatusCompleted {
		t.Errorf("assignment = %s/video=%v, want completed video review", a.Status, a.IsVideoReview)
	}
	if len(f.replies.uploaded) != 1 {
		t.Errorf("video replies uploaded = %d, want 1", len(f.replies.uploaded))
	}
}

func TestCompleteTextOnlyAllowedAfterQuotaMet(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(2, 1)
	other := uuid.New()
	f.access.members[f.spaceID][other] = true
	for _, reviewer := range []uuid.UUID{other, f.reviewer} {
		if _, err := f.store.Claim(context.Background(), req.ID, reviewer); err != nil {
			t.Fatalf("seed claim: %v", err)
		}
	}
	if _, _, err := f.store.Complete(context.Background(), req.ID, other, "solid", "replies/x.mp4"); err != nil {
		t.Fatalf("seed video completion: %v", err)
	}

	body, ct := formBody(t, "agreed", "")
	w := run(t, f.reviewer, req.ID, body, ct, f.handler.Complete)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (quota already met): %s", w.Code, w.Body.String())
	}
	if f.store.requests[req.ID].Status != models.RequestStatusFulfilled {
		t.Errorf("request status = %s, want fulfilled after both reviews", f.store.requests[req.ID].Status)
	}
}
