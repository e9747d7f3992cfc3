package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"investlocal/api/internal/auth"
	"investlocal/api/internal/authpw"
	"investlocal/api/internal/config"
	"investlocal/api/internal/email"
	"investlocal/api/internal/media"
	"investlocal/api/internal/rbac"
	"investlocal/api/internal/realtime"
	"investlocal/api/internal/search"
	"investlocal/api/internal/store"
	"investlocal/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	UserType     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type UpdateProfileInput struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	Phone       string `json:"phone"`
	AvatarURL   string `json:"avatarUrl"`
}

// dataStore is the persistence surface the service depends on.
type dataStore interface {
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	UpdateUserProfile(ctx context.Context, userID, displayName, bio, location, phone, avatarURL string) error
	SetOnboardingCompleted(context.Context, string) error
	SetGuidanceDismissed(context.Context, string) error
	UpdateUserVerificationToken(context.Context, string, string, time.Time) error
	VerifyUserEmail(context.Context, string) error
	UpdateUserPassword(context.Context, string, string) error
	CreatePasswordReset(context.Context, string, string, time.Time) error
	GetPasswordReset(context.Context, string) (string, error)
	MarkPasswordResetUsed(context.Context, string) error

	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertListing(context.Context, store.Listing) error
	GetListing(context.Context, string) (store.Listing, error)
	ListListings(context.Context, store.ListingFilter) ([]store.Listing, error)
	UpdateListing(context.Context, store.Listing) error
	UpdateListingReview(ctx context.Context, listingID, status, note, reviewedBy string) error
	DeleteListing(context.Context, string) error
	InsertListingComment(context.Context, store.ListingComment) error
	ListListingComments(context.Context, string) ([]store.ListingComment, error)

	InsertInterest(context.Context, store.Interest) error
	GetInterest(context.Context, string) (store.Interest, error)
	ListInterestsByListing(context.Context, string) ([]store.Interest, error)
	ListInterestsByInvestor(context.Context, string) ([]store.Interest, error)
	UpdateInterestStatus(ctx context.Context, interestID, status string) error

	InsertPost(context.Context, store.Post) error
	ListPosts(ctx context.Context, viewerID string, limit, offset int) ([]store.Post, error)
	GetPost(ctx context.Context, viewerID, postID string) (store.Post, error)
	DeletePost(context.Context, string) error
	TogglePostLike(ctx context.Context, postID, userID string) (bool, int, error)
	InsertPostComment(context.Context, store.PostComment) error
	ListPostComments(context.Context, string) ([]store.PostComment, error)

	InsertMessage(context.Context, store.Message) error
	ListThread(ctx context.Context, userID, peerID string, limit int) ([]store.Message, error)
	MarkThreadRead(ctx context.Context, userID, peerID string) error
	UnreadMessageCount(context.Context, string) (int, error)
	ListConversations(context.Context, string) ([]store.Conversation, error)

	UpsertRating(context.Context, store.Rating) error
	ListRatingsForUser(context.Context, string) ([]store.Rating, error)
	GetRatingSummary(context.Context, string) (store.RatingSummary, error)
	InsertReport(context.Context, store.Report) error

	ListReports(ctx context.Context, status string, limit int) ([]store.Report, error)
	GetReport(context.Context, string) (store.Report, error)
	ResolveReport(ctx context.Context, reportID, status, note, resolvedBy string) error
	ListUsers(ctx context.Context, limit, offset int) ([]store.User, error)
	SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error
	AdminStats(context.Context) (store.AdminStats, error)

	Ping(ctx context.Context) error
}

// refreshSessionStore holds refresh tokens. Backed by Redis when
// configured, otherwise by the refresh_sessions table in Postgres.
type refreshSessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshSessionStore
	auth     *authpw.Service
	search   *search.Service
	media    *media.Service
	email    *email.Service
	hub      *realtime.Hub
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, mediaService *media.Service, emailService *email.Service, hub *realtime.Hub) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		auth:     authpw.NewService(dataStore),
		search:   searchService,
		media:    mediaService,
		email:    emailService,
		hub:      hub,
	}
}

// NewWithSessionStore keeps refresh tokens in an external store (Redis)
// instead of Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions refreshSessionStore, searchService *search.Service, mediaService *media.Service, emailService *email.Service, hub *realtime.Hub) *Service {
	svc := New(cfg, dataStore, searchService, mediaService, emailService, hub)
	svc.sessions = sessions
	return svc
}

// AuthPasswordService exposes the email/password auth flows to the HTTP layer.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.auth
}

// SMTPConfigured reports whether outbound email is available. When it is
// not, auth handlers fall back to returning tokens directly (dev bypass).
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// MediaService returns the upload service, or nil when object storage is
// not configured.
func (s *Service) MediaService() *media.Service {
	return s.media
}

// Hub returns the realtime event hub, or nil when realtime is disabled.
func (s *Service) Hub() *realtime.Hub {
	return s.hub
}

// NewRealtimeClient registers an upgraded WebSocket connection with the hub.
func (s *Service) NewRealtimeClient(conn *websocket.Conn, userID string) {
	if s.hub == nil {
		conn.Close()
		return
	}
	realtime.NewClient(s.hub, conn, userID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(session Session, action rbac.Action) bool {
	return rbac.Can(rbac.NormalizeRole(session.Role), rbac.NormalizeType(session.UserType), action)
}

// CreateSession issues an access/refresh pair for a verified user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, domainError(http.StatusForbidden, "ACCOUNT_DEACTIVATED", "Account is deactivated", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	sessionUser, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Re-read the user so rotated sessions pick up role/type changes and
	// deactivation takes effect immediately.
	user, err := s.store.GetUserByID(ctx, sessionUser.ID)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, domainError(http.StatusForbidden, "ACCOUNT_DEACTIVATED", "Account is deactivated", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Type: user.UserType,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		UserType:     user.UserType,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		UserType:  user.UserType,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// SendVerificationEmail delivers the signup verification link.
func (s *Service) SendVerificationEmail(to, userName, token string) error {
	if !s.SMTPConfigured() {
		return nil
	}
	url := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), token)
	return s.email.SendVerificationEmail(to, userName, url)
}

// SendPasswordResetEmail delivers the password reset link.
func (s *Service) SendPasswordResetEmail(to, userName, token string) error {
	if !s.SMTPConfigured() {
		return nil
	}
	url := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), token)
	return s.email.SendPasswordResetEmail(to, userName, url)
}

// Me returns the viewer's own profile including onboarding state.
func (s *Service) Me(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadMessageCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	payload := userPayload(user)
	payload["email"] = user.Email
	payload["onboardingCompleted"] = user.OnboardingCompleted
	payload["guidanceDismissed"] = user.GuidanceDismissed
	payload["unreadMessages"] = unread
	return payload, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (map[string]any, error) {
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName is required", nil)
	}
	if err := s.store.UpdateUserProfile(ctx, userID, displayName,
		strings.TrimSpace(input.Bio), strings.TrimSpace(input.Location),
		strings.TrimSpace(input.Phone), strings.TrimSpace(input.AvatarURL)); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

func (s *Service) CompleteOnboarding(ctx context.Context, userID string) (map[string]any, error) {
	if err := s.store.SetOnboardingCompleted(ctx, userID); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

func (s *Service) DismissGuidance(ctx context.Context, userID string) (map[string]any, error) {
	if err := s.store.SetGuidanceDismissed(ctx, userID); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

// GetUserProfile returns another user's public profile with their rating
// summary and, for entrepreneurs, their active listings.
func (s *Service) GetUserProfile(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.GetRatingSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	payload := userPayload(user)
	payload["rating"] = map[string]any{
		"average": summary.Average,
		"count":   summary.Count,
	}
	if user.UserType == string(rbac.TypeEntrepreneur) {
		listings, err := s.store.ListListings(ctx, store.ListingFilter{OwnerID: userID, Status: "ACTIVE"})
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, len(listings))
		for _, listing := range listings {
			items = append(items, listingPayload(listing))
		}
		payload["listings"] = items
	}
	return payload, nil
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"displayName": user.DisplayName,
		"userType":    user.UserType,
		"role":        user.Role,
		"bio":         user.Bio,
		"location":    user.Location,
		"avatarUrl":   user.AvatarURL,
		"deactivated": user.DeactivatedAt != nil,
		"createdAt":   user.CreatedAt.Format(time.RFC3339),
	}
}

// Search runs a full-text query over active listings and posts.
func (s *Service) Search(ctx context.Context, text, filterType, category, location string, limit, offset int) (search.Response, error) {
	resultType := search.ResultType(strings.TrimSpace(filterType))
	switch resultType {
	case "", search.ResultListing, search.ResultPost:
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be 'listing' or 'post'", nil)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:           text,
		FilterType:     resultType,
		FilterCategory: strings.TrimSpace(category),
		FilterLocation: strings.TrimSpace(location),
		Limit:          limit,
		Offset:         offset,
	}), nil
}

func (s *Service) publish(userID string, event realtime.Event) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(userID, event)
}
