package store

import "time"

type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	DisplayName           string
	UserType              string
	Role                  string
	Bio                   string
	Location              string
	Phone                 string
	AvatarURL             string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	OnboardingCompleted   bool
	GuidanceDismissed     bool
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Listing struct {
	ID                string
	OwnerID           string
	Title             string
	Pitch             string
	Category          string
	Location          string
	MinInvestment     int64
	MaxInvestment     int64
	ExpectedReturnPct float64
	ImageURLs         []string
	Status            string
	ReviewNote        string
	ReviewedBy        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// Joined fields for API responses
	OwnerName      string
	OwnerAvatarURL string
	InterestCount  int
	CommentCount   int
}

type ListingComment struct {
	ID         string
	ListingID  string
	AuthorID   string
	Body       string
	CreatedAt  time.Time
	AuthorName string
}

type Post struct {
	ID        string
	AuthorID  string
	Body      string
	ImageURL  string
	CreatedAt time.Time
	// Joined fields for API responses
	AuthorName      string
	AuthorAvatarURL string
	LikeCount       int
	CommentCount    int
	LikedByViewer   bool
}

type PostComment struct {
	ID         string
	PostID     string
	AuthorID   string
	Body       string
	CreatedAt  time.Time
	AuthorName string
}

type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Body        string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// Conversation summarizes a message thread with one peer.
type Conversation struct {
	PeerID        string
	PeerName      string
	PeerAvatarURL string
	LastBody      string
	LastSenderID  string
	LastAt        time.Time
	UnreadCount   int
}

type Interest struct {
	ID         string
	ListingID  string
	InvestorID string
	Note       string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Joined fields for API responses
	InvestorName string
	ListingTitle string
	OwnerID      string
}

type Rating struct {
	ID        string
	RaterID   string
	RatedID   string
	Score     int
	Comment   string
	CreatedAt time.Time
	RaterName string
}

// RatingSummary aggregates the ratings received by a user.
type RatingSummary struct {
	Average float64
	Count   int
}

type Report struct {
	ID             string
	ReporterID     string
	TargetType     string
	TargetID       string
	Reason         string
	Details        string
	Status         string
	ResolvedBy     string
	ResolutionNote string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	ReporterName   string
}

// AdminStats is the dashboard snapshot returned to moderators.
type AdminStats struct {
	TotalUsers      int
	TotalListings   int
	PendingListings int
	OpenReports     int
	TotalMessages   int
}
