// Package domain defines the persistence models for the chat gateway:
// users and roles, knowledge domains and their configurations, and the
// conversation history (conversations, messages, feedback). These types are
// mapped with GORM and form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Service types distinguish the two upstream answer services.
const (
	// ServiceGeneral is the plain conversational answer service.
	ServiceGeneral = "general"
	// ServiceGrounded is the retrieval-augmented answer service bound to a
	// knowledge-base configuration.
	ServiceGrounded = "grounded"
)

// Environments a configuration can be published to.
const (
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// User represents an authenticated caller. Access to configurations is
// granted through the user's roles (many-to-many), never per user directly.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Subject: external identity the bearer token resolves to; unique.
//   - IsAdmin: administrators bypass role filtering entirely.
//   - IsActive: inactive users are rejected at the authentication boundary.
type User struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Subject     string         `json:"subject"      gorm:"type:varchar(64);not null;uniqueIndex"`
	Email       string         `json:"email"        gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(255)"`
	IsAdmin     bool           `json:"is_admin"     gorm:"not null;default:false"`
	IsActive    bool           `json:"is_active"    gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Role is a named permission group. A role is attached to users and to
// configurations; a configuration is visible to a user when the two role
// sets intersect.
type Role struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(64);not null;uniqueIndex"`
	Description string         `json:"description" gorm:"type:varchar(500)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Role.
func (Role) TableName() string { return "roles" }

// Domain is a namespace grouping configurations, typically one knowledge
// area of the grounded answer service.
type Domain struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Key         string         `json:"key"          gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(255);not null"`
	Description string         `json:"description"  gorm:"type:varchar(500)"`
	IsActive    bool           `json:"is_active"    gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Domain.
func (Domain) TableName() string { return "knowledge_domains" }

// Configuration is a named knowledge-base setting inside a domain, gated by
// role membership. A configuration whose granted role set is empty is
// visible to administrators only (deny-by-default).
//
// Environment selects the upstream endpoint used by the grounded provider.
type Configuration struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	DomainID    string         `json:"domain_id"    gorm:"type:char(36);not null;index"`
	Key         string         `json:"key"          gorm:"type:varchar(100);not null;index"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(255);not null"`
	Description string         `json:"description"  gorm:"type:varchar(500)"`
	Environment string         `json:"environment"  gorm:"type:varchar(20);not null;default:'production';index;check:environment IN ('staging','production')"`
	IsActive    bool           `json:"is_active"    gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	Domain Domain `json:"domain" gorm:"foreignKey:DomainID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Roles  []Role `json:"roles,omitempty" gorm:"many2many:role_configuration_grants"`
}

// TableName returns the database table name for Configuration.
func (Configuration) TableName() string { return "configurations" }

// Conversation is an exchange owned by exactly one user. Grounded
// conversations carry the configuration they were started against; general
// conversations never do.
type Conversation struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id"          gorm:"type:char(36);not null;index:idx_user_conversations"`
	ServiceType     string         `json:"service_type"     gorm:"type:varchar(20);not null;index;check:service_type IN ('general','grounded')"`
	ConfigurationID *string        `json:"configuration_id,omitempty" gorm:"type:char(36);index"`
	Title           string         `json:"title"            gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single utterance within a conversation, authored either by
// the user or the assistant. Assistant messages created by the grounded
// service may carry source citations; assistant messages from either service
// may carry a token-usage triple. Messages are append-only and ordered by
// creation time within their conversation.
//
// SourcesJSON holds the canonical source list encoded as JSON; the column
// stays opaque to the database (SQLite has no JSON type worth indexing here).
type Message struct {
	ID               string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID   string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	Role             string         `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content          string         `json:"content"         gorm:"type:text;not null"`
	SourcesJSON      *string        `json:"-"               gorm:"column:sources;type:text"`
	PromptTokens     *int           `json:"prompt_tokens,omitempty"`
	CompletionTokens *int           `json:"completion_tokens,omitempty"`
	TotalTokens      *int           `json:"total_tokens,omitempty"`
	CreatedAt        time.Time      `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"               gorm:"index"`

	// Conversation is the parent exchange. Messages are cascade-deleted
	// if their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Feedback ratings.
const (
	RatingUp   = "up"
	RatingDown = "down"
)

// Feedback is a user-provided rating on an assistant message. The row
// snapshots the service/configuration context at rating time so feedback
// stays analyzable independently of the conversation. No uniqueness is
// enforced; the last write is authoritative.
type Feedback struct {
	ID              string         `json:"id"              gorm:"type:char(36);primaryKey"`
	MessageID       string         `json:"message_id"      gorm:"type:char(36);not null;index"`
	UserID          string         `json:"user_id"         gorm:"type:char(36);not null;index"`
	ConversationID  string         `json:"conversation_id" gorm:"type:char(36);not null;index"`
	Rating          string         `json:"rating"          gorm:"type:varchar(10);not null;check:rating IN ('up','down')"`
	Comment         string         `json:"comment"         gorm:"type:text"`
	ServiceType     string         `json:"service_type"    gorm:"type:varchar(20);not null;index"`
	ConfigurationID *string        `json:"configuration_id,omitempty" gorm:"type:char(36)"`
	Environment     *string        `json:"environment,omitempty"      gorm:"type:varchar(20)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"               gorm:"index"`

	// Message is the rated assistant message. Feedback is cascade-deleted
	// if the underlying message is removed.
	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
