package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/provider"
)

func newDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeedDemoData(t *testing.T) {
	db := newDB(t, "repo_seed")
	ctx := context.Background()

	seeded, err := SeedDemoData(ctx, db)
	if err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}
	if !seeded {
		t.Fatal("first run must seed")
	}

	// Second run is a no-op.
	seeded, err = SeedDemoData(ctx, db)
	if err != nil {
		t.Fatalf("SeedDemoData rerun: %v", err)
	}
	if seeded {
		t.Fatal("rerun must not seed again")
	}

	admin, err := GetUserBySubject(ctx, db, "admin")
	if err != nil {
		t.Fatalf("GetUserBySubject: %v", err)
	}
	if !admin.IsAdmin || len(admin.Roles) == 0 {
		t.Fatalf("admin = %+v", admin)
	}

	cfgs, err := ListActiveConfigurations(ctx, db, "")
	if err != nil {
		t.Fatalf("ListActiveConfigurations: %v", err)
	}
	if len(cfgs) != 4 {
		t.Fatalf("configurations = %d", len(cfgs))
	}
	// One seeded configuration has no role grants at all.
	var restricted bool
	for _, c := range cfgs {
		if len(c.Roles) == 0 {
			restricted = true
		}
		if c.Domain.Key == "" {
			t.Fatalf("configuration %s carries no domain", c.Key)
		}
	}
	if !restricted {
		t.Fatal("expected a grant-less configuration in the seed")
	}
}

func TestConversationLifecycle(t *testing.T) {
	db := newDB(t, "repo_conv")
	ctx := context.Background()
	userID := uuid.NewString()

	conv, err := CreateConversation(ctx, db, userID, domain.ServiceGeneral, nil, "New conversation")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	t.Run("get enforces ownership", func(t *testing.T) {
		if _, err := GetConversation(ctx, db, conv.ID, userID); err != nil {
			t.Fatalf("GetConversation: %v", err)
		}
		if _, err := GetConversation(ctx, db, conv.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("foreign owner err = %v", err)
		}
	})

	t.Run("update title", func(t *testing.T) {
		if err := UpdateConversationTitle(ctx, db, conv.ID, userID, "Renamed"); err != nil {
			t.Fatalf("UpdateConversationTitle: %v", err)
		}
		got, _ := GetConversation(ctx, db, conv.ID, userID)
		if got.Title != "Renamed" {
			t.Fatalf("title = %q", got.Title)
		}
		if err := UpdateConversationTitle(ctx, db, conv.ID, uuid.NewString(), "X"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("foreign owner err = %v", err)
		}
	})

	t.Run("touch reorders listing", func(t *testing.T) {
		older, err := CreateConversation(ctx, db, userID, domain.ServiceGeneral, nil, "Older")
		if err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
		// Push the first conversation back in time, then touch it forward.
		past := time.Now().UTC().Add(-time.Hour)
		if err := db.Model(&domain.Conversation{}).Where("id = ?", conv.ID).Update("updated_at", past).Error; err != nil {
			t.Fatalf("backdate: %v", err)
		}
		if err := TouchConversation(ctx, db, conv.ID); err != nil {
			t.Fatalf("TouchConversation: %v", err)
		}
		page, err := ListConversationsPage(ctx, db, userID, "", 0, 10)
		if err != nil {
			t.Fatalf("ListConversationsPage: %v", err)
		}
		if len(page) != 2 || page[0].ID != conv.ID {
			t.Fatalf("page order = %v", page)
		}
		_ = older
	})

	t.Run("count with service filter", func(t *testing.T) {
		total, err := CountConversations(ctx, db, userID, domain.ServiceGeneral)
		if err != nil {
			t.Fatalf("CountConversations: %v", err)
		}
		if total != 2 {
			t.Fatalf("total = %d", total)
		}
		total, _ = CountConversations(ctx, db, userID, domain.ServiceGrounded)
		if total != 0 {
			t.Fatalf("grounded total = %d", total)
		}
	})

	t.Run("delete cascades to messages and feedback", func(t *testing.T) {
		msg, err := CreateMessage(db, conv.ID, domain.RoleAssistant, "bye", nil, nil)
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		if err := CreateFeedback(db, &domain.Feedback{
			MessageID:      msg.ID,
			UserID:         userID,
			ConversationID: conv.ID,
			Rating:         domain.RatingUp,
			ServiceType:    domain.ServiceGeneral,
		}); err != nil {
			t.Fatalf("CreateFeedback: %v", err)
		}

		if err := DeleteConversation(ctx, db, conv.ID, userID); err != nil {
			t.Fatalf("DeleteConversation: %v", err)
		}
		if _, err := GetConversation(ctx, db, conv.ID, userID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		count, _ := CountMessages(db, conv.ID)
		if count != 0 {
			t.Fatalf("messages left = %d", count)
		}
		var fbCount int64
		db.Model(&domain.Feedback{}).Where("conversation_id = ?", conv.ID).Count(&fbCount)
		if fbCount != 0 {
			t.Fatalf("feedback left = %d", fbCount)
		}
	})

	t.Run("delete unknown", func(t *testing.T) {
		if err := DeleteConversation(ctx, db, uuid.NewString(), userID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestMessageSourcesRoundTrip(t *testing.T) {
	db := newDB(t, "repo_msg")
	ctx := context.Background()
	conv, err := CreateConversation(ctx, db, uuid.NewString(), domain.ServiceGrounded, nil, "t")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	sources := []provider.Source{
		{Title: "Refund Policy", URL: "https://kb/refunds"},
		{Title: "Shipping", URL: "https://kb/shipping"},
	}
	usage := &provider.Usage{PromptTokens: 7, CompletionTokens: 11, TotalTokens: 18}

	msg, err := CreateMessage(db, conv.ID, domain.RoleAssistant, "answer", sources, usage)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	stored, err := GetMessage(db, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	decoded, err := DecodeSources(stored)
	if err != nil {
		t.Fatalf("DecodeSources: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != sources[0] || decoded[1] != sources[1] {
		t.Fatalf("decoded = %v", decoded)
	}
	if stored.PromptTokens == nil || *stored.PromptTokens != 7 || *stored.TotalTokens != 18 {
		t.Fatalf("usage columns = %+v", stored)
	}

	t.Run("user message has no sources", func(t *testing.T) {
		plain, err := CreateMessage(db, conv.ID, domain.RoleUser, "q", nil, nil)
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		got, _ := GetMessage(db, plain.ID)
		decoded, err := DecodeSources(got)
		if err != nil || decoded != nil {
			t.Fatalf("decoded=%v err=%v", decoded, err)
		}
	})

	t.Run("ordering is stable", func(t *testing.T) {
		msgs, err := ListMessages(db, conv.ID, 0)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(msgs) != 2 || msgs[0].ID != msg.ID {
			t.Fatalf("order = %v", msgs)
		}
	})
}

func TestConversationsStats(t *testing.T) {
	db := newDB(t, "repo_stats")
	ctx := context.Background()
	userID := uuid.NewString()

	count, maxAt, err := ConversationsStats(ctx, db, userID)
	if err != nil {
		t.Fatalf("ConversationsStats: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("empty stats = %d, %v", count, maxAt)
	}

	if _, err := CreateConversation(ctx, db, userID, domain.ServiceGeneral, nil, "a"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := CreateConversation(ctx, db, userID, domain.ServiceGeneral, nil, "b"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	count, maxAt, err = ConversationsStats(ctx, db, userID)
	if err != nil {
		t.Fatalf("ConversationsStats: %v", err)
	}
	if count != 2 || maxAt == nil {
		t.Fatalf("stats = %d, %v", count, maxAt)
	}
}

func TestGetUserBySubject_NotFound(t *testing.T) {
	db := newDB(t, "repo_user")
	if _, err := GetUserBySubject(context.Background(), db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
