package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/internal/util"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
)

const MaxContentLength = 2000

const (
	unreadForAdmin = "unread_for_admin"
	unreadForUser  = "unread_for_user"
)

// Notifier pushes a stored message to connected clients.
type Notifier interface {
	MessageAppended(ctx context.Context, conv *models.Conversation, msg *models.Message)
}

type Service struct {
	Repo     *repo.GormRepo
	Notifier Notifier
	Now      func() time.Time
}

func New(r *repo.GormRepo, n Notifier) *Service {
	return &Service{Repo: r, Notifier: n, Now: time.Now}
}

// Append stores a message from actor and notifies the customer's room and the staff room.
// It is shared by the REST endpoint and the socket event.
func (s *Service) Append(ctx context.Context, actor domain.Actor, req transport.SendMessageRequest) (*transport.AppendResult, error) {
	l := logging.FromContext(ctx).With("svc", "chat.append", "sender_id", actor.UserID)

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content must be at most %d characters", domain.ErrValidation, MaxContentLength)
	}

	var (
		conv *models.Conversation
		msg  *models.Message
	)
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		c, err := s.resolve(ctx, tx, actor, req.ConversationID, req.ToUserID)
		if err != nil {
			return err
		}

		now := s.Now().UTC()
		msg = &models.Message{
			ConversationID: c.ID,
			SenderID:       actor.UserID,
			SenderRole:     actor.Role,
			Content:        content,
			CreatedAt:      now,
		}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}

		column := unreadForUser
		if !actor.IsStaff() {
			column = unreadForAdmin
		}
		if err := tx.TouchConversation(ctx, c.ID, column, now); err != nil {
			return err
		}

		conv, err = tx.GetConversation(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("message_appended", "conversation_id", conv.ID, "message_id", msg.ID)
	if s.Notifier != nil {
		s.Notifier.MessageAppended(ctx, conv, msg)
	}
	return &transport.AppendResult{Conversation: conv, Message: msg}, nil
}

// resolve finds the conversation a message belongs to, creating the customer's thread on demand.
func (s *Service) resolve(ctx context.Context, tx *repo.GormRepo, actor domain.Actor, convID, toUserID uuid.UUID) (*models.Conversation, error) {
	var (
		conv *models.Conversation
		err  error
	)
	switch {
	case convID != uuid.Nil:
		conv, err = tx.GetConversation(ctx, convID)
		if err != nil {
			return nil, err
		}
		if err := authorize(actor, conv, uuid.Nil); err != nil {
			return nil, err
		}
	case !actor.IsStaff():
		conv, err = tx.GetOrCreateConversation(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
	default:
		if toUserID == uuid.Nil {
			return nil, fmt.Errorf("%w: toUserId or conversationId required", domain.ErrValidation)
		}
		target, err := tx.GetUser(ctx, toUserID)
		if err != nil {
			return nil, err
		}
		if target.Role != domain.RoleCustomer {
			return nil, fmt.Errorf("%w: conversations are held with customers only", domain.ErrValidation)
		}
		conv, err = tx.GetOrCreateConversation(ctx, target.ID)
		if err != nil {
			return nil, err
		}
	}

	if actor.IsStaff() && conv.AssignedAdminID == nil {
		if err := tx.AssignIfUnset(ctx, conv.ID, actor.UserID); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

type FetchQuery struct {
	UserID uuid.UUID
	Page   int
	Limit  int
	From   *time.Time
	To     *time.Time
}

// Fetch returns one page of messages, oldest first within the page, and marks the
// counterpart's messages as seen by the reader.
func (s *Service) Fetch(ctx context.Context, actor domain.Actor, convID uuid.UUID, q FetchQuery) (*transport.PageResponse[models.Message], error) {
	page, limit, offset := util.Calculate(q.Page, q.Limit)

	var (
		items []models.Message
		total int64
	)
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		conv, err := tx.GetConversation(ctx, convID)
		if err != nil {
			return err
		}
		if err := authorize(actor, conv, q.UserID); err != nil {
			return err
		}

		items, total, err = tx.ListMessages(ctx, repo.MessageFilter{
			ConversationID: conv.ID,
			From:           q.From,
			To:             q.To,
			Page:           repo.Page{Offset: offset, Limit: limit},
		})
		if err != nil {
			return err
		}

		now := s.Now().UTC()
		senders, column := []string{domain.RoleCustomer}, unreadForAdmin
		if !actor.IsStaff() {
			senders, column = domain.StaffRoles, unreadForUser
		}
		if err := tx.MarkSeen(ctx, conv.ID, senders, now); err != nil {
			return err
		}
		for i := range items {
			if items[i].SeenAt == nil && slices.Contains(senders, items[i].SenderRole) {
				items[i].SeenAt = &now
			}
		}
		return tx.ResetUnread(ctx, conv.ID, column)
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(items)
	return &transport.PageResponse[models.Message]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// List shows a customer their own thread and staff every thread, newest activity first.
func (s *Service) List(ctx context.Context, actor domain.Actor, userID uuid.UUID, pageNum, limitNum int) (*transport.PageResponse[models.Conversation], error) {
	page, limit, offset := util.Calculate(pageNum, limitNum)

	f := repo.ConversationFilter{UserID: userID, Page: repo.Page{Offset: offset, Limit: limit}}
	if !actor.IsStaff() {
		f.UserID = actor.UserID
	}
	items, total, err := s.Repo.ListConversations(ctx, f)
	if err != nil {
		return nil, err
	}
	return &transport.PageResponse[models.Conversation]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

func (s *Service) Close(ctx context.Context, actor domain.Actor, convID uuid.UUID) (*models.Conversation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: not allowed", domain.ErrForbidden)
	}
	if _, err := s.Repo.GetConversation(ctx, convID); err != nil {
		return nil, err
	}
	if err := s.Repo.SetConversationStatus(ctx, convID, models.ConversationClosed); err != nil {
		return nil, err
	}
	return s.Repo.GetConversation(ctx, convID)
}

func authorize(actor domain.Actor, conv *models.Conversation, userID uuid.UUID) error {
	if !actor.IsStaff() {
		if conv.UserID != actor.UserID {
			return fmt.Errorf("%w: not allowed", domain.ErrForbidden)
		}
		return nil
	}
	if userID != uuid.Nil && userID != conv.UserID {
		return fmt.Errorf("%w: conversation does not belong to this user", domain.ErrForbidden)
	}
	return nil
}

// ict is the shop's local day boundary for the date filter.
var ict = time.FixedZone("ICT", 7*60*60)

// ParseRange turns the date or from/to query values into a half open [from, to) range.
// Values may be dates (2006-01-02) or RFC 3339 timestamps. A date for to includes that whole day.
func ParseRange(date, from, to string) (*time.Time, *time.Time, error) {
	if date != "" {
		d, err := time.ParseInLocation(time.DateOnly, date, ict)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
		}
		start, end := d.UTC(), d.AddDate(0, 0, 1).UTC()
		return &start, &end, nil
	}

	var start, end *time.Time
	if from != "" {
		t, _, err := parseBound(from)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid from", domain.ErrValidation)
		}
		start = &t
	}
	if to != "" {
		t, dateOnly, err := parseBound(to)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid to", domain.ErrValidation)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		end = &t
	}
	if start != nil && end != nil && !end.After(*start) {
		return nil, nil, fmt.Errorf("%w: to must be after from", domain.ErrValidation)
	}
	return start, end, nil
}

func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, ict); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
