package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
)

// NotificationMessage 通知内容
type NotificationMessage struct {
	WeekID          string
	Level           string // success | info | warning | error
	Title           string
	Content         string
	RecoveryActions []string
	AutoHide        bool
}

// Notifier 通知出口（发后即忘）
type Notifier interface {
	Notify(ctx context.Context, msg NotificationMessage)
}

// NotificationService 通知业务接口
type NotificationService interface {
	Notifier
	// Subscribe 注册页面刷新等回调，返回取消函数
	Subscribe(fn func(NotificationMessage)) (unsubscribe func())
	List(ctx context.Context, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, id string) error
}

var ErrNotificationNotFound = errors.New("通知不存在")

type notificationSubscriber struct {
	fn func(NotificationMessage)
}

type notificationService struct {
	repo        *repository.Repository
	logger      *zap.Logger
	nextID      atomic.Uint64
	subscribers *xsync.Map[uint64, *notificationSubscriber]
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:        repo,
		logger:      logger,
		subscribers: xsync.NewMap[uint64, *notificationSubscriber](),
	}
}

// Notify 持久化、写日志并推送给订阅者；任何一步失败都不影响调用方
func (s *notificationService) Notify(ctx context.Context, msg NotificationMessage) {
	fields := []zap.Field{
		zap.String("week_id", msg.WeekID),
		zap.String("level", msg.Level),
		zap.String("title", msg.Title),
		zap.Strings("recovery_actions", msg.RecoveryActions),
	}
	switch msg.Level {
	case model.NotifyError:
		s.logger.Error(msg.Content, fields...)
	case model.NotifyWarning:
		s.logger.Warn(msg.Content, fields...)
	default:
		s.logger.Info(msg.Content, fields...)
	}

	n := &model.Notification{
		Level:           msg.Level,
		Title:           msg.Title,
		Content:         msg.Content,
		RecoveryActions: model.StringArray(msg.RecoveryActions),
		AutoHide:        msg.AutoHide,
	}
	if msg.WeekID != "" {
		weekID := msg.WeekID
		n.WeekID = &weekID
	}
	if err := s.repo.Notification.Create(ctx, n); err != nil {
		s.logger.Error("保存通知失败", zap.Error(err))
	}

	s.subscribers.Range(func(_ uint64, sub *notificationSubscriber) bool {
		s.deliver(sub, msg)
		return true
	})
}

func (s *notificationService) deliver(sub *notificationSubscriber, msg NotificationMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("通知订阅者异常", zap.Any("panic", r))
		}
	}()
	sub.fn(msg)
}

func (s *notificationService) Subscribe(fn func(NotificationMessage)) func() {
	id := s.nextID.Add(1)
	s.subscribers.Store(id, &notificationSubscriber{fn: fn})
	return func() {
		s.subscribers.LoadAndDelete(id)
	}
}

func (s *notificationService) List(ctx context.Context, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	list, total, err := s.repo.Notification.List(ctx, req.WeekID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.Error(err))
		return nil, 0, err
	}
	out := make([]dto.NotificationResponse, 0, len(list))
	for _, n := range list {
		r := dto.NotificationResponse{
			ID:              n.NotificationID,
			Level:           n.Level,
			Title:           n.Title,
			Content:         n.Content,
			RecoveryActions: []string(n.RecoveryActions),
			AutoHide:        n.AutoHide,
			IsRead:          n.IsRead,
			CreatedAt:       n.CreatedAt.Format(time.RFC3339),
		}
		if n.WeekID != nil {
			r.WeekID = *n.WeekID
		}
		out = append(out, r)
	}
	return out, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string) error {
	if err := s.repo.Notification.MarkRead(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.Error(err))
		return err
	}
	return nil
}
