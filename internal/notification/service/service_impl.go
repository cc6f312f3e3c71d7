package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/config"
	"github.com/storyforge/storyforge/internal/notification/domain"
	"github.com/storyforge/storyforge/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Cfg   config.Config
	Slack slack.Provider `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	slack     slack.Provider
	channelID string
}

func NewService(p ServiceParam) domain.Sink {
	slackProvider := p.Slack
	if slackProvider == nil || !p.Cfg.Slack.Enabled {
		slackProvider = &slack.NoOpProvider{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("notification.service"),
		genID:     p.GenID,
		slack:     slackProvider,
		channelID: p.Cfg.Slack.ChannelID,
	}
}

func (s *Service) Notify(ctx context.Context, msg domain.Message) error {
	row := &domain.Notification{
		ID:        s.genID.Generate(),
		OrgID:     msg.OrgID,
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Body:      msg.Body,
		Link:      msg.Link,
		Metadata:  datatypes.JSONMap(msg.Metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}

	if err := s.slack.PostMessage(ctx, s.channelID, fmt.Sprintf("%s: %s", msg.Title, msg.Body)); err != nil {
		s.log.Warn("slack delivery failed",
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
	return nil
}
