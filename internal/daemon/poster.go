package daemon

import (
	"github.com/gavago/roomchat/internal/notify"
	"go.uber.org/zap"
)

// logPoster is the headless notification sink: posted notifications land in
// the log where a desktop integration would display them.
type logPoster struct {
	logger *zap.Logger
}

func (p *logPoster) Post(n notify.Notification) error {
	p.logger.Info("notification",
		zap.String("tag", n.Tag),
		zap.String("title", n.Title),
		zap.String("body", n.Body))
	return nil
}

func (p *logPoster) Dismiss(tag string) {
	p.logger.Debug("notification dismissed", zap.String("tag", tag))
}
