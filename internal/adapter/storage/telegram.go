package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/mdump/internal/config"
)

// maxDocumentMB is the largest file the Bot API accepts as a document.
const maxDocumentMB = 50

type TelegramStorage struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	sendFile   bool
	notifyOnly bool
}

func NewTelegram(cfg *config.UploadTarget) (*TelegramStorage, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramStorage{
		bot:        bot,
		chatID:     chatID,
		sendFile:   cfg.SendFile,
		notifyOnly: cfg.NotifyOnly,
	}, nil
}

func (t *TelegramStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	fileInfo, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	fileSizeMB := float64(fileInfo.Size()) / (1024 * 1024)

	if !t.shouldSendFile(fileSizeMB) {
		msg := tgbotapi.NewMessage(t.chatID, backupMessage(remoteName, fileSizeMB, fileInfo.ModTime()))
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram notification: %w", err)
		}
		return nil
	}

	file := tgbotapi.NewDocument(t.chatID, tgbotapi.FilePath(localPath))
	file.Caption = fmt.Sprintf("📦 MySQL backup: %s (%.2f MB)", remoteName, fileSizeMB)

	if _, err := t.bot.Send(file); err != nil {
		return fmt.Errorf("failed to send telegram file: %w", err)
	}

	return nil
}

func (t *TelegramStorage) shouldSendFile(sizeMB float64) bool {
	return t.sendFile && !t.notifyOnly && sizeMB <= maxDocumentMB
}

func backupMessage(remoteName string, sizeMB float64, created time.Time) string {
	return fmt.Sprintf(
		"✅ MySQL Backup Created\n\n"+
			"📁 File: %s\n"+
			"📊 Size: %.2f MB\n"+
			"🕐 Time: %s",
		remoteName,
		sizeMB,
		created.Format("2006-01-02 15:04:05"),
	)
}

// Telegram keeps no listing of sent files, so retention never applies.

func (t *TelegramStorage) List(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

func (t *TelegramStorage) Delete(ctx context.Context, remoteName string) error {
	return nil
}

func (t *TelegramStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	return []string{}, nil
}
