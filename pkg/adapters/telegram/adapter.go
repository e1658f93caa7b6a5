package telegram

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"switchboard/pkg/api"
	"switchboard/pkg/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// Config encapsulates the credentials required to authenticate with the
// Telegram Bot API.
type Config struct {
	Token string `json:"token"` // The secret BOT API string provided by @BotFather
}

// Payload carries the platform-specific addressing for one Telegram message.
type Payload struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
}

// Adapter is the production implementation of api.Adapter for the Telegram
// platform. It long-polls for updates, normalizes messages and albums into
// events, downloads media to local files, and relays replies back as one or
// more message bubbles.
type Adapter struct {
	config         Config
	bot            *tgbotapi.BotAPI
	messageLimit   int
	attachmentsDir string
	httpClient     *http.Client // Client for downloading remote media from Telegram
	mu             sync.Mutex
	albums         map[string]*albumBuffer // Buffer for grouping images sent together
	stopCtx        context.Context         // Context used to forcibly abort the long-polling HTTP request
	stopCancel     context.CancelFunc
}

// albumBuffer aggregates multiple incoming messages marked with the same
// MediaGroupID into a single Event, so a multi-image post reaches the worker
// as one unit of work.
type albumBuffer struct {
	payload *Payload
	text    string
	fileIDs []string
	timer   *time.Timer
}

// NewAdapter authenticates with Telegram and prepares the adapter.
func NewAdapter(cfg Config, messageLimit int, attachmentsDir string, downloadTimeout time.Duration) (*Adapter, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// A dedicated HTTP client whose dials die with stopCtx: cancelling Stop()
	// aborts the active long-poll request instead of leaving it stuck on the
	// server, which would cause a 409 Conflict on restart.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	botHTTPClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
				mergedCtx, mergedCancel := context.WithCancel(dialCtx)
				go func() {
					select {
					case <-ctx.Done():
						mergedCancel()
					case <-mergedCtx.Done():
					}
				}()
				return dialer.DialContext(mergedCtx, network, addr)
			},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, botHTTPClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &Adapter{
		config:         cfg,
		bot:            bot,
		messageLimit:   messageLimit,
		attachmentsDir: attachmentsDir,
		albums:         make(map[string]*albumBuffer),
		httpClient:     &http.Client{Timeout: downloadTimeout},
		stopCtx:        ctx,
		stopCancel:     cancel,
	}, nil
}

// ID returns the unique platform identifier "telegram".
func (a *Adapter) ID() string {
	return "telegram"
}

// SessionKey derives the conversation-thread key from a Telegram payload:
// one key per chat.
func (a *Adapter) SessionKey(payload any) string {
	if p, ok := payload.(*Payload); ok {
		return fmt.Sprintf("telegram:%d", p.ChatID)
	}
	return ""
}

// CustomPrompt implements api.Prompter with surface-specific guidance.
func (a *Adapter) CustomPrompt() string {
	return "You are replying inside Telegram. Messages render as plain text; keep replies compact and avoid heavy markup."
}

// Start initiates the long-polling update loop in a background goroutine.
// Transient polling errors are recovered locally and never surface to the
// dispatcher.
func (a *Adapter) Start(ctx api.AdapterContext) error {
	offset := 0

	go func() {
		for {
			select {
			case <-a.stopCtx.Done():
				return // Gracefully exit on shutdown
			default:
			}

			reqConfig := tgbotapi.NewUpdate(offset)
			reqConfig.Timeout = 60

			updates, err := a.bot.GetUpdates(reqConfig)
			if err != nil {
				select {
				case <-a.stopCtx.Done():
					return // Ignore error if we are shutting down
				default:
					slog.Debug("Failed to get telegram updates", "error", err)
					time.Sleep(3 * time.Second)
					continue
				}
			}

			for _, update := range updates {
				if update.UpdateID < offset {
					continue
				}
				offset = update.UpdateID + 1

				if update.Message == nil {
					continue
				}
				a.handleMessage(ctx, update.Message)
			}
		}
	}()

	return nil
}

// Stop aborts the long-poll loop and clears lingering connections.
func (a *Adapter) Stop() error {
	a.stopCancel()

	if httpClient, ok := a.bot.Client.(*http.Client); ok && httpClient != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
	return nil
}

func (a *Adapter) handleMessage(ctx api.AdapterContext, msg *tgbotapi.Message) {
	payload := &Payload{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	if msg.From != nil {
		payload.UserID = msg.From.ID
		payload.Username = msg.From.UserName
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	// Identify the best-quality photo but don't download yet, so album
	// grouping is never blocked on I/O.
	var fileID string
	var filename string
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	} else if msg.Document != nil {
		fileID = msg.Document.FileID
		filename = msg.Document.FileName
	}

	if msg.MediaGroupID != "" {
		a.bufferAlbum(ctx, msg.MediaGroupID, payload, text, fileID)
		return
	}

	if fileID == "" {
		a.emit(ctx, payload, text, nil)
		return
	}

	// Download asynchronously to keep the update loop responsive.
	go func() {
		var attachments []api.Attachment
		if att, err := a.downloadFile(fileID, filename); err == nil {
			attachments = append(attachments, *att)
		} else {
			slog.Error("Telegram file download failed", "error", err)
		}
		a.emit(ctx, payload, text, attachments)
	}()
}

// bufferAlbum debounces messages sharing a MediaGroupID into one event.
func (a *Adapter) bufferAlbum(ctx api.AdapterContext, groupID string, payload *Payload, text string, fileID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.albums[groupID]
	if ok {
		if text != "" {
			if buf.text != "" {
				buf.text += "\n" + text
			} else {
				buf.text = text
			}
		}
		if fileID != "" {
			buf.fileIDs = append(buf.fileIDs, fileID)
		}
		buf.timer.Reset(time.Second)
		return
	}

	buf = &albumBuffer{payload: payload, text: text}
	if fileID != "" {
		buf.fileIDs = append(buf.fileIDs, fileID)
	}
	a.albums[groupID] = buf

	// Give the rest of the album a second to arrive before emitting.
	buf.timer = time.AfterFunc(time.Second, func() {
		a.mu.Lock()
		finalBuf, exists := a.albums[groupID]
		if exists {
			delete(a.albums, groupID)
		}
		a.mu.Unlock()
		if !exists {
			return
		}

		var wg sync.WaitGroup
		downloaded := make([]*api.Attachment, len(finalBuf.fileIDs))
		for i, id := range finalBuf.fileIDs {
			wg.Add(1)
			go func(index int, fid string) {
				defer wg.Done()
				att, err := a.downloadFile(fid, "")
				if err != nil {
					slog.Error("Album download failed", "file_id", fid, "error", err)
					return
				}
				downloaded[index] = att
			}(i, id)
		}
		wg.Wait()

		var attachments []api.Attachment
		for _, att := range downloaded {
			if att != nil {
				attachments = append(attachments, *att)
			}
		}

		a.emit(ctx, finalBuf.payload, finalBuf.text, attachments)
		slog.Info("Album forwarded", "group", groupID,
			"images", fmt.Sprintf("%d/%d", len(attachments), len(finalBuf.fileIDs)))
	})
}

// emit normalizes one inbound unit of work and hands it to the core.
func (a *Adapter) emit(ctx api.AdapterContext, payload *Payload, text string, attachments []api.Attachment) {
	if text == "" && len(attachments) == 0 {
		return
	}

	ctx.OnEvent(a.ID(), &api.Event{
		ID:         uuid.NewString(),
		AdapterID:  a.ID(),
		SessionKey: a.SessionKey(payload),
		Prompt:     buildPrompt(text, attachments),
		Payload:    payload,
		Message: api.NormalizedMessage{
			Text:      text,
			From:      payload.Username,
			IsMessage: true,
		},
		Attachments: attachments,
		ReceivedAt:  time.Now(),
	})
}

// buildPrompt injects attachment references into the worker prompt so an
// opaque worker can find the files on disk.
func buildPrompt(text string, attachments []api.Attachment) string {
	if len(attachments) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	for _, att := range attachments {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[attached file: %s (%s)]", att.Path, att.MimeType)
	}
	return sb.String()
}

// downloadFile streams a Telegram file to the attachments directory. Names
// carry a timestamp prefix so concurrent downloads never collide and old
// files can be aged out without extra metadata.
func (a *Adapter) downloadFile(fileID string, suggestedName string) (*api.Attachment, error) {
	fileInfo, err := a.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	resp, err := a.httpClient.Get(fileInfo.Link(a.config.Token))
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status code %d", resp.StatusCode)
	}

	if err := os.MkdirAll(a.attachmentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}

	name := suggestedName
	if name == "" {
		name = filepath.Base(fileInfo.FilePath)
	}
	localPath := filepath.Join(a.attachmentsDir,
		utils.TimestampPrefix()+"tg_"+utils.SanitizeFilename(name))

	outFile, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to save file data to disk: %w", err)
	}

	mimeType, detectedExt := utils.DetectFileMimeAndExt(localPath)
	if filepath.Ext(localPath) == "" {
		if newPath := localPath + detectedExt; os.Rename(localPath, newPath) == nil {
			localPath = newPath
		}
	}

	return &api.Attachment{
		Filename: name,
		MimeType: mimeType,
		Path:     localPath,
	}, nil
}
