// Package telegram реализует клиент Telegram Bot API: удаление и разбан
// участников закрытых групп, выпуск одноразовых пригласительных ссылок
// и отправка сообщений пользователям. Клиент ограничивает частоту запросов,
// чтобы не упираться в лимиты Bot API при массовом отзыве доступа.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/magabrotheeeer/group-access/internal/config"
	"golang.org/x/time/rate"
)

// Client клиент Telegram Bot API.
type Client struct {
	apiURL     string
	botToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient создаёт новый клиент Bot API.
func NewClient(cfg config.Telegram) *Client {
	return &Client{
		apiURL:     cfg.TelegramAPIURL,
		botToken:   cfg.BotToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// call выполняет метод Bot API и декодирует результат в result (если не nil).
func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return err
	}
	if !apiResp.Ok {
		return fmt.Errorf("telegram api: %s (code %d)", apiResp.Description, apiResp.ErrorCode)
	}
	if result != nil {
		return json.Unmarshal(apiResp.Result, result)
	}
	return nil
}

// BanChatMember удаляет участника из группы. В связке с последующим
// UnbanChatMember это однократное исключение, а не постоянный бан.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	const op = "telegram.BanChatMember"
	err := c.call(ctx, "banChatMember", banChatMemberRequest{ChatID: chatID, UserID: userID}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UnbanChatMember снимает бан с участника. Флаг only_if_banned делает вызов
// безопасным для пользователя, который забанен не был.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	const op = "telegram.UnbanChatMember"
	err := c.call(ctx, "unbanChatMember", unbanChatMemberRequest{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateChatInviteLink выпускает пригласительную ссылку с ограниченным сроком
// действия и лимитом использований.
func (c *Client) CreateChatInviteLink(ctx context.Context, chatID int64, expireAt time.Time, memberLimit int) (string, error) {
	const op = "telegram.CreateChatInviteLink"
	var link ChatInviteLink
	err := c.call(ctx, "createChatInviteLink", createChatInviteLinkRequest{
		ChatID:      chatID,
		ExpireDate:  expireAt.Unix(),
		MemberLimit: memberLimit,
	}, &link)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return link.InviteLink, nil
}

// SendMessage отправляет пользователю текстовое сообщение.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	const op = "telegram.SendMessage"
	err := c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
