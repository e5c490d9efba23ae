package telegram

import "encoding/json"

// apiResponse — общий конверт ответа Bot API.
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// ChatInviteLink — пригласительная ссылка, возвращаемая createChatInviteLink.
type ChatInviteLink struct {
	InviteLink  string `json:"invite_link"`
	ExpireDate  int64  `json:"expire_date"`
	MemberLimit int    `json:"member_limit"`
}

type banChatMemberRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

type unbanChatMemberRequest struct {
	ChatID       int64 `json:"chat_id"`
	UserID       int64 `json:"user_id"`
	OnlyIfBanned bool  `json:"only_if_banned"`
}

type createChatInviteLinkRequest struct {
	ChatID      int64 `json:"chat_id"`
	ExpireDate  int64 `json:"expire_date"`
	MemberLimit int   `json:"member_limit"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}
