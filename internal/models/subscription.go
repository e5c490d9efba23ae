// Package models содержит доменные структуры: подписка пользователя на закрытую
// группу, платёжная попытка и выданный пригласительный токен.
package models

import "time"

// Subscription представляет право пользователя находиться в закрытой группе.
// Поле ExpiresAt может быть nil — это означает пожизненный тариф без даты окончания.
type Subscription struct {
	UserID        int64      // Идентификатор пользователя в мессенджере
	Tier          string     // Название тарифа (monthly, quarterly, lifetime)
	ExpiresAt     *time.Time // Дата окончания доступа, nil для lifetime
	LastPaymentID string     // ID последнего платежа, активировавшего подписку
	IsActive      bool       // false после отзыва доступа свипером
	CreatedAt     time.Time  // Дата первой активации
	UpdatedAt     time.Time  // Дата последнего продления или отзыва
}

// IsLifetime сообщает, что подписка бессрочная и не подлежит отзыву по времени.
func (s *Subscription) IsLifetime() bool {
	return s.ExpiresAt == nil
}

// IsExpired сообщает, истекла ли подписка на момент now.
// Пожизненная подписка не истекает никогда.
func (s *Subscription) IsExpired(now time.Time) bool {
	if s.IsLifetime() {
		return false
	}
	return !s.ExpiresAt.After(now)
}
