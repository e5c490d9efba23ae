package models

import "time"

// AccessCredential — одноразовый пригласительный токен в закрытую группу.
// Выдаётся грантором после подтверждения оплаты, действует несколько минут
// и рассчитан ровно на одно использование.
type AccessCredential struct {
	GroupID    int64     // Закрытая группа, к которой выдан доступ
	UserID     int64     // Пользователь, для которого выдан токен
	InviteLink string    // Ссылка-приглашение
	IssuedAt   time.Time // Момент выдачи
	ExpiresAt  time.Time // Окончание срока действия ссылки
	MaxUses    int       // Всегда 1
}
