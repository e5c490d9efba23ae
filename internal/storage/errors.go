package storage

import "errors"

// ErrSubscriptionNotFound возвращается, когда у пользователя нет записи подписки.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrAttemptNotFound возвращается, когда платёжная попытка с данным ID не сохранена.
var ErrAttemptNotFound = errors.New("payment attempt not found")
