package services

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable - кеш недоступен; на уровне запроса это всегда промах, а не ошибка
	ErrStoreUnavailable = errors.New("cache store unavailable")
	// ErrInvalidCandidate - пост с битыми данными, исключается из ранжирования
	ErrInvalidCandidate = errors.New("invalid feed candidate")
	// ErrUnknownInteraction - тип взаимодействия без настроенного приращения аффинитета
	ErrUnknownInteraction = errors.New("unknown interaction kind")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidInput       = errors.New("invalid input")
)

// BatchItemFailure - ошибка предрасчета ленты одного пользователя; батч продолжается
type BatchItemFailure struct {
	UserID int64
	Err    error
}

func (f BatchItemFailure) Error() string {
	return fmt.Sprintf("precompute feed for user %d: %v", f.UserID, f.Err)
}

func (f BatchItemFailure) Unwrap() error {
	return f.Err
}
