package db

import (
	"fmt"

	"gorm.io/gorm"
)

// CreateFeedIndexes создает составные индексы под выборку кандидатов ленты.
// Синтаксис совместим и с PostgreSQL, и с SQLite.
func CreateFeedIndexes(db *gorm.DB) error {
	indexes := map[string]string{
		// кандидаты домашней ленты: посты автора по времени
		"idx_posts_user_id_created_at": "CREATE INDEX IF NOT EXISTS idx_posts_user_id_created_at ON posts (user_id, created_at)",
		// глобальный пул explore
		"idx_posts_created_at_id": "CREATE INDEX IF NOT EXISTS idx_posts_created_at_id ON posts (created_at, id)",
		// выборка активных пользователей батчами по id
		"idx_users_last_active_at_id": "CREATE INDEX IF NOT EXISTS idx_users_last_active_at_id ON users (last_active_at, id)",
	}

	for name, createIndexSQL := range indexes {
		if err := db.Exec(createIndexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}
	return nil
}
